package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicRoutes lists method+route pairs reachable without a bearer token:
// health checks, metrics, login, the patient-facing intake flow (which ends
// with the patient record submission) and the dashboard socket.
var publicRoutes = map[string]bool{
	"GET /health":                   true,
	"GET /health/db":                true,
	"GET /metrics":                  true,
	"POST /api/auth/login":          true,
	"POST /api/auth/logout":         true,
	"POST /api/auth/create-admin":   true,
	"POST /api/intake/voice":        true,
	"POST /api/intake/text":         true,
	"POST /api/intake/summarize":    true,
	"POST /api/intake/medical-chat": true,
	"POST /api/patients":            true,

	// The dashboard socket checks its own token (header or ?token=).
	"GET /api/analytics/ws": true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. CORS preflight requests are always skipped.
func AuthSkipper(c echo.Context) bool {
	if c.Request().Method == http.MethodOptions {
		return true
	}
	return publicRoutes[c.Request().Method+" "+c.Path()]
}
