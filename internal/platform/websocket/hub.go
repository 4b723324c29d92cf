// Package websocket pushes new-intake events to dashboard clients over a
// WebSocket. Browsers cannot set headers on the upgrade request, so the
// bearer token may also arrive as the "token" query parameter.
package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/pkg/models"
)

// Subscriber hands out intake event feeds. *notify.Hub satisfies it.
type Subscriber interface {
	Subscribe() (<-chan models.IntakeEvent, func())
}

// Frame is one message sent to the client.
type Frame struct {
	Type  string              `json:"type"`
	Event *models.IntakeEvent `json:"event,omitempty"`
	At    time.Time           `json:"at"`
}

// ClientMessage is an inbound message. The only action is "ping".
type ClientMessage struct {
	Action string `json:"action"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Handler struct {
	events   Subscriber
	tokens   *auth.TokenIssuer
	upgrader gorillawebsocket.Upgrader
	logger   zerolog.Logger
	now      func() time.Time
}

// NewHandler accepts upgrades from the given origins; "*" allows any.
// Requests without an Origin header (non-browser clients) are accepted.
func NewHandler(events Subscriber, tokens *auth.TokenIssuer, origins []string, logger zerolog.Logger) *Handler {
	h := &Handler{events: events, tokens: tokens, logger: logger, now: time.Now}
	h.upgrader = gorillawebsocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/analytics/ws", h.Connect)
}

// Connect authenticates the caller, upgrades the connection and streams
// events until either side closes.
func (h *Handler) Connect(c echo.Context) error {
	token := c.QueryParam("token")
	if hdr := c.Request().Header.Get("Authorization"); token == "" && hdr != "" {
		if scheme, rest, ok := strings.Cut(hdr, " "); ok && strings.EqualFold(scheme, "bearer") {
			token = strings.TrimSpace(rest)
		}
	}
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication token")
	}
	claims, err := h.tokens.Parse(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authentication credentials")
	}
	if claims.Role != string(models.RoleDoctor) && claims.Role != string(models.RoleAdmin) {
		return echo.NewHTTPError(http.StatusForbidden, "required role: doctor or admin")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	h.logger.Info().Str("user", claims.Subject).Msg("dashboard socket connected")
	h.Serve(ws)
	return nil
}

// Serve forwards events to conn and answers pings until the connection
// fails or the event feed closes. It closes conn on return.
func (h *Handler) Serve(conn Conn) {
	events, cancel := h.events.Subscribe()
	defer cancel()
	defer conn.Close()

	replies := make(chan Frame, 8)
	done := make(chan struct{})
	go h.readPump(conn, replies, done)

	for {
		var f Frame
		select {
		case <-done:
			return
		case f = <-replies:
		case evt, ok := <-events:
			if !ok {
				return
			}
			f = Frame{Type: evt.Type, Event: &evt, At: h.now()}
		}
		b, err := json.Marshal(f)
		if err != nil {
			h.logger.Error().Err(err).Msg("encode socket frame")
			continue
		}
		if err := conn.WriteMessage(gorillawebsocket.TextMessage, b); err != nil {
			return
		}
	}
}

// readPump only reads; all writes happen in Serve.
func (h *Handler) readPump(conn Conn, replies chan<- Frame, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Action == "ping" {
			select {
			case replies <- Frame{Type: "pong", At: h.now()}:
			default:
			}
		}
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}
