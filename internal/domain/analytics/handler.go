package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/internal/platform/response"
	"github.com/medq/medq/pkg/models"
)

// Subscriber is satisfied by *notify.Hub.
type Subscriber interface {
	Subscribe() (<-chan models.IntakeEvent, func())
}

type Handler struct {
	svc       *Service
	events    Subscriber
	logger    zerolog.Logger
	heartbeat time.Duration
}

func NewHandler(svc *Service, events Subscriber, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, events: events, logger: logger, heartbeat: 30 * time.Second}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/analytics", auth.RequireRole(string(models.RoleDoctor), string(models.RoleAdmin)))
	g.GET("/dashboard", h.Dashboard)
	g.GET("/export", h.Export)
	g.GET("/symptoms/trends", h.SymptomTrends)
	g.GET("/stream", h.Stream)
}

func (h *Handler) Dashboard(c echo.Context) error {
	stats, err := h.svc.Dashboard(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, stats, "Dashboard statistics retrieved successfully")
}

func (h *Handler) Export(c echo.Context) error {
	from, to, err := ParseRange(c.QueryParam("start_date"), c.QueryParam("end_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition, "attachment; filename="+ExportFilename(h.svc.now()))
	res.WriteHeader(http.StatusOK)

	n, err := h.svc.ExportCSV(c.Request().Context(), res, from, to)
	if err != nil {
		// Headers are already sent.
		h.logger.Error().Err(err).Msg("csv export failed")
		return nil
	}
	h.logger.Debug().Int("rows", n).Msg("csv export")
	return nil
}

func (h *Handler) SymptomTrends(c echo.Context) error {
	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "days must be an integer")
		}
		days = n
	}
	trends, err := h.svc.SymptomTrends(c.Request().Context(), days)
	if errors.Is(err, ErrInvalidRange) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if err != nil {
		return err
	}
	return response.OK(c, trends, "Symptom trends retrieved successfully")
}

// Stream pushes every new intake to the dashboard as server-sent events
// until the client disconnects.
func (h *Handler) Stream(c echo.Context) error {
	events, cancel := h.events.Subscribe()
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error().Err(err).Msg("encode intake event")
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
