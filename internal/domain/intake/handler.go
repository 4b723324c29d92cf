package intake

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/platform/llm"
	"github.com/medq/medq/internal/platform/response"
	"github.com/medq/medq/pkg/models"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the intake endpoints under api/intake. mw is applied
// to every route; the server passes its per-client rate limiter here.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	g := api.Group("/intake", mw...)
	g.POST("/voice", h.ProcessVoice)
	g.POST("/text", h.ProcessText)
	g.POST("/summarize", h.Summarize)
	g.POST("/medical-chat", h.MedicalChat)
}

func (h *Handler) ProcessVoice(c echo.Context) error {
	fh, err := c.FormFile("audio")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "audio file is required")
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "audio/") {
		return echo.NewHTTPError(http.StatusBadRequest, "File must be an audio file")
	}
	if fh.Size == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyAudio.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read audio file")
	}
	defer f.Close()

	text, err := h.svc.Transcribe(c.Request().Context(), fh.Filename, f)
	if errors.Is(err, llm.ErrUnavailable) {
		return mapError(err)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Error processing voice: "+err.Error())
	}
	return response.OK(c, models.VoiceTranscript{Transcript: text}, "Audio transcribed successfully")
}

func (h *Handler) ProcessText(c echo.Context) error {
	var req models.TextProcessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	out, err := h.svc.ProcessText(c.Request().Context(), req)
	if err != nil {
		return mapError(err)
	}
	return response.OK(c, out, "Text processed successfully")
}

func (h *Handler) Summarize(c echo.Context) error {
	var req models.SummarizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	out, err := h.svc.Summarize(c.Request().Context(), req)
	if err != nil {
		return mapError(err)
	}
	return response.OK(c, out, "Medical summary generated successfully")
}

func (h *Handler) MedicalChat(c echo.Context) error {
	var req models.MedicalChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	out, err := h.svc.MedicalChat(c.Request().Context(), req)
	if err != nil {
		return mapError(err)
	}
	return response.OK(c, out, "Medical conversation processed successfully")
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidStep):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, llm.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Voice transcription is not configured")
	}
	return err
}
