package patient

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/internal/platform/response"
	"github.com/medq/medq/pkg/models"
	"github.com/medq/medq/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient and export endpoints. Submission is
// public; everything else is restricted to doctors and admins.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := auth.RequireRole(string(models.RoleDoctor), string(models.RoleAdmin))

	g := api.Group("/patients")
	g.POST("", h.CreatePatient)
	g.GET("", h.ListPatients, doctor)
	g.GET("/:id", h.GetPatient, doctor)
	g.GET("/:id/summary", h.GetSummary, doctor)
	g.POST("/:id/summary", h.SaveSummary, doctor)
	g.GET("/:id/export/pdf", h.ExportPDF, doctor)

	api.GET("/export/pdf/:id", h.ExportPDF, doctor)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg, err := pagination.FromContext(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Skip)
	if err != nil {
		return fmt.Errorf("list patients: %w", err)
	}
	return response.OK(c, items, fmt.Sprintf("Retrieved %d patients", len(items)))
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in models.PatientCreate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return mapError(err)
	}
	return response.OK(c, p, "Patient created successfully")
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return response.OK(c, p, "Patient retrieved successfully")
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ms, err := h.svc.LatestSummary(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return response.OK(c, ms, "Summary retrieved successfully")
}

type saveSummaryRequest struct {
	SummaryText    string                `json:"summary_text"`
	StructuredData models.StructuredData `json:"structured_data"`
}

func (h *Handler) SaveSummary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req saveSummaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	ms, err := h.svc.SaveSummary(c.Request().Context(), id, req.SummaryText, req.StructuredData)
	if err != nil {
		return mapError(err)
	}
	return response.Created(c, ms, "Summary saved successfully")
}

func (h *Handler) ExportPDF(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, ms, err := h.svc.Report(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	var buf bytes.Buffer
	if err := WritePDF(&buf, p, ms); err != nil {
		return fmt.Errorf("export patient %s: %w", id, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+PDFFilename(id))
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrNoSummary):
		return echo.NewHTTPError(http.StatusNotFound, "No summary found for this patient")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return err
}
