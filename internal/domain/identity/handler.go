package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/platform/response"
	"github.com/medq/medq/pkg/models"
)

type Handler struct {
	svc     *Service
	devMode bool
}

// NewHandler builds the auth handler. devMode enables create-admin.
func NewHandler(svc *Service, devMode bool) *Handler {
	return &Handler{svc: svc, devMode: devMode}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/login", h.Login)
	g.GET("/me", h.Me)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	g.GET("/verify", h.Verify)
	g.POST("/create-admin", h.CreateAdmin)
}

func (h *Handler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username and password are required")
	}
	res, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
	}
	if err != nil {
		return err
	}
	return response.OK(c, res, "Login successful")
}

func (h *Handler) Me(c echo.Context) error {
	u, err := h.currentUser(c)
	if err != nil {
		return err
	}
	return response.OK(c, u, "User information retrieved")
}

func (h *Handler) Verify(c echo.Context) error {
	u, err := h.currentUser(c)
	if err != nil {
		return err
	}
	return response.OK(c, u, "Token is valid")
}

func (h *Handler) Refresh(c echo.Context) error {
	username, _ := c.Get("username").(string)
	if username == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authentication credentials")
	}
	res, err := h.svc.Refresh(c.Request().Context(), username)
	if err != nil {
		return mapError(err)
	}
	return response.OK(c, res, "Token refreshed successfully")
}

// Logout is stateless; the client discards its token.
func (h *Handler) Logout(c echo.Context) error {
	return response.OK(c, nil, "Logged out successfully")
}

func (h *Handler) CreateAdmin(c echo.Context) error {
	if !h.devMode {
		return echo.NewHTTPError(http.StatusForbidden, "Only available in development mode")
	}
	created, err := h.svc.EnsureDefaultAdmin(c.Request().Context())
	if err != nil {
		return err
	}
	if !created {
		return response.OK(c, nil, "Admin user already exists")
	}
	return response.OK(c, map[string]string{
		"username": DefaultAdminUsername,
		"password": DefaultAdminPassword,
	}, "Admin user created successfully")
}

func (h *Handler) currentUser(c echo.Context) (*models.DoctorUser, error) {
	username, _ := c.Get("username").(string)
	if username == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid authentication credentials")
	}
	u, err := h.svc.Me(c.Request().Context(), username)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	case errors.Is(err, ErrInvalidUser):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrUserExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}
