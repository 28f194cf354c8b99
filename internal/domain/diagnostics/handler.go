package diagnostics

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc            *Service
	maxUploadBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(authed *echo.Group) {
	authed.POST("/diagnostics/orders", h.CreateOrder, auth.RequireRole("gp", "specialist"))
	authed.GET("/diagnostics/orders", h.List)
	authed.POST("/diagnostics/orders/:id/status", h.AdvanceStatus, auth.RequireRole("diagnostics"))
	authed.POST("/diagnostics/orders/:id/results", h.UploadResult, auth.RequireRole("diagnostics"))
}

type createOrderRequest struct {
	PatientID string `json:"patientId"`
	LabID     string `json:"labId"`
	TestType  string `json:"testType"`
}

func (h *Handler) CreateOrder(c echo.Context) error {
	uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	labID, err := uuid.Parse(req.LabID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab id")
	}

	o, err := h.svc.CreateOrder(c.Request().Context(), uid, patientID, labID, req.TestType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	uid, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	role, err := identity.ParseRole(auth.RoleFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	items, err := h.svc.ListFor(ctx, &identity.User{ID: uid, Role: role})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing orders")
	}
	if items == nil {
		items = []*Order{}
	}
	return c.JSON(http.StatusOK, items)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) AdvanceStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	o, err := h.svc.AdvanceStatus(c.Request().Context(), id, uid, status)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) UploadResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, h.maxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading upload")
	}
	if int64(len(data)) > h.maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload too large")
	}
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	o, err := h.svc.UploadResult(c.Request().Context(), id, uid, data, contentType)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyCompleted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
