package referral

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(authed *echo.Group) {
	authed.POST("/referrals", h.Propose, auth.RequireRole("gp"))
	authed.GET("/referrals", h.List)
	authed.POST("/referrals/:id/accept", h.Accept, auth.RequireRole("specialist"))
	authed.POST("/referrals/:id/complete", h.Complete, auth.RequireRole("specialist"))
}

type proposeRequest struct {
	PatientID    string `json:"patientId"`
	SpecialistID string `json:"specialistId"`
	Reason       string `json:"reason"`
}

func (h *Handler) Propose(c echo.Context) error {
	gpID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	var req proposeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	specialistID, err := uuid.Parse(req.SpecialistID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid specialist id")
	}

	ref, err := h.svc.Propose(c.Request().Context(), gpID, patientID, specialistID, req.Reason)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ref)
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
		return echo.NewHTTPError(http.StatusInternalServerError, "listing referrals")
	}
	if items == nil {
		items = []*Referral{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Accept(c echo.Context) error {
	return h.transition(c, h.svc.Accept)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, h.svc.Complete)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id, specialistID uuid.UUID) (*Referral, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	ref, err := fn(c.Request().Context(), id, uid)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "referral not found")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		case errors.Is(err, ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}
	return c.JSON(http.StatusOK, ref)
}
