package pharmacy

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(authed *echo.Group) {
	authed.POST("/pharmacy/verify", h.Verify, auth.RequireRole("pharmacy"))
}

type verifyRequest struct {
	QRToken string `json:"qrToken"`
}

func (h *Handler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	view, err := h.svc.Resolve(c.Request().Context(), req.QRToken, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			return echo.NewHTTPError(http.StatusNotFound, ErrInvalidToken.Error())
		case errors.Is(err, ErrTokenDisabled):
			return echo.NewHTTPError(http.StatusBadRequest, ErrTokenDisabled.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "verification failed")
		}
	}
	return c.JSON(http.StatusOK, view)
}
