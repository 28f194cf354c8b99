package prescription

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the prescription endpoints. The QR image endpoint is
// on the public group: it authenticates via the userId query parameter so the
// image can be fetched by <img> tags without a session header.
func (h *Handler) RegisterRoutes(api *echo.Group, authed *echo.Group) {
	api.GET("/prescriptions/:id/qr-image", h.QRImage)

	authed.POST("/prescriptions/:consultId", h.Create, auth.RequireRole("gp"))
	authed.GET("/prescriptions", h.ListMine)
	authed.GET("/prescriptions/:id", h.Get)
	authed.POST("/prescriptions/:id/download-pdf", h.DownloadPDF)
	authed.POST("/prescriptions/:id/dispense", h.Dispense, auth.RequireRole("pharmacy"))
}

type createRequest struct {
	PatientID string `json:"patientId"`
	Items     []Item `json:"items"`
}

func (h *Handler) Create(c echo.Context) error {
	consultID, err := uuid.Parse(c.Param("consultId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consult id")
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	p, err := h.svc.Create(c.Request().Context(), patientID, &consultID, req.Items)
	if err != nil {
		if errors.Is(err, ErrEmptyItems) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListMine(c echo.Context) error {
	uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	items, err := h.svc.ListByOwner(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing prescriptions")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) QRImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	requester := c.QueryParam("userId")
	if requester == "" {
		requester = auth.UserIDFromContext(c.Request().Context())
	}

	dataURI, err := h.svc.ViewQRImage(c.Request().Context(), id, requester)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"qrDataUri": dataURI})
}

func (h *Handler) DownloadPDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.DownloadPDF(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Dispense(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.MarkDispensed(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// mapError translates the guard/workflow errors into HTTP responses.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	case errors.Is(err, ErrNoToken), errors.Is(err, ErrQRDisabled), errors.Is(err, ErrNotActive):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
