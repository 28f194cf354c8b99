package auditevent

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(authed *echo.Group) {
	// Clinicians can review the trail for resources they work with.
	authed.GET("/audit-events", h.List, auth.RequireRole("gp", "specialist"))
}

func (h *Handler) List(c echo.Context) error {
	resourceType := c.QueryParam("resourceType")
	resourceID := c.QueryParam("resourceId")
	if resourceType == "" || resourceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resourceType and resourceId are required")
	}

	limit := 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		offset = v
	}

	items, total, err := h.repo.ListByResource(c.Request().Context(), resourceType, resourceID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing audit events")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}
