package consult

import (
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
	authed.POST("/consults", h.SubmitIntake, auth.RequireRole("patient"))
	authed.GET("/consults", h.List)
	authed.GET("/consults/:id", h.Get)
	authed.POST("/consults/:id/claim", h.Claim, auth.RequireRole("gp"))
	authed.POST("/consults/:id/complete", h.Complete, auth.RequireRole("gp"))
	authed.POST("/consults/:id/messages", h.AddMessage)
	authed.GET("/consults/:id/messages", h.ListMessages)
}

func actorFromContext(c echo.Context) (*identity.User, error) {
	ctx := c.Request().Context()
	uid, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	role, err := identity.ParseRole(auth.RoleFromContext(ctx))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	return &identity.User{ID: uid, Role: role, Name: auth.NameFromContext(ctx)}, nil
}

func (h *Handler) SubmitIntake(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var in Intake
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	consult, err := h.svc.SubmitIntake(c.Request().Context(), actor.ID, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, consult)
}

func (h *Handler) List(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListFor(c.Request().Context(), actor)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing consults")
	}
	if items == nil {
		items = []*Consult{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	consult, err := h.svc.Get(c.Request().Context(), id, actor)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, consult)
}

func (h *Handler) Claim(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	consult, err := h.svc.Claim(c.Request().Context(), id, actor.ID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, consult)
}

func (h *Handler) Complete(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	consult, err := h.svc.Complete(c.Request().Context(), id, actor.ID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, consult)
}

type messageRequest struct {
	Body string `json:"body"`
}

func (h *Handler) AddMessage(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.AddMessage(c.Request().Context(), id, actor, req.Body)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMessages(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	msgs, err := h.svc.ListMessages(c.Request().Context(), id, actor)
	if err != nil {
		return mapError(err)
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "consult not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, ErrAlreadyClaimed), errors.Is(err, ErrNotInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
