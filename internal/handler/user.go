package handler

import (
	"net/http"

	"github.com/deppfellow/users-api/internal/lib/codec"
	"github.com/deppfellow/users-api/internal/model"
	"github.com/deppfellow/users-api/internal/repository"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/labstack/echo/v4"
)

// Action names carried by the users envelopes.
const (
	ActionGetAll      = "getAll"
	ActionGetByID     = "getById"
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionGetMetadata = "getMetadata"
)

// UserHandler maps the /users routes onto the record store.
type UserHandler struct {
	Handler
	users repository.CRUD
}

func NewUserHandler(s *server.Server, users repository.CRUD) *UserHandler {
	return &UserHandler{
		Handler: NewHandler(s),
		users:   users,
	}
}

// GetAllHandler and its siblings build the echo handlers of the users routes.
func (h *UserHandler) GetAllHandler() echo.HandlerFunc {
	return HandleAction(h.Handler, ActionGetAll, h.GetAll, http.StatusOK, newEmptyRequest)
}

func (h *UserHandler) GetByIDHandler() echo.HandlerFunc {
	return HandleAction(h.Handler, ActionGetByID, h.GetByID, http.StatusOK, newUserIDRequest)
}

func (h *UserHandler) CreateHandler() echo.HandlerFunc {
	return HandleAction(h.Handler, ActionCreate, h.Create, http.StatusCreated, newEmptyRequest)
}

func (h *UserHandler) UpdateHandler() echo.HandlerFunc {
	return HandleAction(h.Handler, ActionUpdate, h.Update, http.StatusOK, newUserIDRequest)
}

func (h *UserHandler) DeleteHandler() echo.HandlerFunc {
	return HandleAction(h.Handler, ActionDelete, h.Delete, http.StatusOK, newUserIDRequest)
}

func (h *UserHandler) GetAll(c echo.Context, _ *EmptyRequest) ([]model.User, bool, error) {
	users, err := h.users.GetAll(c.Request().Context())
	return users, true, err
}

func (h *UserHandler) GetByID(c echo.Context, req *UserIDRequest) (model.User, bool, error) {
	return h.users.GetByID(c.Request().Context(), req.ID)
}

func (h *UserHandler) Create(c echo.Context, _ *EmptyRequest) (model.User, bool, error) {
	attrs, err := h.decodeBody(c)
	if err != nil {
		return nil, false, err
	}

	user, err := h.users.Create(c.Request().Context(), attrs)
	return user, true, err
}

func (h *UserHandler) Update(c echo.Context, req *UserIDRequest) (model.User, bool, error) {
	attrs, err := h.decodeBody(c)
	if err != nil {
		return nil, false, err
	}

	return h.users.Update(c.Request().Context(), req.ID, attrs)
}

func (h *UserHandler) Delete(c echo.Context, req *UserIDRequest) (model.Filter, bool, error) {
	return h.users.Delete(c.Request().Context(), req.ID)
}

// decodeBody reads the record attributes from the request body.
func (h *UserHandler) decodeBody(c echo.Context) (model.User, error) {
	attrs, err := codec.DecodeObject(c.Request().Body, h.server.Config.Server.MaxBodyBytes)
	if err != nil {
		return nil, err
	}
	return model.User(attrs), nil
}
