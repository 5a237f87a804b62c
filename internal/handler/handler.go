package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/middleware"
	"volunteer-service/internal/store"
	"volunteer-service/pkg/config"
)

var validate = validator.New()

// Handler carries the stores and policy the endpoint handlers need.
type Handler struct {
	users  store.UserStore
	shifts store.ShiftStore
	auth   config.AuthConfig

	// now is swapped in tests to pin "today" for kiosk check-in.
	now func() time.Time
}

// New builds a Handler over the given stores.
func New(users store.UserStore, shifts store.ShiftStore, auth config.AuthConfig) *Handler {
	return &Handler{
		users:  users,
		shifts: shifts,
		auth:   auth,
		now:    time.Now,
	}
}

// callerID returns the authenticated user id set by AuthMiddleware.
func callerID(c echo.Context) (uint, bool) {
	id, ok := c.Get(middleware.UserIDKey).(uint)
	return id, ok
}

// errorJSON writes a coded error body. Unexpected failures surface as
// internal with the underlying message.
func errorJSON(c echo.Context, err error) error {
	return c.JSON(apperr.Status(err), echo.Map{
		"code":  apperr.CodeOf(err),
		"error": err.Error(),
	})
}

func unauthenticated(c echo.Context) error {
	return errorJSON(c, apperr.New(apperr.Unauthenticated, "User must be logged in"))
}
