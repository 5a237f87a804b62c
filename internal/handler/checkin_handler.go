package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/middleware"
	"volunteer-service/internal/model"
	"volunteer-service/pkg/logger"
	"volunteer-service/prometheus"
)

// CheckInToday is the kiosk check-in: it finds the given user's first
// shift dated today and checks them in, idempotently. The caller must
// either be checking in as themselves or hold the admin role (a staffed
// kiosk); checking in an arbitrary email without proof of identity is
// not allowed.
func (h *Handler) CheckInToday(c echo.Context) error {
	log := logger.FromContext(c)

	callerUID, ok := callerID(c)
	if !ok {
		return unauthenticated(c)
	}

	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse check-in request", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}
	if err := validate.Struct(&req); err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "A valid email is required."))
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := h.users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		log.Error("Check-in for unknown email", zap.String("email", req.Email), zap.Error(err))
		return errorJSON(c, err)
	}

	if user.ID != callerUID {
		callerEmail, _ := c.Get(middleware.EmailKey).(string)
		caller, err := h.users.GetByEmail(c.Request().Context(), callerEmail)
		if err != nil || !caller.IsAdmin() {
			log.Warn("Check-in attempt for another user",
				zap.Uint("caller_id", callerUID),
				zap.String("target_email", req.Email))
			prometheus.RecordAuthError("checkin_identity_mismatch")
			return errorJSON(c, apperr.New(apperr.PermissionDenied, "Cannot check in another user."))
		}
	}

	today := h.now().Format(model.DateLayout)
	defer prometheus.TrackDBOperation("update")(time.Now())
	shift, already, err := h.shifts.CheckInToday(c.Request().Context(), user.ID, today)
	if err != nil {
		log.Error("Check-in failed", zap.Uint("user_id", user.ID), zap.Error(err))
		return errorJSON(c, err)
	}

	if shift == nil {
		prometheus.RecordCheckIn("no_shift_today")
		log.Info("No shift today", zap.Uint("user_id", user.ID), zap.String("date", today))
		return c.JSON(http.StatusOK, echo.Map{
			"message": "You have no shifts scheduled for today.",
		})
	}

	message := "You are checked in. Have a great shift!"
	if already {
		message = "You are already checked in for today's shift."
		prometheus.RecordCheckIn("already_checked_in")
	} else {
		prometheus.RecordCheckIn("checked_in")
	}

	log.Info("Kiosk check-in",
		zap.Uint("user_id", user.ID),
		zap.String("shift_id", shift.ID),
		zap.Bool("already", already))

	return c.JSON(http.StatusOK, echo.Map{
		"message": message,
		"shift": map[string]interface{}{
			"date":     shift.Date,
			"time":     shift.Time,
			"position": shift.Position,
		},
	})
}
