package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"volunteer-service/internal/apperr"
	"volunteer-service/pkg/logger"
	"volunteer-service/prometheus"
)

// profileFields maps the client-updatable profile fields to their
// database columns. Anything else in an update payload is dropped.
var profileFields = map[string]string{
	"firstName": "first_name",
	"lastName":  "last_name",
	"email":     "email",
	"address":   "address",
	"birthday":  "birthday",
}

// GetProfile returns the caller's own record, including the ids of
// shifts they are signed up for.
func (h *Handler) GetProfile(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := callerID(c)
	if !ok {
		return unauthenticated(c)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := h.users.GetByID(c.Request().Context(), userID)
	if err != nil {
		log.Error("Failed to load profile", zap.Uint("user_id", userID), zap.Error(err))
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user":    user,
		"shifts":  user.ShiftIDs(),
	})
}

// UpdateProfile applies a whitelisted partial update to the caller's
// record. A payload with no updatable field is rejected and nothing
// is written.
func (h *Handler) UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := callerID(c)
	if !ok {
		return unauthenticated(c)
	}

	var req map[string]interface{}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse profile update", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}

	payload := map[string]interface{}{}
	for key, value := range req {
		if column, allowed := profileFields[key]; allowed {
			payload[column] = value
		}
	}

	if len(payload) == 0 {
		log.Error("Profile update with no valid fields", zap.Uint("user_id", userID))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "No valid fields to update"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.users.UpdateFields(c.Request().Context(), userID, payload); err != nil {
		log.Error("Failed to update profile", zap.Uint("user_id", userID), zap.Error(err))
		return errorJSON(c, err)
	}

	log.Info("Profile updated", zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User information updated",
	})
}

// ChangePassword sets a new password for the caller.
func (h *Handler) ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := callerID(c)
	if !ok {
		return unauthenticated(c)
	}

	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse password change", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}

	if len(req.NewPassword) < h.auth.MinPasswordLength {
		prometheus.RecordAuthError("weak_password")
		return errorJSON(c, apperr.Newf(apperr.InvalidArgument,
			"Invalid password provided; must be at least %d characters long", h.auth.MinPasswordLength))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.auth.BcryptCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.Internal, "password update failed"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.users.UpdatePassword(c.Request().Context(), userID, string(hashedPassword)); err != nil {
		log.Error("Failed to update password", zap.Uint("user_id", userID), zap.Error(err))
		return errorJSON(c, err)
	}

	log.Info("Password updated", zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Password updated successfully",
	})
}

// DeleteAccount removes the caller's record together with every shift
// assignment referencing it.
func (h *Handler) DeleteAccount(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := callerID(c)
	if !ok {
		return unauthenticated(c)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.users.Delete(c.Request().Context(), userID); err != nil {
		log.Error("Failed to delete user", zap.Uint("user_id", userID), zap.Error(err))
		return errorJSON(c, err)
	}

	log.Info("User deleted", zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User deleted",
	})
}
