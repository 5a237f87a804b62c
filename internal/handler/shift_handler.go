package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/model"
	"volunteer-service/pkg/logger"
	"volunteer-service/prometheus"
)

// shiftView is the wire shape of a shift, with the assignment rows
// flattened into the assigned and checked-in id lists.
func shiftView(s *model.Shift) echo.Map {
	return echo.Map{
		"shiftId":       s.ID,
		"date":          s.Date,
		"time":          s.Time,
		"position":      s.Position,
		"maxUsers":      s.MaxUsers,
		"approved":      s.Approved,
		"assignedUsers": s.AssignedUserIDs(),
		"signedInUsers": s.CheckedInUserIDs(),
	}
}

// GetShift returns a shift by id. The read is public.
func (h *Handler) GetShift(c echo.Context) error {
	log := logger.FromContext(c)

	shiftID := c.Param("id")
	if shiftID == "" {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Shift ID is required."))
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	shift, err := h.shifts.Get(c.Request().Context(), shiftID)
	if err != nil {
		log.Error("Failed to load shift", zap.String("shift_id", shiftID), zap.Error(err))
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"shift":   shiftView(shift),
	})
}

// SignUpForShift signs the caller up for a shift. Duplicate sign-ups
// and full shifts are rejected; the store enforces both under a row
// lock.
func (h *Handler) SignUpForShift(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordShiftOperation("signup")

	userID, ok := callerID(c)
	if !ok {
		return unauthenticated(c)
	}

	shiftID := c.Param("id")
	if shiftID == "" {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Shift ID is required."))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.shifts.SignUp(c.Request().Context(), shiftID, userID); err != nil {
		log.Error("Sign-up rejected",
			zap.String("shift_id", shiftID),
			zap.Uint("user_id", userID),
			zap.Error(err))
		prometheus.RecordShiftError(string(apperr.CodeOf(err)))
		return errorJSON(c, err)
	}

	log.Info("User signed up for shift", zap.String("shift_id", shiftID), zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// CheckIntoShift marks the caller as checked into a shift they are
// signed up for.
func (h *Handler) CheckIntoShift(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordShiftOperation("checkin")

	userID, ok := callerID(c)
	if !ok {
		return unauthenticated(c)
	}

	shiftID := c.Param("id")
	if shiftID == "" {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Shift ID is required."))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.shifts.CheckIn(c.Request().Context(), shiftID, userID); err != nil {
		log.Error("Check-in rejected",
			zap.String("shift_id", shiftID),
			zap.Uint("user_id", userID),
			zap.Error(err))
		prometheus.RecordShiftError(string(apperr.CodeOf(err)))
		return errorJSON(c, err)
	}

	log.Info("User checked into shift", zap.String("shift_id", shiftID), zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User checked into shift.",
	})
}

// DropShift removes the caller from a shift they signed up for.
// Dropping is refused after check-in.
func (h *Handler) DropShift(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordShiftOperation("drop")

	userID, ok := callerID(c)
	if !ok {
		return unauthenticated(c)
	}

	shiftID := c.Param("id")
	if shiftID == "" {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Shift ID is required."))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.shifts.Drop(c.Request().Context(), shiftID, userID); err != nil {
		log.Error("Drop rejected",
			zap.String("shift_id", shiftID),
			zap.Uint("user_id", userID),
			zap.Error(err))
		prometheus.RecordShiftError(string(apperr.CodeOf(err)))
		return errorJSON(c, err)
	}

	log.Info("User dropped shift", zap.String("shift_id", shiftID), zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User dropped from shift.",
	})
}
