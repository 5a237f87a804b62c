package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/model"
	"volunteer-service/pkg/logger"
	"volunteer-service/prometheus"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// shiftUpdateFields maps the admin-patchable shift fields to their
// database columns.
var shiftUpdateFields = map[string]string{
	"date":     "date",
	"time":     "time",
	"position": "position",
	"approved": "approved",
	"maxUsers": "max_users",
}

// pagination reads limit/offset query parameters with sane bounds.
func pagination(c echo.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// CreateShift creates a shift with an empty assignment list.
func (h *Handler) CreateShift(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordShiftOperation("create")

	var req struct {
		Date     string `json:"date" validate:"required"`
		Time     string `json:"time" validate:"required"`
		Position string `json:"position" validate:"required"`
		MaxUsers int    `json:"maxUsers" validate:"required,min=1"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse shift creation request", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}
	if err := validate.Struct(&req); err != nil {
		log.Error("Invalid shift data", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Missing required shift fields."))
	}
	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "date must be formatted YYYY-MM-DD"))
	}

	shift := model.Shift{
		Date:     req.Date,
		Time:     req.Time,
		Position: req.Position,
		MaxUsers: req.MaxUsers,
		Approved: false,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.shifts.Create(c.Request().Context(), &shift); err != nil {
		log.Error("Failed to create shift", zap.Error(err))
		return errorJSON(c, err)
	}

	log.Info("Shift created",
		zap.String("shift_id", shift.ID),
		zap.String("date", shift.Date),
		zap.String("position", shift.Position))
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"shiftId": shift.ID,
	})
}

// UpdateShift applies a whitelisted patch to a shift. Capacity can
// never drop below the current number of signed-up users.
func (h *Handler) UpdateShift(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordShiftOperation("update")

	shiftID := c.Param("id")
	if shiftID == "" {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Shift ID is required."))
	}

	var req map[string]interface{}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse shift update", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}

	payload := map[string]interface{}{}
	for key, value := range req {
		column, allowed := shiftUpdateFields[key]
		if !allowed {
			continue
		}
		if key == "maxUsers" {
			// JSON numbers arrive as float64
			parsed, ok := value.(float64)
			if !ok || parsed < 1 || parsed != float64(int(parsed)) {
				return errorJSON(c, apperr.New(apperr.InvalidArgument, "maxUsers must be a positive integer"))
			}
			payload[column] = int(parsed)
			continue
		}
		if key == "date" {
			raw, ok := value.(string)
			if !ok {
				return errorJSON(c, apperr.New(apperr.InvalidArgument, "date must be formatted YYYY-MM-DD"))
			}
			if _, err := time.Parse(model.DateLayout, raw); err != nil {
				return errorJSON(c, apperr.New(apperr.InvalidArgument, "date must be formatted YYYY-MM-DD"))
			}
		}
		payload[column] = value
	}

	if len(payload) == 0 {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "No valid fields to update"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.shifts.Update(c.Request().Context(), shiftID, payload); err != nil {
		log.Error("Failed to update shift", zap.String("shift_id", shiftID), zap.Error(err))
		prometheus.RecordShiftError(string(apperr.CodeOf(err)))
		return errorJSON(c, err)
	}

	log.Info("Shift updated", zap.String("shift_id", shiftID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Shift updated successfully.",
	})
}

// DeleteShift removes a shift and its assignments.
func (h *Handler) DeleteShift(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordShiftOperation("delete")

	shiftID := c.Param("id")
	if shiftID == "" {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Shift ID is required."))
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.shifts.Delete(c.Request().Context(), shiftID); err != nil {
		log.Error("Failed to delete shift", zap.String("shift_id", shiftID), zap.Error(err))
		return errorJSON(c, err)
	}

	log.Info("Shift deleted", zap.String("shift_id", shiftID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Shift deleted successfully.",
	})
}

// ListUsers returns a page of user records with the total count.
func (h *Handler) ListUsers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordAdminOperation("list_users")

	limit, offset := pagination(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	users, total, err := h.users.List(c.Request().Context(), limit, offset)
	if err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return errorJSON(c, err)
	}

	views := make([]echo.Map, 0, len(users))
	for i := range users {
		user := &users[i]
		views = append(views, echo.Map{
			"uid":       user.ID,
			"email":     user.Email,
			"firstName": user.FirstName,
			"lastName":  user.LastName,
			"address":   user.Address,
			"birthday":  user.Birthday,
			"approved":  user.Approved,
			"role":      user.Role,
			"shifts":    user.ShiftIDs(),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"users":   views,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// ListShifts returns a page of shifts with the total count.
func (h *Handler) ListShifts(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordAdminOperation("list_shifts")

	limit, offset := pagination(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	shifts, total, err := h.shifts.List(c.Request().Context(), limit, offset)
	if err != nil {
		log.Error("Failed to list shifts", zap.Error(err))
		return errorJSON(c, err)
	}

	views := make([]echo.Map, 0, len(shifts))
	for i := range shifts {
		views = append(views, shiftView(&shifts[i]))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"shifts":  views,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// adminRequest is shared by CreateAdmin and BootstrapAdmin.
type adminRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Address   string `json:"address"`
	Birthday  string `json:"birthday"`
}

func (h *Handler) createAdminAccount(c echo.Context, req *adminRequest) (*model.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.auth.BcryptCost)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "admin creation failed")
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Address:      req.Address,
		Birthday:     req.Birthday,
		Approved:     true,
		Role:         model.RoleAdmin,
	}
	if err := h.users.Create(c.Request().Context(), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateAdmin creates a new admin account, approved from the start.
func (h *Handler) CreateAdmin(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordAdminOperation("create_admin")

	var req adminRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse admin creation request", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}
	if err := validate.Struct(&req); err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Missing required fields."))
	}
	if len(req.Password) < h.auth.MinPasswordLength {
		return errorJSON(c, apperr.Newf(apperr.InvalidArgument,
			"Invalid password provided; must be at least %d characters long", h.auth.MinPasswordLength))
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	user, err := h.createAdminAccount(c, &req)
	if err != nil {
		log.Error("Failed to create admin", zap.String("email", req.Email), zap.Error(err))
		return errorJSON(c, err)
	}

	log.Info("Admin created", zap.Uint("uid", user.ID), zap.String("email", user.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Admin created successfully.",
		"uid":     user.ID,
	})
}

// UpdateAdminPassword resets another account's password.
func (h *Handler) UpdateAdminPassword(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordAdminOperation("update_admin_password")

	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Invalid UID."))
	}

	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse password reset", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}
	if len(req.NewPassword) < h.auth.MinPasswordLength {
		return errorJSON(c, apperr.Newf(apperr.InvalidArgument,
			"Invalid UID or password; password must be at least %d characters long.", h.auth.MinPasswordLength))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.auth.BcryptCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.Internal, "password update failed"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.users.UpdatePassword(c.Request().Context(), uint(targetID), string(hashedPassword)); err != nil {
		log.Error("Failed to reset password", zap.Uint64("uid", targetID), zap.Error(err))
		return errorJSON(c, err)
	}

	log.Info("Admin password updated", zap.Uint64("uid", targetID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Admin password updated successfully.",
	})
}

// PromoteUser grants an existing user the admin role.
func (h *Handler) PromoteUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordAdminOperation("promote_user")

	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "User ID (uid) is required."))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.users.Promote(c.Request().Context(), uint(targetID)); err != nil {
		log.Error("Failed to promote user", zap.Uint64("uid", targetID), zap.Error(err))
		return errorJSON(c, err)
	}

	log.Info("User promoted to admin", zap.Uint64("uid", targetID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User promoted to admin.",
	})
}

// SetApproval flips the membership approval flag on a user.
func (h *Handler) SetApproval(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordAdminOperation("set_approval")

	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "User ID (uid) is required."))
	}

	var req struct {
		Approved bool `json:"approved"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse approval request", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.users.SetApproval(c.Request().Context(), uint(targetID), req.Approved); err != nil {
		log.Error("Failed to set approval", zap.Uint64("uid", targetID), zap.Error(err))
		return errorJSON(c, err)
	}

	log.Info("User approval updated", zap.Uint64("uid", targetID), zap.Bool("approved", req.Approved))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User approval updated.",
	})
}

// BootstrapAdmin creates or promotes the very first admin. It is
// public but refuses permanently once any admin-role record exists.
// The admin-count check and the write happen in one store transaction,
// so concurrent bootstrap requests cannot both install an admin.
func (h *Handler) BootstrapAdmin(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordAdminOperation("bootstrap")

	var req adminRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse bootstrap request", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}
	if err := validate.Struct(&req); err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "Missing required fields."))
	}
	if len(req.Password) < h.auth.MinPasswordLength {
		return errorJSON(c, apperr.Newf(apperr.InvalidArgument,
			"Invalid password provided; must be at least %d characters long", h.auth.MinPasswordLength))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.auth.BcryptCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return errorJSON(c, apperr.New(apperr.Internal, "admin creation failed"))
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Address:      req.Address,
		Birthday:     req.Birthday,
		Approved:     true,
		Role:         model.RoleAdmin,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	promoted, err := h.users.CreateInitialAdmin(c.Request().Context(), &user)
	if err != nil {
		if apperr.CodeOf(err) == apperr.PermissionDenied {
			log.Warn("Bootstrap attempted with existing admin", zap.String("email", req.Email))
			prometheus.RecordAuthError("bootstrap_refused")
		} else {
			log.Error("Failed to create initial admin", zap.String("email", req.Email), zap.Error(err))
		}
		return errorJSON(c, err)
	}

	if promoted {
		log.Info("Initial admin promoted", zap.String("email", req.Email))
		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"message": "Initial admin created.",
		})
	}

	log.Info("Initial admin created", zap.Uint("uid", user.ID), zap.String("email", user.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Initial admin created.",
	})
}
