package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/model"
	"volunteer-service/pkg/jwtutil"
	"volunteer-service/pkg/logger"
	"volunteer-service/prometheus"
)

// Register creates a volunteer account with its profile. New accounts
// start unapproved with the user role and no shifts.
func (h *Handler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		FirstName string `json:"firstName" validate:"required"`
		LastName  string `json:"lastName" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
		Password  string `json:"password" validate:"required"`
		Address   string `json:"address"`
		Birthday  string `json:"birthday"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}

	if err := validate.Struct(&req); err != nil {
		log.Error("Invalid registration data", zap.Error(err))
		prometheus.RecordAuthError("incomplete_registration")
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "firstName, lastName, email and password are required"))
	}

	if len(req.Password) < h.auth.MinPasswordLength {
		prometheus.RecordAuthError("weak_password")
		return errorJSON(c, apperr.Newf(apperr.InvalidArgument,
			"Invalid password provided; must be at least %d characters long", h.auth.MinPasswordLength))
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	if _, err := h.users.GetByEmail(c.Request().Context(), req.Email); err == nil {
		log.Error("User already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return errorJSON(c, apperr.New(apperr.AlreadyExists, "email already registered"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.auth.BcryptCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return errorJSON(c, apperr.New(apperr.Internal, "registration failed"))
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Address:      req.Address,
		Birthday:     req.Birthday,
		Approved:     false,
		Role:         model.RoleUser,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.users.Create(c.Request().Context(), &user); err != nil {
		log.Error("Failed to create user", zap.Error(err))
		prometheus.RecordAuthError("user_creation_failed")
		return errorJSON(c, err)
	}

	log.Info("User registered", zap.String("email", user.Email), zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "User created",
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

// Login verifies credentials and issues a bearer token carrying the
// user's role claim.
func (h *Handler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return errorJSON(c, apperr.New(apperr.InvalidArgument, "invalid request"))
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := h.users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		log.Error("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return errorJSON(c, apperr.New(apperr.Unauthenticated, "invalid credentials"))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Error("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return errorJSON(c, apperr.New(apperr.Unauthenticated, "invalid credentials"))
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return errorJSON(c, apperr.New(apperr.Internal, "token error"))
	}

	prometheus.IncreaseActiveTokens()
	log.Info("User logged in", zap.String("email", user.Email), zap.String("role", user.Role))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"email":    user.Email,
			"role":     user.Role,
			"approved": user.Approved,
		},
	})
}
