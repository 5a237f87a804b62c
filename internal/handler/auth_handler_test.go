package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/model"
)

func TestRegister(t *testing.T) {
	users := newMockUserStore()
	h := New(users, newMockShiftStore(), testAuthConfig)

	c, rec := newTestContext(t, http.MethodPost, "/auth/register", map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "ada@example.com",
		"password":  "secret123",
		"address":   "12 Analytical Way",
		"birthday":  "1815-12-10",
	})

	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	created, err := users.GetByEmail(c.Request().Context(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, created.Role)
	assert.False(t, created.Approved)
	assert.Empty(t, created.ShiftIDs())
	assert.NotEqual(t, "secret123", created.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newMockUserStore(volunteer(1, "ada@example.com"))
	h := New(users, newMockShiftStore(), testAuthConfig)

	c, rec := newTestContext(t, http.MethodPost, "/auth/register", map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "ada@example.com",
		"password":  "secret123",
	})

	require.NoError(t, h.Register(c))
	assertErrorCode(t, rec, http.StatusConflict, apperr.AlreadyExists)
}

func TestRegisterMissingFields(t *testing.T) {
	h := New(newMockUserStore(), newMockShiftStore(), testAuthConfig)

	c, rec := newTestContext(t, http.MethodPost, "/auth/register", map[string]string{
		"email": "ada@example.com",
	})

	require.NoError(t, h.Register(c))
	assertErrorCode(t, rec, http.StatusBadRequest, apperr.InvalidArgument)
}

func TestRegisterShortPassword(t *testing.T) {
	h := New(newMockUserStore(), newMockShiftStore(), testAuthConfig)

	c, rec := newTestContext(t, http.MethodPost, "/auth/register", map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "ada@example.com",
		"password":  "pw",
	})

	require.NoError(t, h.Register(c))
	assertErrorCode(t, rec, http.StatusBadRequest, apperr.InvalidArgument)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := volunteer(1, "ada@example.com")
	user.PasswordHash = string(hash)

	h := New(newMockUserStore(user), newMockShiftStore(), testAuthConfig)

	c, rec := newTestContext(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "secret123",
	})

	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["token"])
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := volunteer(1, "ada@example.com")
	user.PasswordHash = string(hash)

	h := New(newMockUserStore(user), newMockShiftStore(), testAuthConfig)

	c, rec := newTestContext(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})

	require.NoError(t, h.Login(c))
	assertErrorCode(t, rec, http.StatusUnauthorized, apperr.Unauthenticated)
}

func TestLoginUnknownUser(t *testing.T) {
	h := New(newMockUserStore(), newMockShiftStore(), testAuthConfig)

	c, rec := newTestContext(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "secret123",
	})

	require.NoError(t, h.Login(c))
	assertErrorCode(t, rec, http.StatusUnauthorized, apperr.Unauthenticated)
}
