package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/middleware"
	"volunteer-service/internal/model"
	"volunteer-service/pkg/config"
)

var testAuthConfig = config.AuthConfig{
	BcryptCost:        bcrypt.MinCost,
	MinPasswordLength: 6,
}

// mockUserStore is an in-memory test double for store.UserStore. The
// mutex serializes CreateInitialAdmin the way the real store's
// transaction does, so bootstrap tests may call it concurrently.
type mockUserStore struct {
	mu        sync.Mutex
	users     map[uint]*model.User
	updates   map[uint]map[string]interface{}
	passwords map[uint]string
	deleted   []uint
	promoted  []uint
	approvals map[uint]bool
	nextID    uint
}

func newMockUserStore(users ...*model.User) *mockUserStore {
	m := &mockUserStore{
		users:     map[uint]*model.User{},
		updates:   map[uint]map[string]interface{}{},
		passwords: map[uint]string{},
		approvals: map[uint]bool{},
		nextID:    1,
	}
	for _, u := range users {
		if u.ID == 0 {
			u.ID = m.nextID
		}
		if u.ID >= m.nextID {
			m.nextID = u.ID + 1
		}
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserStore) Create(_ context.Context, user *model.User) error {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return apperr.New(apperr.AlreadyExists, "email already registered")
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *mockUserStore) GetByID(_ context.Context, id uint) (*model.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, apperr.New(apperr.NotFound, "User not found.")
}

func (m *mockUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "User not found.")
}

func (m *mockUserStore) UpdateFields(_ context.Context, id uint, fields map[string]interface{}) error {
	if _, ok := m.users[id]; !ok {
		return apperr.New(apperr.NotFound, "User not found.")
	}
	m.updates[id] = fields
	return nil
}

func (m *mockUserStore) UpdatePassword(_ context.Context, id uint, hash string) error {
	if _, ok := m.users[id]; !ok {
		return apperr.New(apperr.NotFound, "User not found.")
	}
	m.passwords[id] = hash
	return nil
}

func (m *mockUserStore) Delete(_ context.Context, id uint) error {
	if _, ok := m.users[id]; !ok {
		return apperr.New(apperr.NotFound, "User not found.")
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserStore) List(_ context.Context, limit, offset int) ([]model.User, int64, error) {
	var users []model.User
	for id := uint(1); id < m.nextID; id++ {
		if user, ok := m.users[id]; ok {
			users = append(users, *user)
		}
	}
	total := int64(len(users))
	if offset >= len(users) {
		return nil, total, nil
	}
	users = users[offset:]
	if limit < len(users) {
		users = users[:limit]
	}
	return users, total, nil
}

func (m *mockUserStore) CreateInitialAdmin(_ context.Context, user *model.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Role == model.RoleAdmin {
			return false, apperr.New(apperr.PermissionDenied, "An admin already exists.")
		}
	}
	for id, existing := range m.users {
		if existing.Email == user.Email {
			existing.Role = model.RoleAdmin
			existing.Approved = true
			m.promoted = append(m.promoted, id)
			return true, nil
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return false, nil
}

func (m *mockUserStore) Promote(_ context.Context, id uint) error {
	user, ok := m.users[id]
	if !ok {
		return apperr.New(apperr.NotFound, "User not found.")
	}
	user.Role = model.RoleAdmin
	user.Approved = true
	m.promoted = append(m.promoted, id)
	return nil
}

func (m *mockUserStore) SetApproval(_ context.Context, id uint, approved bool) error {
	user, ok := m.users[id]
	if !ok {
		return apperr.New(apperr.NotFound, "User not found.")
	}
	user.Approved = approved
	m.approvals[id] = approved
	return nil
}

// mockShiftStore is an in-memory test double for store.ShiftStore. It
// drives the model state machine, so handler tests exercise the same
// transition rules as the real store.
type mockShiftStore struct {
	order     []string
	shifts    map[string]*model.Shift
	updates   map[string]map[string]interface{}
	updateErr error
	deleted   []string
	nextShift int
}

func newMockShiftStore(shifts ...*model.Shift) *mockShiftStore {
	m := &mockShiftStore{
		shifts:  map[string]*model.Shift{},
		updates: map[string]map[string]interface{}{},
	}
	for _, s := range shifts {
		m.order = append(m.order, s.ID)
		m.shifts[s.ID] = s
	}
	return m
}

func (m *mockShiftStore) Create(_ context.Context, shift *model.Shift) error {
	if shift.ID == "" {
		m.nextShift++
		shift.ID = fmt.Sprintf("shift-%d", m.nextShift)
	}
	m.order = append(m.order, shift.ID)
	m.shifts[shift.ID] = shift
	return nil
}

func (m *mockShiftStore) Get(_ context.Context, id string) (*model.Shift, error) {
	if shift, ok := m.shifts[id]; ok {
		return shift, nil
	}
	return nil, apperr.New(apperr.NotFound, "Shift not found.")
}

func (m *mockShiftStore) Update(_ context.Context, id string, fields map[string]interface{}) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.shifts[id]; !ok {
		return apperr.New(apperr.NotFound, "Shift not found.")
	}
	m.updates[id] = fields
	return nil
}

func (m *mockShiftStore) Delete(_ context.Context, id string) error {
	if _, ok := m.shifts[id]; !ok {
		return apperr.New(apperr.NotFound, "Shift not found.")
	}
	delete(m.shifts, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockShiftStore) List(_ context.Context, limit, offset int) ([]model.Shift, int64, error) {
	var shifts []model.Shift
	for _, id := range m.order {
		if shift, ok := m.shifts[id]; ok {
			shifts = append(shifts, *shift)
		}
	}
	total := int64(len(shifts))
	if offset >= len(shifts) {
		return nil, total, nil
	}
	shifts = shifts[offset:]
	if limit < len(shifts) {
		shifts = shifts[:limit]
	}
	return shifts, total, nil
}

func (m *mockShiftStore) SignUp(ctx context.Context, shiftID string, userID uint) error {
	shift, err := m.Get(ctx, shiftID)
	if err != nil {
		return err
	}
	return shift.SignUp(userID)
}

func (m *mockShiftStore) CheckIn(ctx context.Context, shiftID string, userID uint) error {
	shift, err := m.Get(ctx, shiftID)
	if err != nil {
		return err
	}
	return shift.CheckIn(userID)
}

func (m *mockShiftStore) Drop(ctx context.Context, shiftID string, userID uint) error {
	shift, err := m.Get(ctx, shiftID)
	if err != nil {
		return err
	}
	return shift.Drop(userID)
}

func (m *mockShiftStore) CheckInToday(_ context.Context, userID uint, day string) (*model.Shift, bool, error) {
	for _, id := range m.order {
		shift, ok := m.shifts[id]
		if !ok || !shift.IsAssigned(userID) || !shift.IsOn(day) {
			continue
		}
		if shift.IsCheckedIn(userID) {
			return shift, true, nil
		}
		if err := shift.CheckIn(userID); err != nil {
			return nil, false, err
		}
		return shift, false, nil
	}
	return nil, false, nil
}

// newTestContext builds an echo context around a JSON request and a
// quiet logger.
func newTestContext(t *testing.T, method, path string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	c := echo.New().NewContext(req, rec)
	c.Set("logger", zap.NewNop())
	return c, rec
}

// authenticate simulates AuthMiddleware having validated a token.
func authenticate(c echo.Context, userID uint, email string) {
	c.Set(middleware.UserIDKey, userID)
	c.Set(middleware.EmailKey, email)
}

// decodeBody unmarshals the recorded JSON response.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code apperr.Code) {
	t.Helper()
	require.Equal(t, status, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, string(code), body["code"])
}
