package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/model"
)

// pinToday fixes the handler clock to the given calendar day.
func pinToday(h *Handler, day string) {
	parsed, _ := time.Parse(model.DateLayout, day)
	h.now = func() time.Time { return parsed }
}

func TestCheckInTodayFirstTime(t *testing.T) {
	shift := frontDeskShift(2)
	require.NoError(t, shift.SignUp(1))

	h := New(newMockUserStore(volunteer(1, "a@example.com")), newMockShiftStore(shift), testAuthConfig)
	pinToday(h, "2025-06-01")

	c, rec := newTestContext(t, http.MethodPost, "/api/checkin", map[string]string{"email": "a@example.com"})
	authenticate(c, 1, "a@example.com")

	require.NoError(t, h.CheckInToday(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "checked in")
	view := body["shift"].(map[string]interface{})
	assert.Equal(t, "2025-06-01", view["date"])
	assert.Equal(t, "9-5", view["time"])
	assert.Equal(t, "Front Desk", view["position"])
	assert.Equal(t, []uint{1}, shift.CheckedInUserIDs())
}

func TestCheckInTodayIsIdempotent(t *testing.T) {
	shift := frontDeskShift(2)
	require.NoError(t, shift.SignUp(1))
	require.NoError(t, shift.CheckIn(1))

	h := New(newMockUserStore(volunteer(1, "a@example.com")), newMockShiftStore(shift), testAuthConfig)
	pinToday(h, "2025-06-01")

	c, rec := newTestContext(t, http.MethodPost, "/api/checkin", map[string]string{"email": "a@example.com"})
	authenticate(c, 1, "a@example.com")

	require.NoError(t, h.CheckInToday(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "already checked in")
	// Still a single check-in entry.
	assert.Equal(t, []uint{1}, shift.CheckedInUserIDs())
}

func TestCheckInTodayNoShiftScheduled(t *testing.T) {
	// Assigned, but the shift is tomorrow.
	shift := frontDeskShift(2)
	shift.Date = "2025-06-02"
	require.NoError(t, shift.SignUp(1))

	h := New(newMockUserStore(volunteer(1, "a@example.com")), newMockShiftStore(shift), testAuthConfig)
	pinToday(h, "2025-06-01")

	c, rec := newTestContext(t, http.MethodPost, "/api/checkin", map[string]string{"email": "a@example.com"})
	authenticate(c, 1, "a@example.com")

	require.NoError(t, h.CheckInToday(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "no shifts")
	assert.Nil(t, body["shift"])
	assert.Empty(t, shift.CheckedInUserIDs())
}

func TestCheckInTodayTakesFirstDateMatch(t *testing.T) {
	first := frontDeskShift(2)
	second := &model.Shift{ID: "shift-2", Date: "2025-06-01", Time: "5-9", Position: "Kitchen", MaxUsers: 2}
	require.NoError(t, first.SignUp(1))
	require.NoError(t, second.SignUp(1))

	h := New(newMockUserStore(volunteer(1, "a@example.com")), newMockShiftStore(first, second), testAuthConfig)
	pinToday(h, "2025-06-01")

	c, rec := newTestContext(t, http.MethodPost, "/api/checkin", map[string]string{"email": "a@example.com"})
	authenticate(c, 1, "a@example.com")

	require.NoError(t, h.CheckInToday(c))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []uint{1}, first.CheckedInUserIDs())
	assert.Empty(t, second.CheckedInUserIDs())
}

func TestCheckInTodayRejectsOtherUsersEmail(t *testing.T) {
	shift := frontDeskShift(2)
	require.NoError(t, shift.SignUp(2))

	users := newMockUserStore(volunteer(1, "a@example.com"), volunteer(2, "b@example.com"))
	h := New(users, newMockShiftStore(shift), testAuthConfig)
	pinToday(h, "2025-06-01")

	c, rec := newTestContext(t, http.MethodPost, "/api/checkin", map[string]string{"email": "b@example.com"})
	authenticate(c, 1, "a@example.com")

	require.NoError(t, h.CheckInToday(c))
	assertErrorCode(t, rec, http.StatusForbidden, apperr.PermissionDenied)
	assert.Empty(t, shift.CheckedInUserIDs())
}

func TestCheckInTodayAdminKiosk(t *testing.T) {
	shift := frontDeskShift(2)
	require.NoError(t, shift.SignUp(2))

	admin := &model.User{ID: 1, Email: "admin@example.com", Role: model.RoleAdmin, Approved: true}
	users := newMockUserStore(admin, volunteer(2, "b@example.com"))
	h := New(users, newMockShiftStore(shift), testAuthConfig)
	pinToday(h, "2025-06-01")

	c, rec := newTestContext(t, http.MethodPost, "/api/checkin", map[string]string{"email": "b@example.com"})
	authenticate(c, 1, "admin@example.com")

	require.NoError(t, h.CheckInToday(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint{2}, shift.CheckedInUserIDs())
}

func TestCheckInTodayUnknownEmail(t *testing.T) {
	h := New(newMockUserStore(volunteer(1, "a@example.com")), newMockShiftStore(), testAuthConfig)
	pinToday(h, "2025-06-01")

	c, rec := newTestContext(t, http.MethodPost, "/api/checkin", map[string]string{"email": "ghost@example.com"})
	authenticate(c, 1, "a@example.com")

	require.NoError(t, h.CheckInToday(c))
	assertErrorCode(t, rec, http.StatusNotFound, apperr.NotFound)
}

func TestCheckInTodayRequiresEmail(t *testing.T) {
	h := New(newMockUserStore(volunteer(1, "a@example.com")), newMockShiftStore(), testAuthConfig)
	pinToday(h, "2025-06-01")

	c, rec := newTestContext(t, http.MethodPost, "/api/checkin", map[string]string{})
	authenticate(c, 1, "a@example.com")

	require.NoError(t, h.CheckInToday(c))
	assertErrorCode(t, rec, http.StatusBadRequest, apperr.InvalidArgument)
}
