package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"volunteer-service/internal/apperr"
)

// DateLayout is the calendar-day format used for shift dates.
const DateLayout = "2006-01-02"

// Shift is a schedulable unit of volunteer work.
type Shift struct {
	ID          string            `json:"shiftId" gorm:"type:varchar(36);primaryKey"`
	Date        string            `json:"date" gorm:"type:varchar(10);index"`
	Time        string            `json:"time" gorm:"type:varchar(64)"`
	Position    string            `json:"position" gorm:"type:varchar(100)"`
	MaxUsers    int               `json:"maxUsers"`
	Approved    bool              `json:"approved" gorm:"default:false"`
	Assignments []ShiftAssignment `json:"-" gorm:"foreignKey:ShiftID"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ShiftAssignment is one user's place on one shift. A row exists from
// sign-up until drop; CheckedIn flips at most once. The unique index
// rules out duplicate sign-ups, and a checked-in user is by
// construction an assigned user.
type ShiftAssignment struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	ShiftID   string    `json:"shiftId" gorm:"type:varchar(36);uniqueIndex:idx_shift_user"`
	UserID    uint      `json:"userId" gorm:"uniqueIndex:idx_shift_user"`
	CheckedIn bool      `json:"checkedIn" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a generated id when none was provided.
func (s *Shift) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// AssignedUserIDs returns the ids of all signed-up users.
func (s *Shift) AssignedUserIDs() []uint {
	ids := make([]uint, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		ids = append(ids, a.UserID)
	}
	return ids
}

// CheckedInUserIDs returns the ids of users who have checked in.
func (s *Shift) CheckedInUserIDs() []uint {
	ids := make([]uint, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		if a.CheckedIn {
			ids = append(ids, a.UserID)
		}
	}
	return ids
}

// IsFull reports whether the shift has reached capacity.
func (s *Shift) IsFull() bool {
	return len(s.Assignments) >= s.MaxUsers
}

func (s *Shift) assignment(userID uint) *ShiftAssignment {
	for i := range s.Assignments {
		if s.Assignments[i].UserID == userID {
			return &s.Assignments[i]
		}
	}
	return nil
}

// IsAssigned reports whether the user is signed up for the shift.
func (s *Shift) IsAssigned(userID uint) bool {
	return s.assignment(userID) != nil
}

// IsCheckedIn reports whether the user has checked into the shift.
func (s *Shift) IsCheckedIn(userID uint) bool {
	a := s.assignment(userID)
	return a != nil && a.CheckedIn
}

// SignUp appends the user to the shift's assignments after checking
// the sign-up preconditions. Callers persist the appended row; the
// store re-runs this under a row lock so capacity holds under
// concurrent requests.
func (s *Shift) SignUp(userID uint) error {
	if s.IsAssigned(userID) {
		return apperr.New(apperr.AlreadyExists, "User already signed up for this shift.")
	}
	if s.IsFull() {
		return apperr.New(apperr.ResourceExhausted, "Shift is full.")
	}
	s.Assignments = append(s.Assignments, ShiftAssignment{ShiftID: s.ID, UserID: userID})
	return nil
}

// CheckIn marks the user's assignment as checked in. The user must be
// signed up and not yet checked in.
func (s *Shift) CheckIn(userID uint) error {
	a := s.assignment(userID)
	if a == nil {
		return apperr.New(apperr.FailedPrecondition, "User is not signed up for this shift.")
	}
	if a.CheckedIn {
		return apperr.New(apperr.AlreadyExists, "User already checked in.")
	}
	a.CheckedIn = true
	return nil
}

// Drop removes the user's assignment. Dropping is refused once the
// user has checked in. Dropping a shift the user never signed up for
// is a no-op.
func (s *Shift) Drop(userID uint) error {
	a := s.assignment(userID)
	if a == nil {
		return nil
	}
	if a.CheckedIn {
		return apperr.New(apperr.FailedPrecondition, "Cannot drop a shift after checking in.")
	}
	kept := s.Assignments[:0]
	for _, existing := range s.Assignments {
		if existing.UserID != userID {
			kept = append(kept, existing)
		}
	}
	s.Assignments = kept
	return nil
}

// IsOn reports whether the shift falls on the given calendar day.
func (s *Shift) IsOn(day string) bool {
	return s.Date == day
}
