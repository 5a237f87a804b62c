package store

import (
	"context"

	"volunteer-service/internal/model"
)

// UserStore is the persistence interface for volunteer accounts.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]model.User, int64, error)
	// CreateInitialAdmin installs the very first admin in a single
	// transaction: it fails with permission-denied once any admin-role
	// row exists, promotes an existing account with the same email, or
	// creates the given record. Returns whether an existing account was
	// promoted. Concurrent calls serialize, so exactly one can win.
	CreateInitialAdmin(ctx context.Context, user *model.User) (promoted bool, err error)
	Promote(ctx context.Context, id uint) error
	SetApproval(ctx context.Context, id uint, approved bool) error
}

// ShiftStore is the persistence interface for shifts and their
// assignments. Sign-up, check-in, drop and capacity-affecting updates
// run inside a transaction holding a row lock on the shift, so the
// capacity and subset invariants hold under concurrent requests.
type ShiftStore interface {
	Create(ctx context.Context, shift *model.Shift) error
	Get(ctx context.Context, id string) (*model.Shift, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]model.Shift, int64, error)
	SignUp(ctx context.Context, shiftID string, userID uint) error
	CheckIn(ctx context.Context, shiftID string, userID uint) error
	Drop(ctx context.Context, shiftID string, userID uint) error
	// CheckInToday finds the user's first shift dated day and marks it
	// checked in. It returns the matched shift and whether the user was
	// already checked in; both nil and false when no shift matches.
	CheckInToday(ctx context.Context, userID uint, day string) (*model.Shift, bool, error)
}
