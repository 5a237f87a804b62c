package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/model"
)

// GormShiftStore is the Postgres-backed ShiftStore.
type GormShiftStore struct {
	db *gorm.DB
}

// NewShiftStore returns a ShiftStore backed by the given gorm handle.
func NewShiftStore(db *gorm.DB) *GormShiftStore {
	return &GormShiftStore{db: db}
}

func (s *GormShiftStore) Create(ctx context.Context, shift *model.Shift) error {
	if err := s.db.WithContext(ctx).Create(shift).Error; err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

func (s *GormShiftStore) Get(ctx context.Context, id string) (*model.Shift, error) {
	return s.get(s.db.WithContext(ctx), id, false)
}

// get loads a shift and its assignments, optionally holding a row
// lock on the shift for the duration of the surrounding transaction.
func (s *GormShiftStore) get(tx *gorm.DB, id string, lock bool) (*model.Shift, error) {
	var shift model.Shift
	query := tx.Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") })
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&shift, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Shift not found.")
		}
		return nil, apperr.Wrap(err)
	}
	return &shift, nil
}

// Update applies a field patch. When max_users shrinks, the patch is
// rejected if the shift already has more assignments than the new
// capacity; the check runs under the row lock so a concurrent sign-up
// cannot slip past it.
func (s *GormShiftStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := s.get(tx, id, true)
		if err != nil {
			return err
		}
		if maxUsers, ok := fields["max_users"]; ok {
			if newMax, ok := maxUsers.(int); ok && len(shift.Assignments) > newMax {
				return apperr.Newf(apperr.FailedPrecondition,
					"Cannot reduce capacity below %d signed-up users.", len(shift.Assignments))
			}
		}
		return tx.Model(&model.Shift{}).Where("id = ?", id).Updates(fields).Error
	})
	if err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

// Delete removes the shift and its assignments together.
func (s *GormShiftStore) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shift_id = ?", id).Delete(&model.ShiftAssignment{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Shift{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.New(apperr.NotFound, "Shift not found.")
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

func (s *GormShiftStore) List(ctx context.Context, limit, offset int) ([]model.Shift, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Shift{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.Wrap(err)
	}
	var shifts []model.Shift
	err := s.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Order("date, id").Limit(limit).Offset(offset).Find(&shifts).Error
	if err != nil {
		return nil, 0, apperr.Wrap(err)
	}
	return shifts, total, nil
}

// SignUp checks the sign-up preconditions and appends the assignment
// under a row lock, so two near-simultaneous sign-ups cannot both
// pass the capacity check.
func (s *GormShiftStore) SignUp(ctx context.Context, shiftID string, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := s.get(tx, shiftID, true)
		if err != nil {
			return err
		}
		var user model.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "User not found.")
			}
			return err
		}
		if err := shift.SignUp(userID); err != nil {
			return err
		}
		return tx.Create(&model.ShiftAssignment{ShiftID: shiftID, UserID: userID}).Error
	})
	if err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

// CheckIn marks an assigned user as checked in.
func (s *GormShiftStore) CheckIn(ctx context.Context, shiftID string, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := s.get(tx, shiftID, true)
		if err != nil {
			return err
		}
		if err := shift.CheckIn(userID); err != nil {
			return err
		}
		return tx.Model(&model.ShiftAssignment{}).
			Where("shift_id = ? AND user_id = ?", shiftID, userID).
			Update("checked_in", true).Error
	})
	if err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

// Drop removes the user's assignment unless they have checked in.
func (s *GormShiftStore) Drop(ctx context.Context, shiftID string, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := s.get(tx, shiftID, true)
		if err != nil {
			return err
		}
		if err := shift.Drop(userID); err != nil {
			return err
		}
		return tx.Where("shift_id = ? AND user_id = ?", shiftID, userID).
			Delete(&model.ShiftAssignment{}).Error
	})
	if err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

// CheckInToday scans the user's assignments in sign-up order and
// checks them into the first shift dated day. The scan takes the
// first date match only.
func (s *GormShiftStore) CheckInToday(ctx context.Context, userID uint, day string) (*model.Shift, bool, error) {
	var matched *model.Shift
	var already bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assignments []model.ShiftAssignment
		if err := tx.Where("user_id = ?", userID).Order("created_at, id").Find(&assignments).Error; err != nil {
			return err
		}
		for _, a := range assignments {
			shift, err := s.get(tx, a.ShiftID, true)
			if err != nil {
				return err
			}
			if !shift.IsOn(day) {
				continue
			}
			matched = shift
			if shift.IsCheckedIn(userID) {
				already = true
				return nil
			}
			return tx.Model(&model.ShiftAssignment{}).
				Where("shift_id = ? AND user_id = ?", shift.ID, userID).
				Update("checked_in", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, false, apperr.Wrap(err)
	}
	return matched, already, nil
}
