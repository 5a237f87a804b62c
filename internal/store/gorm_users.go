package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/model"
)

// GormUserStore is the Postgres-backed UserStore.
type GormUserStore struct {
	db *gorm.DB
}

// NewUserStore returns a UserStore backed by the given gorm handle.
func NewUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) Create(ctx context.Context, user *model.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.New(apperr.AlreadyExists, "email already registered")
		}
		return apperr.Wrap(err)
	}
	return nil
}

func (s *GormUserStore) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "User not found.")
		}
		return nil, apperr.Wrap(err)
	}
	return &user, nil
}

func (s *GormUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "User not found.")
		}
		return nil, apperr.Wrap(err)
	}
	return &user, nil
}

func (s *GormUserStore) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return apperr.New(apperr.AlreadyExists, "email already registered")
		}
		return apperr.Wrap(result.Error)
	}
	if result.RowsAffected == 0 {
		// Zero rows also happens when the patch changes nothing, so
		// only report not-found when the row is truly absent.
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return apperr.Wrap(err)
		}
		if count == 0 {
			return apperr.New(apperr.NotFound, "User not found.")
		}
	}
	return nil
}

func (s *GormUserStore) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	return s.UpdateFields(ctx, id, map[string]interface{}{"password_hash": passwordHash})
}

// Delete removes the user and every shift assignment referencing them
// in one transaction, so no shift keeps an orphaned user id.
func (s *GormUserStore) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.ShiftAssignment{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.New(apperr.NotFound, "User not found.")
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

func (s *GormUserStore) List(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.Wrap(err)
	}
	var users []model.User
	err := s.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Order("id").Limit(limit).Offset(offset).Find(&users).Error
	if err != nil {
		return nil, 0, apperr.Wrap(err)
	}
	return users, total, nil
}

// bootstrapLockID keys the advisory lock serializing initial-admin
// creation.
const bootstrapLockID = 7600142

// CreateInitialAdmin installs the first admin. The admin count check
// and the write run in one transaction behind an advisory lock, so two
// concurrent bootstrap calls cannot both observe zero admins.
func (s *GormUserStore) CreateInitialAdmin(ctx context.Context, user *model.User) (bool, error) {
	var promoted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", bootstrapLockID).Error; err != nil {
			return err
		}
		var admins int64
		if err := tx.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&admins).Error; err != nil {
			return err
		}
		if admins > 0 {
			return apperr.New(apperr.PermissionDenied, "An admin already exists.")
		}
		var existing model.User
		err := tx.Where("email = ?", user.Email).First(&existing).Error
		switch {
		case err == nil:
			promoted = true
			return tx.Model(&existing).Updates(map[string]interface{}{
				"role":     model.RoleAdmin,
				"approved": true,
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(user).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, apperr.Wrap(err)
	}
	return promoted, nil
}

// Promote grants the admin role and approval in a single update, so
// role and approval cannot diverge.
func (s *GormUserStore) Promote(ctx context.Context, id uint) error {
	return s.UpdateFields(ctx, id, map[string]interface{}{
		"role":     model.RoleAdmin,
		"approved": true,
	})
}

func (s *GormUserStore) SetApproval(ctx context.Context, id uint, approved bool) error {
	return s.UpdateFields(ctx, id, map[string]interface{}{"approved": approved})
}
