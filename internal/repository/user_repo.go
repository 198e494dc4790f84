package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/telecare-health/telecare/internal/domain"
)

const (
	maxFailedLogins = 5
	lockoutWindow   = 15 * time.Minute
)

// UserRepo backs account lookup, login attempt tracking, and the directory
// interfaces the services consume.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// FindUser satisfies the services' UserLookup interface.
func (r *UserRepo) FindUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.FindByID(ctx, id)
}

// FindPhysician satisfies the trust link service's PhysicianDirectory
// interface. It returns nil for missing users and for non-physicians alike;
// the caller decides what the distinction means.
func (r *UserRepo) FindPhysician(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Role != domain.RolePhysician {
		return nil, nil
	}
	return u, nil
}

// UpdateLoginAttempt records the outcome of a login. Failures accumulate; on
// the fifth consecutive failure the account locks for fifteen minutes. A
// success resets the counter and stamps the login time.
func (r *UserRepo) UpdateLoginAttempt(ctx context.Context, id uuid.UUID, success bool) error {
	if success {
		now := time.Now()
		return r.db.WithContext(ctx).Model(&domain.User{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"failed_login_count": 0,
				"locked_until":       nil,
				"last_login_at":      now,
			}).Error
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if err := tx.Where("id = ?", id).First(&u).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"failed_login_count": u.FailedLoginCount + 1,
		}
		if u.FailedLoginCount+1 >= maxFailedLogins {
			lockedUntil := time.Now().Add(lockoutWindow)
			updates["locked_until"] = lockedUntil
		}

		return tx.Model(&domain.User{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Update("password_hash", hash).Error
}

// VerifyPhysician stamps the verification time on a physician account.
func (r *UserRepo) VerifyPhysician(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND role = ?", id, domain.RolePhysician).
		Update("verified_at", at).Error
}

// ListPhysicians returns active physicians, optionally filtered by specialty.
func (r *UserRepo) ListPhysicians(ctx context.Context, specialty string) ([]*domain.User, error) {
	q := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", domain.RolePhysician, true)
	if specialty != "" {
		q = q.Where("specialty = ?", specialty)
	}

	var users []*domain.User
	if err := q.Order("last_name, first_name").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
