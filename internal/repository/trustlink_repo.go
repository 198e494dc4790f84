package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/telecare-health/telecare/internal/domain/trustlink"
)

type TrustLinkRepo struct {
	db *gorm.DB
}

func NewTrustLinkRepo(db *gorm.DB) *TrustLinkRepo {
	return &TrustLinkRepo{db: db}
}

func (r *TrustLinkRepo) Create(ctx context.Context, l *trustlink.TrustLink) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *TrustLinkRepo) GetByID(ctx context.Context, id uuid.UUID) (*trustlink.TrustLink, error) {
	var l trustlink.TrustLink
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *TrustLinkRepo) FindCurrent(ctx context.Context, patientID, physicianID uuid.UUID) (*trustlink.TrustLink, error) {
	var l trustlink.TrustLink
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND physician_id = ? AND status IN ?",
			patientID, physicianID, []trustlink.Status{trustlink.StatusPending, trustlink.StatusAccepted}).
		First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *TrustLinkRepo) ExistsAccepted(ctx context.Context, patientID, physicianID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&trustlink.TrustLink{}).
		Where("patient_id = ? AND physician_id = ? AND status = ?",
			patientID, physicianID, trustlink.StatusAccepted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Accept is a compare-and-set: the status predicate in the WHERE clause makes
// concurrent accepts race-safe, exactly one writer sees an affected row.
func (r *TrustLinkRepo) Accept(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&trustlink.TrustLink{}).
		Where("id = ? AND status = ?", id, trustlink.StatusPending).
		Updates(map[string]any{
			"status":      trustlink.StatusAccepted,
			"accepted_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TrustLinkRepo) Revoke(ctx context.Context, id uuid.UUID, by uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&trustlink.TrustLink{}).
		Where("id = ? AND status <> ?", id, trustlink.StatusRevoked).
		Updates(map[string]any{
			"status":     trustlink.StatusRevoked,
			"revoked_at": at,
			"revoked_by": by,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TrustLinkRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*trustlink.TrustLink, error) {
	var links []*trustlink.TrustLink
	err := r.db.WithContext(ctx).
		Where("patient_id = ? OR physician_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}
