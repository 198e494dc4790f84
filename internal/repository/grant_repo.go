package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/telecare-health/telecare/internal/domain/grant"
)

type GrantRepo struct {
	db *gorm.DB
}

func NewGrantRepo(db *gorm.DB) *GrantRepo {
	return &GrantRepo{db: db}
}

func (r *GrantRepo) Create(ctx context.Context, g *grant.Grant) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *GrantRepo) GetByID(ctx context.Context, id uuid.UUID) (*grant.Grant, error) {
	var g grant.Grant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *GrantRepo) FindActive(ctx context.Context, physicianID uuid.UUID, resourceType grant.ResourceType, resourceID uuid.UUID) (*grant.Grant, error) {
	var g grant.Grant
	err := r.db.WithContext(ctx).
		Where("physician_id = ? AND resource_type = ? AND resource_id = ? AND status = ?",
			physicianID, resourceType, resourceID, grant.StatusActive).
		First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// UpdateActive refreshes the active grant on the natural key in place. Zero
// rows affected tells the caller to insert a new grant instead.
func (r *GrantRepo) UpdateActive(ctx context.Context, physicianID uuid.UUID, resourceType grant.ResourceType, resourceID uuid.UUID,
	canDownload, canScreenshot bool, expiresAt *time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&grant.Grant{}).
		Where("physician_id = ? AND resource_type = ? AND resource_id = ? AND status = ?",
			physicianID, resourceType, resourceID, grant.StatusActive).
		Updates(map[string]any{
			"can_download":   canDownload,
			"can_screenshot": canScreenshot,
			"expires_at":     expiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GrantRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&grant.Grant{}).
		Where("id = ? AND status = ?", id, grant.StatusActive).
		Update("status", grant.StatusExpired)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GrantRepo) MarkRevoked(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&grant.Grant{}).
		Where("id = ?", id).
		Update("status", grant.StatusRevoked).Error
}

func (r *GrantRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*grant.Grant, error) {
	var grants []*grant.Grant
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}
