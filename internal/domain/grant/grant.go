package grant

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResourceType is a closed set; unknown values are rejected at the boundary.
type ResourceType string

const (
	ResourceDossier  ResourceType = "dossier"
	ResourceDocument ResourceType = "document"
)

func (t ResourceType) IsValid() bool {
	switch t {
	case ResourceDossier, ResourceDocument:
		return true
	}
	return false
}

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusRevoked, StatusExpired:
		return true
	}
	return false
}

// Grant is a capability record: the owning patient delegates scoped,
// time-bound, permission-qualified access to one resource to one physician.
// At most one active grant exists per (physician, resource type, resource id);
// a repeat grant updates the existing row in place.
type Grant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PatientID   uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	PhysicianID uuid.UUID `gorm:"column:physician_id;type:uuid;not null;index:idx_grants_capability"`

	ResourceType ResourceType `gorm:"column:resource_type;type:varchar(20);not null;index:idx_grants_capability"`
	ResourceID   uuid.UUID    `gorm:"column:resource_id;type:uuid;not null;index:idx_grants_capability"`

	CanDownload   bool `gorm:"column:can_download;not null;default:false"`
	CanScreenshot bool `gorm:"column:can_screenshot;not null;default:false"`

	ExpiresAt *time.Time `gorm:"column:expires_at"`
	Status    Status     `gorm:"column:status;type:varchar(20);not null;default:'active';index"`
}

func (Grant) TableName() string {
	return "access_grants"
}

func (g *Grant) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// ExpiredBy reports whether the grant's expiry has passed at the given
// instant. The persisted status flips lazily, on the first verify after that.
func (g *Grant) ExpiredBy(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

// Decision is the answer of the authorization oracle. The zero value denies
// everything.
type Decision struct {
	HasAccess     bool `json:"has_access"`
	CanDownload   bool `json:"can_download"`
	CanScreenshot bool `json:"can_screenshot"`
}

type GrantCommand struct {
	PatientID     uuid.UUID
	PhysicianID   uuid.UUID
	ResourceType  ResourceType
	ResourceID    uuid.UUID
	CanDownload   bool
	CanScreenshot bool
	ExpiresAt     *time.Time
}
