package trustlink

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status transitions:
//
//	pending → accepted → revoked
//	pending → revoked (direct reject)
//
// revoked is terminal for the row, but a brand-new pending link may be created
// for the same pair afterwards.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRevoked  Status = "revoked"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRevoked:
		return true
	}
	return false
}

// TrustLink is the authorization relationship between one patient and one
// physician. Only an accepted link grants messaging rights; it is the single
// gate consulted before any message is persisted.
type TrustLink struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	PatientID   uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index:idx_trust_links_pair"`
	PhysicianID uuid.UUID `gorm:"column:physician_id;type:uuid;not null;index:idx_trust_links_pair"`

	Status Status `gorm:"column:status;type:varchar(20);not null;default:'pending';index"`

	AcceptedAt *time.Time `gorm:"column:accepted_at"`

	// Revocation tracking. AcceptedAt is never cleared; history is preserved.
	RevokedAt *time.Time `gorm:"column:revoked_at"`
	RevokedBy *uuid.UUID `gorm:"column:revoked_by;type:uuid"`
}

func (TrustLink) TableName() string {
	return "trust_links"
}

func (l *TrustLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// IsParty reports whether userID is the patient or the physician named in the
// link. Nobody else may mutate it.
func (l *TrustLink) IsParty(userID uuid.UUID) bool {
	return l.PatientID == userID || l.PhysicianID == userID
}
