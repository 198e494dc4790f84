package grant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, g *Grant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Grant, error)

	// FindActive returns the single active grant for the capability tuple, or
	// nil if none exists.
	FindActive(ctx context.Context, physicianID uuid.UUID, resourceType ResourceType, resourceID uuid.UUID) (*Grant, error)

	// UpdateActive refreshes flags and expiry on the active grant for the
	// tuple, keeping it active. It reports whether such a row existed, so the
	// caller can insert instead (upsert-by-natural-key).
	UpdateActive(ctx context.Context, physicianID uuid.UUID, resourceType ResourceType, resourceID uuid.UUID,
		canDownload, canScreenshot bool, expiresAt *time.Time) (bool, error)

	// MarkExpired flips an active grant to expired. Used by the write-on-read
	// lazy expiry inside verification.
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkRevoked flips a grant to revoked. Once non-active a grant cannot be
	// reactivated; it must be recreated.
	MarkRevoked(ctx context.Context, id uuid.UUID) error

	// ListByPatient returns every grant issued by the patient, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Grant, error)
}
