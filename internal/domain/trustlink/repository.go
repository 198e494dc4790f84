package trustlink

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, l *TrustLink) error
	GetByID(ctx context.Context, id uuid.UUID) (*TrustLink, error)

	// FindCurrent returns the pending or accepted link for the pair, or nil if
	// only revoked links (or none) exist.
	FindCurrent(ctx context.Context, patientID, physicianID uuid.UUID) (*TrustLink, error)

	// ExistsAccepted is the messaging gate: true iff an accepted link exists
	// for the pair. Callers must not cache the answer across requests.
	ExistsAccepted(ctx context.Context, patientID, physicianID uuid.UUID) (bool, error)

	// Accept is a conditional single-row update from pending to accepted.
	// It reports whether a row was affected; zero rows means the link was no
	// longer pending when the write landed.
	Accept(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// Revoke moves any non-revoked link to revoked, recording who revoked it.
	// Zero rows affected means the link was already revoked.
	Revoke(ctx context.Context, id uuid.UUID, by uuid.UUID, at time.Time) (bool, error)

	// ListForUser returns every link the user is a party to, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*TrustLink, error)
}
