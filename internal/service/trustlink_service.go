package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/internal/domain/trustlink"
	"github.com/telecare-health/telecare/pkg/metrics"
)

// PhysicianDirectory answers "does physician X exist, and is X verified?".
// It returns nil (and no error) when no physician with that id exists.
type PhysicianDirectory interface {
	FindPhysician(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type TrustLinkService struct {
	repo      trustlink.Repository
	directory PhysicianDirectory
	auditSvc  *AuditService
	mx        *metrics.Collector
	log       *zap.Logger
}

func NewTrustLinkService(
	repo trustlink.Repository,
	directory PhysicianDirectory,
	auditSvc *AuditService,
	mx *metrics.Collector,
	log *zap.Logger,
) *TrustLinkService {
	return &TrustLinkService{repo: repo, directory: directory, auditSvc: auditSvc, mx: mx, log: log}
}

// Request creates a pending link from the calling patient to a verified
// physician. At most one pending-or-accepted link may exist per pair; a new
// request is allowed again once the previous link has been revoked.
func (s *TrustLinkService) Request(ctx context.Context, physicianID uuid.UUID, caller *domain.Claims, ip string) (*trustlink.TrustLink, error) {
	if caller.Role != domain.RolePatient {
		return nil, ErrForbidden
	}

	physician, err := s.directory.FindPhysician(ctx, physicianID)
	if err != nil {
		return nil, fmt.Errorf("looking up physician: %w", err)
	}
	if physician == nil {
		return nil, trustlink.ErrUnknownPhysician
	}
	if !physician.IsVerifiedPhysician() {
		return nil, trustlink.ErrUnverifiedPhysician
	}

	current, err := s.repo.FindCurrent(ctx, caller.UserID, physicianID)
	if err != nil {
		return nil, fmt.Errorf("checking existing link: %w", err)
	}
	if current != nil {
		return nil, trustlink.ErrDuplicateActiveLink
	}

	link := &trustlink.TrustLink{
		PatientID:   caller.UserID,
		PhysicianID: physicianID,
		Status:      trustlink.StatusPending,
	}
	if err := s.repo.Create(ctx, link); err != nil {
		s.log.Error("failed to create trust link", zap.Error(err))
		return nil, fmt.Errorf("creating trust link: %w", err)
	}

	s.mx.LinkTransitionsTotal.WithLabelValues(string(trustlink.StatusPending)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionCreate,
		ResourceType: "trust_link",
		ResourceID:   link.ID.String(),
		IPAddress:    ip,
	})

	s.log.Info("trust link requested",
		zap.String("link_id", link.ID.String()),
		zap.String("patient_id", caller.UserID.String()),
		zap.String("physician_id", physicianID.String()),
	)

	return link, nil
}

// Accept moves a pending link to accepted. Only the physician named in the
// link may accept, and the transition is a conditional single-row update so a
// concurrent revoke can never be overwritten.
func (s *TrustLinkService) Accept(ctx context.Context, linkID uuid.UUID, caller *domain.Claims, ip string) (*trustlink.TrustLink, error) {
	link, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("loading trust link: %w", err)
	}
	if link == nil {
		return nil, trustlink.ErrLinkNotFound
	}
	if link.PhysicianID != caller.UserID {
		return nil, trustlink.ErrNotOwner
	}

	now := time.Now()
	ok, err := s.repo.Accept(ctx, linkID, now)
	if err != nil {
		return nil, fmt.Errorf("accepting trust link: %w", err)
	}
	if !ok {
		// The row was no longer pending when the write landed. Re-read to
		// report which terminal state won.
		link, err = s.repo.GetByID(ctx, linkID)
		if err != nil || link == nil {
			return nil, trustlink.ErrLinkNotFound
		}
		if link.Status == trustlink.StatusAccepted {
			return nil, trustlink.ErrAlreadyAccepted
		}
		return nil, trustlink.ErrAlreadyRevoked
	}

	link.Status = trustlink.StatusAccepted
	link.AcceptedAt = &now

	s.mx.LinkTransitionsTotal.WithLabelValues(string(trustlink.StatusAccepted)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionUpdate,
		ResourceType: "trust_link",
		ResourceID:   linkID.String(),
		IPAddress:    ip,
		Detail:       `{"status":"accepted"}`,
	})

	s.log.Info("trust link accepted",
		zap.String("link_id", linkID.String()),
		zap.String("physician_id", caller.UserID.String()),
	)

	return link, nil
}

// Revoke moves a link to revoked. Either named party may revoke, from any
// state; revoking an already-revoked link is a no-op. AcceptedAt is never
// cleared, history is preserved.
func (s *TrustLinkService) Revoke(ctx context.Context, linkID uuid.UUID, caller *domain.Claims, ip string) error {
	link, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return fmt.Errorf("loading trust link: %w", err)
	}
	if link == nil {
		return trustlink.ErrLinkNotFound
	}
	if !link.IsParty(caller.UserID) {
		return trustlink.ErrNotParty
	}

	changed, err := s.repo.Revoke(ctx, linkID, caller.UserID, time.Now())
	if err != nil {
		return fmt.Errorf("revoking trust link: %w", err)
	}
	if !changed {
		// Already revoked; nothing to record.
		return nil
	}

	s.mx.LinkTransitionsTotal.WithLabelValues(string(trustlink.StatusRevoked)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionRevoke,
		ResourceType: "trust_link",
		ResourceID:   linkID.String(),
		IPAddress:    ip,
	})

	s.log.Info("trust link revoked",
		zap.String("link_id", linkID.String()),
		zap.String("revoked_by", caller.UserID.String()),
	)

	return nil
}

// IsEstablished is the messaging gate: true iff an accepted link exists for
// the pair. It is re-evaluated on every send so a mid-conversation revoke
// takes effect on the next attempt.
func (s *TrustLinkService) IsEstablished(ctx context.Context, patientID, physicianID uuid.UUID) (bool, error) {
	return s.repo.ExistsAccepted(ctx, patientID, physicianID)
}

// ListMine returns every link the caller is a party to, newest first.
func (s *TrustLinkService) ListMine(ctx context.Context, caller *domain.Claims) ([]*trustlink.TrustLink, error) {
	return s.repo.ListForUser(ctx, caller.UserID)
}
