package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/internal/domain/dossier"
	"github.com/telecare-health/telecare/internal/domain/grant"
	"github.com/telecare-health/telecare/pkg/metrics"
)

type GrantService struct {
	repo     grant.Repository
	dossiers dossier.Repository
	auditSvc *AuditService
	mx       *metrics.Collector
	log      *zap.Logger
}

func NewGrantService(
	repo grant.Repository,
	dossiers dossier.Repository,
	auditSvc *AuditService,
	mx *metrics.Collector,
	log *zap.Logger,
) *GrantService {
	return &GrantService{repo: repo, dossiers: dossiers, auditSvc: auditSvc, mx: mx, log: log}
}

// Grant issues or refreshes a capability. If an active grant already exists
// for (physician, resource type, resource id) its flags and expiry are updated
// in place; there is never more than one active grant per tuple, so access
// checks are unambiguous about which grant governs.
//
// Sharing is patient-initiated and independent of chat trust: no trust link is
// required between the two parties.
func (s *GrantService) Grant(ctx context.Context, cmd *grant.GrantCommand, caller *domain.Claims, ip string) (*grant.Grant, error) {
	if caller.Role != domain.RolePatient || cmd.PatientID != caller.UserID {
		return nil, ErrForbidden
	}

	if err := s.validateGrant(ctx, cmd, caller.UserID); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateActive(ctx, cmd.PhysicianID, cmd.ResourceType, cmd.ResourceID,
		cmd.CanDownload, cmd.CanScreenshot, cmd.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("updating active grant: %w", err)
	}

	var g *grant.Grant
	if updated {
		g, err = s.repo.FindActive(ctx, cmd.PhysicianID, cmd.ResourceType, cmd.ResourceID)
		if err != nil {
			return nil, fmt.Errorf("reloading grant: %w", err)
		}
	} else {
		g = &grant.Grant{
			PatientID:     cmd.PatientID,
			PhysicianID:   cmd.PhysicianID,
			ResourceType:  cmd.ResourceType,
			ResourceID:    cmd.ResourceID,
			CanDownload:   cmd.CanDownload,
			CanScreenshot: cmd.CanScreenshot,
			ExpiresAt:     cmd.ExpiresAt,
			Status:        grant.StatusActive,
		}
		if err := s.repo.Create(ctx, g); err != nil {
			s.log.Error("failed to create access grant", zap.Error(err))
			return nil, fmt.Errorf("creating access grant: %w", err)
		}
	}

	s.mx.GrantsIssuedTotal.Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionCreate,
		ResourceType: "access_grant",
		ResourceID:   g.ID.String(),
		IPAddress:    ip,
		Detail: fmt.Sprintf(`{"resource_type":"%s","resource_id":"%s","download":%t}`,
			cmd.ResourceType, cmd.ResourceID, cmd.CanDownload),
	})

	s.log.Info("access grant issued",
		zap.String("grant_id", g.ID.String()),
		zap.String("physician_id", cmd.PhysicianID.String()),
		zap.String("resource_type", string(cmd.ResourceType)),
		zap.Bool("refreshed", updated),
	)

	return g, nil
}

// Verify is the authorization oracle consulted before every resource access.
// It is never cached: expiry and revocation must take effect immediately. A
// grant whose expiry has passed is flipped to expired as a side effect of the
// read, so no stale active row is ever honored even if no sweeper has run.
func (s *GrantService) Verify(ctx context.Context, physicianID uuid.UUID, resourceType grant.ResourceType, resourceID uuid.UUID) (grant.Decision, error) {
	if !resourceType.IsValid() {
		return grant.Decision{}, grant.ErrInvalidResourceType
	}

	g, err := s.repo.FindActive(ctx, physicianID, resourceType, resourceID)
	if err != nil {
		return grant.Decision{}, fmt.Errorf("looking up grant: %w", err)
	}
	if g == nil {
		return grant.Decision{}, nil
	}

	if g.ExpiredBy(time.Now()) {
		if _, err := s.repo.MarkExpired(ctx, g.ID); err != nil {
			return grant.Decision{}, fmt.Errorf("expiring grant: %w", err)
		}
		s.mx.GrantsExpiredOnRead.Inc()
		s.log.Info("access grant expired on read", zap.String("grant_id", g.ID.String()))
		return grant.Decision{}, nil
	}

	return grant.Decision{
		HasAccess:     true,
		CanDownload:   g.CanDownload,
		CanScreenshot: g.CanScreenshot,
	}, nil
}

// Revoke withdraws a capability. Only the patient who issued it may revoke;
// once revoked the grant cannot be reactivated, only recreated.
func (s *GrantService) Revoke(ctx context.Context, grantID uuid.UUID, caller *domain.Claims, ip string) error {
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return fmt.Errorf("loading grant: %w", err)
	}
	if g == nil {
		return grant.ErrGrantNotFound
	}
	if g.PatientID != caller.UserID {
		return grant.ErrNotGrantOwner
	}

	if err := s.repo.MarkRevoked(ctx, grantID); err != nil {
		return fmt.Errorf("revoking grant: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionRevoke,
		ResourceType: "access_grant",
		ResourceID:   grantID.String(),
		IPAddress:    ip,
	})

	s.log.Info("access grant revoked",
		zap.String("grant_id", grantID.String()),
		zap.String("patient_id", caller.UserID.String()),
	)

	return nil
}

// ListMine returns every grant the calling patient has issued, newest first.
func (s *GrantService) ListMine(ctx context.Context, caller *domain.Claims) ([]*grant.Grant, error) {
	if caller.Role != domain.RolePatient {
		return nil, ErrForbidden
	}
	return s.repo.ListByPatient(ctx, caller.UserID)
}

func (s *GrantService) validateGrant(ctx context.Context, cmd *grant.GrantCommand, patientID uuid.UUID) error {
	var errs []string

	if !cmd.ResourceType.IsValid() {
		return grant.ErrInvalidResourceType
	}
	if cmd.PhysicianID == uuid.Nil {
		errs = append(errs, "physician_id is required")
	}
	if cmd.ResourceID == uuid.Nil {
		errs = append(errs, "resource_id is required")
	}
	if cmd.ExpiresAt != nil && cmd.ExpiresAt.Before(time.Now()) {
		errs = append(errs, "expires_at cannot be in the past")
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	// The resource must exist and belong to the granting patient. Documents
	// do not carry independent grants; the owning dossier is the unit of
	// sharing.
	owningDossierID := cmd.ResourceID
	if cmd.ResourceType == grant.ResourceDocument {
		doc, err := s.dossiers.GetDocumentByID(ctx, cmd.ResourceID)
		if err != nil {
			return fmt.Errorf("resolving document: %w", err)
		}
		if doc == nil {
			return dossier.ErrDocumentNotFound
		}
		owningDossierID = doc.DossierID
	}

	d, err := s.dossiers.GetDossierByID(ctx, owningDossierID)
	if err != nil {
		return fmt.Errorf("resolving dossier: %w", err)
	}
	if d == nil {
		return dossier.ErrDossierNotFound
	}
	if d.PatientID != patientID {
		return ErrForbidden
	}

	return nil
}
