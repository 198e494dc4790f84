package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/internal/domain/dossier"
	"github.com/telecare-health/telecare/internal/domain/grant"
)

// AccessIntent is what the caller wants to do with the resource. Viewing and
// commenting are covered by any access; downloading additionally requires the
// grant's download flag.
type AccessIntent string

const (
	IntentView     AccessIntent = "view"
	IntentDownload AccessIntent = "download"
	IntentComment  AccessIntent = "comment"
)

// ResourceGuard composes grant verification with resource ownership. Patients
// always have unconditional access to their own resources; physicians go
// through the grant oracle, keyed on the owning dossier.
type ResourceGuard struct {
	dossiers dossier.Repository
	grants   *GrantService
	auditSvc *AuditService
	log      *zap.Logger
}

func NewResourceGuard(
	dossiers dossier.Repository,
	grants *GrantService,
	auditSvc *AuditService,
	log *zap.Logger,
) *ResourceGuard {
	return &ResourceGuard{dossiers: dossiers, grants: grants, auditSvc: auditSvc, log: log}
}

// CheckDossier authorizes the given intent against a dossier and returns it.
func (g *ResourceGuard) CheckDossier(ctx context.Context, dossierID uuid.UUID, intent AccessIntent, caller *domain.Claims, ip string) (*dossier.Dossier, error) {
	d, err := g.dossiers.GetDossierByID(ctx, dossierID)
	if err != nil {
		return nil, fmt.Errorf("loading dossier: %w", err)
	}
	if d == nil {
		return nil, dossier.ErrDossierNotFound
	}

	if err := g.authorize(ctx, d, uuid.Nil, intent, caller); err != nil {
		return nil, err
	}

	g.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionRead,
		ResourceType: "dossier",
		ResourceID:   dossierID.String(),
		IPAddress:    ip,
		Detail:       fmt.Sprintf(`{"intent":"%s"}`, intent),
	})

	return d, nil
}

// CheckDocument authorizes the given intent against a document. The grant
// oracle is consulted with the owning dossier id: a grant on a dossier covers
// every document filed under it.
func (g *ResourceGuard) CheckDocument(ctx context.Context, documentID uuid.UUID, intent AccessIntent, caller *domain.Claims, ip string) (*dossier.Document, error) {
	doc, err := g.dossiers.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	if doc == nil {
		return nil, dossier.ErrDocumentNotFound
	}

	d, err := g.dossiers.GetDossierByID(ctx, doc.DossierID)
	if err != nil {
		return nil, fmt.Errorf("resolving owning dossier: %w", err)
	}
	if d == nil {
		return nil, dossier.ErrDossierNotFound
	}

	if err := g.authorize(ctx, d, documentID, intent, caller); err != nil {
		return nil, err
	}

	g.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionRead,
		ResourceType: "document",
		ResourceID:   documentID.String(),
		IPAddress:    ip,
		Detail:       fmt.Sprintf(`{"intent":"%s"}`, intent),
	})

	return doc, nil
}

// Comment authorizes comment intent on a document and records the comment.
func (g *ResourceGuard) Comment(ctx context.Context, documentID uuid.UUID, body string, caller *domain.Claims, ip string) (*dossier.Comment, error) {
	if body == "" {
		return nil, &ValidationError{Fields: []string{"body is required"}}
	}

	doc, err := g.CheckDocument(ctx, documentID, IntentComment, caller, ip)
	if err != nil {
		return nil, err
	}

	c := &dossier.Comment{
		DocumentID: doc.ID,
		AuthorID:   caller.UserID,
		Body:       body,
	}
	if err := g.dossiers.CreateComment(ctx, c); err != nil {
		g.log.Error("failed to create comment", zap.Error(err))
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	return c, nil
}

// authorize applies the access rules for one dossier (and optionally the
// document inside it being touched).
func (g *ResourceGuard) authorize(ctx context.Context, d *dossier.Dossier, documentID uuid.UUID, intent AccessIntent, caller *domain.Claims) error {
	// The owning patient is never gated by grants.
	if caller.UserID == d.PatientID {
		return nil
	}

	if caller.Role != domain.RolePhysician {
		return ErrForbidden
	}

	dec, err := g.grants.Verify(ctx, caller.UserID, grant.ResourceDossier, d.ID)
	if err != nil {
		return err
	}
	if !dec.HasAccess && documentID != uuid.Nil {
		// Rare document-scoped grant; the dossier is still the usual unit of
		// sharing.
		dec, err = g.grants.Verify(ctx, caller.UserID, grant.ResourceDocument, documentID)
		if err != nil {
			return err
		}
	}
	if !dec.HasAccess {
		return ErrForbidden
	}
	if intent == IntentDownload && !dec.CanDownload {
		return ErrDownloadNotPermitted
	}
	return nil
}
