package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/internal/domain/dossier"
)

type DossierService struct {
	repo     dossier.Repository
	guard    *ResourceGuard
	auditSvc *AuditService
	log      *zap.Logger
}

func NewDossierService(repo dossier.Repository, guard *ResourceGuard, auditSvc *AuditService, log *zap.Logger) *DossierService {
	return &DossierService{repo: repo, guard: guard, auditSvc: auditSvc, log: log}
}

// CreateDossier opens a new record container owned by the calling patient.
func (s *DossierService) CreateDossier(ctx context.Context, cmd *dossier.CreateDossierCommand, caller *domain.Claims, ip string) (*dossier.Dossier, error) {
	if caller.Role != domain.RolePatient {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(cmd.Title) == "" {
		return nil, &ValidationError{Fields: []string{"title is required"}}
	}

	d := &dossier.Dossier{
		PatientID:   caller.UserID,
		Title:       strings.TrimSpace(cmd.Title),
		Description: cmd.Description,
	}
	if err := s.repo.CreateDossier(ctx, d); err != nil {
		s.log.Error("failed to create dossier", zap.Error(err))
		return nil, fmt.Errorf("creating dossier: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionCreate,
		ResourceType: "dossier",
		ResourceID:   d.ID.String(),
		IPAddress:    ip,
	})

	return d, nil
}

// ListMine returns the calling patient's dossiers.
func (s *DossierService) ListMine(ctx context.Context, caller *domain.Claims) ([]*dossier.Dossier, error) {
	if caller.Role != domain.RolePatient {
		return nil, ErrForbidden
	}
	return s.repo.ListByPatient(ctx, caller.UserID)
}

// AddDocument files a document under a dossier the caller owns. The blob is
// stored by the external file store; only its key is recorded here.
func (s *DossierService) AddDocument(ctx context.Context, cmd *dossier.AddDocumentCommand, caller *domain.Claims, ip string) (*dossier.Document, error) {
	var errs []string
	if strings.TrimSpace(cmd.FileName) == "" {
		errs = append(errs, "file_name is required")
	}
	if strings.TrimSpace(cmd.StorageKey) == "" {
		errs = append(errs, "storage_key is required")
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	d, err := s.repo.GetDossierByID(ctx, cmd.DossierID)
	if err != nil {
		return nil, fmt.Errorf("loading dossier: %w", err)
	}
	if d == nil {
		return nil, dossier.ErrDossierNotFound
	}
	if d.PatientID != caller.UserID {
		return nil, ErrForbidden
	}

	doc := &dossier.Document{
		DossierID:   cmd.DossierID,
		FileName:    strings.TrimSpace(cmd.FileName),
		ContentType: cmd.ContentType,
		StorageKey:  cmd.StorageKey,
		SizeBytes:   cmd.SizeBytes,
		UploadedBy:  caller.UserID,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		s.log.Error("failed to create document", zap.Error(err))
		return nil, fmt.Errorf("creating document: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionCreate,
		ResourceType: "document",
		ResourceID:   doc.ID.String(),
		IPAddress:    ip,
	})

	return doc, nil
}

// ListDocuments returns the documents of a dossier the caller may view,
// going through the resource guard for non-owners.
func (s *DossierService) ListDocuments(ctx context.Context, dossierID uuid.UUID, caller *domain.Claims, ip string) ([]*dossier.Document, error) {
	if _, err := s.guard.CheckDossier(ctx, dossierID, IntentView, caller, ip); err != nil {
		return nil, err
	}
	return s.repo.ListDocuments(ctx, dossierID)
}

// ListComments returns the comments on a document the caller may view.
func (s *DossierService) ListComments(ctx context.Context, documentID uuid.UUID, caller *domain.Claims, ip string) ([]*dossier.Comment, error) {
	if _, err := s.guard.CheckDocument(ctx, documentID, IntentView, caller, ip); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, documentID)
}
