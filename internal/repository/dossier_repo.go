package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/telecare-health/telecare/internal/domain/dossier"
)

type DossierRepo struct {
	db *gorm.DB
}

func NewDossierRepo(db *gorm.DB) *DossierRepo {
	return &DossierRepo{db: db}
}

func (r *DossierRepo) CreateDossier(ctx context.Context, d *dossier.Dossier) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DossierRepo) GetDossierByID(ctx context.Context, id uuid.UUID) (*dossier.Dossier, error) {
	var d dossier.Dossier
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *DossierRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*dossier.Dossier, error) {
	var dossiers []*dossier.Dossier
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&dossiers).Error
	if err != nil {
		return nil, err
	}
	return dossiers, nil
}

func (r *DossierRepo) CreateDocument(ctx context.Context, doc *dossier.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DossierRepo) GetDocumentByID(ctx context.Context, id uuid.UUID) (*dossier.Document, error) {
	var doc dossier.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DossierRepo) ListDocuments(ctx context.Context, dossierID uuid.UUID) ([]*dossier.Document, error) {
	var docs []*dossier.Document
	err := r.db.WithContext(ctx).
		Where("dossier_id = ?", dossierID).
		Order("created_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DossierRepo) CreateComment(ctx context.Context, c *dossier.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *DossierRepo) ListComments(ctx context.Context, documentID uuid.UUID) ([]*dossier.Comment, error) {
	var comments []*dossier.Comment
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}
