package dossier

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateDossier(ctx context.Context, d *Dossier) error
	GetDossierByID(ctx context.Context, id uuid.UUID) (*Dossier, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Dossier, error)

	CreateDocument(ctx context.Context, doc *Document) error
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListDocuments(ctx context.Context, dossierID uuid.UUID) ([]*Document, error)

	CreateComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, documentID uuid.UUID) ([]*Comment, error)
}
