package dossier

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dossier is a medical record container owned by one patient. Access grants
// are issued at dossier level; a grant on a dossier covers every document
// filed under it.
type Dossier struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`

	Title       string `gorm:"column:title;type:varchar(200);not null"`
	Description string `gorm:"column:description;type:text"`

	Documents []Document `gorm:"foreignKey:DossierID;constraint:OnDelete:CASCADE"`
}

func (Dossier) TableName() string {
	return "dossiers"
}

func (d *Dossier) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Document is an item filed under a dossier (lab report, imaging, referral
// letter). The blob itself lives in external file storage; only the pointer
// is kept here.
type Document struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	DossierID uuid.UUID `gorm:"column:dossier_id;type:uuid;not null;index"`

	FileName    string `gorm:"column:file_name;type:varchar(255);not null"`
	ContentType string `gorm:"column:content_type;type:varchar(100);not null"`
	StorageKey  string `gorm:"column:storage_key;type:varchar(255);not null"`
	SizeBytes   int64  `gorm:"column:size_bytes;not null"`

	UploadedBy uuid.UUID `gorm:"column:uploaded_by;type:uuid;not null"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Comment is a physician-authored note on a document. Writing one requires an
// access grant on the owning dossier.
type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	DocumentID uuid.UUID `gorm:"column:document_id;type:uuid;not null;index"`
	AuthorID   uuid.UUID `gorm:"column:author_id;type:uuid;not null;index"`

	Body string `gorm:"column:body;type:text;not null"`
}

func (Comment) TableName() string {
	return "document_comments"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type CreateDossierCommand struct {
	PatientID   uuid.UUID
	Title       string
	Description string
}

type AddDocumentCommand struct {
	DossierID   uuid.UUID
	FileName    string
	ContentType string
	StorageKey  string
	SizeBytes   int64
	UploadedBy  uuid.UUID
}
