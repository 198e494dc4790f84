package message

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one chat message between a patient and a physician. Content is
// stored as a cryptobox payload and is immutable once written; only the read
// flag mutates, and only by the recipient.
type Message struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	SentAt time.Time `gorm:"autoCreateTime;index"`

	SenderID    uuid.UUID `gorm:"column:sender_id;type:uuid;not null;index"`
	RecipientID uuid.UUID `gorm:"column:recipient_id;type:uuid;not null;index"`

	Content string `gorm:"column:content;type:text;not null"`

	ReadFlag bool `gorm:"column:read_flag;not null;default:false"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
