package message

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)

	// ListConversation returns every message exchanged between the two users,
	// in either direction, oldest first.
	ListConversation(ctx context.Context, userA, userB uuid.UUID) ([]*Message, error)

	// MarkRead sets the read flag. Marking an already-read message is a no-op.
	MarkRead(ctx context.Context, id uuid.UUID) error

	// CountUnread returns how many unread messages the user has received.
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
}
