package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/internal/domain/message"
	"github.com/telecare-health/telecare/internal/domain/trustlink"
	"github.com/telecare-health/telecare/pkg/cryptobox"
	"github.com/telecare-health/telecare/pkg/metrics"
)

// UserLookup resolves a user by id, returning nil when absent.
type UserLookup interface {
	FindUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// UnreadablePlaceholder replaces the body of a message whose stored payload
// fails authentication. One corrupted historical row must not hide an entire
// conversation.
const UnreadablePlaceholder = "[message could not be decrypted]"

type MessageService struct {
	messages message.Repository
	links    trustlink.Repository
	users    UserLookup
	box      *cryptobox.Box
	auditSvc *AuditService
	mx       *metrics.Collector
	log      *zap.Logger
}

func NewMessageService(
	messages message.Repository,
	links trustlink.Repository,
	users UserLookup,
	box *cryptobox.Box,
	auditSvc *AuditService,
	mx *metrics.Collector,
	log *zap.Logger,
) *MessageService {
	return &MessageService{
		messages: messages,
		links:    links,
		users:    users,
		box:      box,
		auditSvc: auditSvc,
		mx:       mx,
		log:      log,
	}
}

// SendMessage encrypts and persists a message from the caller to recipientID.
// The pair must resolve to exactly one patient and one physician with an
// accepted trust link between them; the gate is re-checked on every send, so
// a mid-conversation revoke takes effect on the next attempt. The returned
// message carries the plaintext, never the stored ciphertext.
func (s *MessageService) SendMessage(ctx context.Context, recipientID uuid.UUID, plaintext string, caller *domain.Claims, ip string) (*message.Message, error) {
	if plaintext == "" {
		return nil, &ValidationError{Fields: []string{"content is required"}}
	}

	patientID, physicianID, err := s.resolvePair(ctx, caller.UserID, recipientID)
	if err != nil {
		return nil, err
	}

	established, err := s.links.ExistsAccepted(ctx, patientID, physicianID)
	if err != nil {
		return nil, fmt.Errorf("checking trust link: %w", err)
	}
	if !established {
		return nil, message.ErrNotConnected
	}

	sealed, err := s.box.Encrypt([]byte(plaintext))
	if err != nil {
		s.log.Error("failed to encrypt message", zap.Error(err))
		return nil, fmt.Errorf("encrypting message: %w", err)
	}

	m := &message.Message{
		SenderID:    caller.UserID,
		RecipientID: recipientID,
		Content:     sealed,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		s.log.Error("failed to persist message", zap.Error(err))
		return nil, fmt.Errorf("persisting message: %w", err)
	}

	s.mx.MessagesSentTotal.Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionCreate,
		ResourceType: "message",
		ResourceID:   m.ID.String(),
		IPAddress:    ip,
	})

	s.log.Info("message sent",
		zap.String("message_id", m.ID.String()),
		zap.String("sender_id", caller.UserID.String()),
		zap.String("recipient_id", recipientID.String()),
	)

	out := *m
	out.Content = plaintext
	return &out, nil
}

// ReadConversation returns every message between the caller and otherID,
// oldest first, decrypted. A message that fails authentication is degraded to
// a placeholder; the rest of the conversation is unaffected.
func (s *MessageService) ReadConversation(ctx context.Context, otherID uuid.UUID, caller *domain.Claims, ip string) ([]*message.Message, error) {
	msgs, err := s.messages.ListConversation(ctx, caller.UserID, otherID)
	if err != nil {
		return nil, fmt.Errorf("listing conversation: %w", err)
	}

	for _, m := range msgs {
		plaintext, err := s.box.Decrypt(m.Content)
		if err != nil {
			if errors.Is(err, cryptobox.ErrDecryptionFailed) {
				s.mx.MessagesUnreadable.Inc()
				s.log.Warn("message failed decryption, degrading to placeholder",
					zap.String("message_id", m.ID.String()),
				)
				m.Content = UnreadablePlaceholder
				continue
			}
			return nil, fmt.Errorf("decrypting message: %w", err)
		}
		m.Content = string(plaintext)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionRead,
		ResourceType: "conversation",
		ResourceID:   otherID.String(),
		IPAddress:    ip,
	})

	return msgs, nil
}

// MarkRead flips the read flag. Only the stored recipient may do so; marking
// an already-read message is a no-op success.
func (s *MessageService) MarkRead(ctx context.Context, messageID uuid.UUID, caller *domain.Claims) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("loading message: %w", err)
	}
	if m == nil {
		return message.ErrMessageNotFound
	}
	if m.RecipientID != caller.UserID {
		return message.ErrNotRecipient
	}
	if m.ReadFlag {
		return nil
	}
	return s.messages.MarkRead(ctx, messageID)
}

// CountUnread returns how many unread messages the caller has received.
func (s *MessageService) CountUnread(ctx context.Context, caller *domain.Claims) (int64, error) {
	return s.messages.CountUnread(ctx, caller.UserID)
}

// resolvePair maps (sender, recipient) onto (patient, physician). Exactly one
// side must be a patient and the other a physician.
func (s *MessageService) resolvePair(ctx context.Context, senderID, recipientID uuid.UUID) (patientID, physicianID uuid.UUID, err error) {
	sender, err := s.users.FindUser(ctx, senderID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("resolving sender: %w", err)
	}
	recipient, err := s.users.FindUser(ctx, recipientID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("resolving recipient: %w", err)
	}
	if sender == nil || recipient == nil {
		return uuid.Nil, uuid.Nil, message.ErrInvalidPairing
	}

	switch {
	case sender.Role == domain.RolePatient && recipient.Role == domain.RolePhysician:
		return sender.ID, recipient.ID, nil
	case sender.Role == domain.RolePhysician && recipient.Role == domain.RolePatient:
		return recipient.ID, sender.ID, nil
	default:
		return uuid.Nil, uuid.Nil, message.ErrInvalidPairing
	}
}
