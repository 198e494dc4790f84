package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/internal/domain/message"
	"github.com/telecare-health/telecare/pkg/cryptobox"
)

const msgTestSecret = "message-service-test-secret-32ch!"

type messageEnv struct {
	svc      *MessageService
	links    *TrustLinkService
	messages *fakeMessageRepo
}

func newMessageEnv(t *testing.T, users ...*domain.User) *messageEnv {
	t.Helper()
	linkRepo := newFakeTrustLinkRepo()
	msgRepo := newFakeMessageRepo()
	directory := newFakeUserDirectory(users...)
	audit := newTestAuditService()
	log := zap.NewNop()

	return &messageEnv{
		svc: NewMessageService(msgRepo, linkRepo, directory, cryptobox.New(msgTestSecret),
			audit, newTestCollector(), log),
		links:    NewTrustLinkService(linkRepo, directory, audit, newTestCollector(), log),
		messages: msgRepo,
	}
}

func (e *messageEnv) establishLink(t *testing.T, patient, physician *domain.User) {
	t.Helper()
	ctx := context.Background()
	link, err := e.links.Request(ctx, physician.ID, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	_, err = e.links.Accept(ctx, link.ID, claimsFor(physician), "10.0.0.2")
	require.NoError(t, err)
}

func TestSendMessage_RequiresAcceptedLink(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	env := newMessageEnv(t, patient, physician)
	ctx := context.Background()

	_, err := env.svc.SendMessage(ctx, physician.ID, "hello", claimsFor(patient), "10.0.0.1")
	assert.ErrorIs(t, err, message.ErrNotConnected)

	// A pending link is not enough.
	_, err = env.links.Request(ctx, physician.ID, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	_, err = env.svc.SendMessage(ctx, physician.ID, "hello", claimsFor(patient), "10.0.0.1")
	assert.ErrorIs(t, err, message.ErrNotConnected)
}

func TestSendMessage_StoresCiphertextReturnsPlaintext(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	env := newMessageEnv(t, patient, physician)
	ctx := context.Background()
	env.establishLink(t, patient, physician)

	sent, err := env.svc.SendMessage(ctx, physician.ID, "hello", claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "hello", sent.Content)

	stored, err := env.messages.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hello", stored.Content)
	assert.Greater(t, len(stored.Content), 50)
	assert.False(t, stored.ReadFlag)
}

func TestSendMessage_EmptyContentRejected(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	env := newMessageEnv(t, patient, physician)
	env.establishLink(t, patient, physician)

	_, err := env.svc.SendMessage(context.Background(), physician.ID, "", claimsFor(patient), "10.0.0.1")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSendMessage_InvalidPairings(t *testing.T) {
	patient := testPatient()
	otherPatient := testPatient()
	physician := testPhysician()
	otherPhysician := testPhysician()
	env := newMessageEnv(t, patient, otherPatient, physician, otherPhysician)
	ctx := context.Background()

	_, err := env.svc.SendMessage(ctx, otherPatient.ID, "hi", claimsFor(patient), "10.0.0.1")
	assert.ErrorIs(t, err, message.ErrInvalidPairing)

	_, err = env.svc.SendMessage(ctx, otherPhysician.ID, "hi", claimsFor(physician), "10.0.0.2")
	assert.ErrorIs(t, err, message.ErrInvalidPairing)

	_, err = env.svc.SendMessage(ctx, uuid.New(), "hi", claimsFor(patient), "10.0.0.1")
	assert.ErrorIs(t, err, message.ErrInvalidPairing)
}

// Full conversation lifecycle: request, accept, exchange, revoke, locked out.
func TestConversationLifecycle(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	env := newMessageEnv(t, patient, physician)
	ctx := context.Background()

	link, err := env.links.Request(ctx, physician.ID, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	_, err = env.links.Accept(ctx, link.ID, claimsFor(physician), "10.0.0.2")
	require.NoError(t, err)

	_, err = env.svc.SendMessage(ctx, physician.ID, "hello doctor", claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	_, err = env.svc.SendMessage(ctx, patient.ID, "hello, how can I help?", claimsFor(physician), "10.0.0.2")
	require.NoError(t, err)

	msgs, err := env.svc.ReadConversation(ctx, physician.ID, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello doctor", msgs[0].Content)
	assert.Equal(t, "hello, how can I help?", msgs[1].Content)

	require.NoError(t, env.links.Revoke(ctx, link.ID, claimsFor(patient), "10.0.0.1"))

	// The gate is re-checked on every send; both directions are now closed.
	_, err = env.svc.SendMessage(ctx, physician.ID, "one more thing", claimsFor(patient), "10.0.0.1")
	assert.ErrorIs(t, err, message.ErrNotConnected)
	_, err = env.svc.SendMessage(ctx, patient.ID, "following up", claimsFor(physician), "10.0.0.2")
	assert.ErrorIs(t, err, message.ErrNotConnected)

	// History stays readable after the revoke.
	msgs, err = env.svc.ReadConversation(ctx, physician.ID, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestReadConversation_DegradesUnreadableMessage(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	env := newMessageEnv(t, patient, physician)
	ctx := context.Background()
	env.establishLink(t, patient, physician)

	_, err := env.svc.SendMessage(ctx, physician.ID, "readable one", claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)

	// A row sealed under a different secret fails authentication.
	otherBox := cryptobox.New("a-completely-different-secret-32!")
	corrupt, err := otherBox.Encrypt([]byte("lost forever"))
	require.NoError(t, err)
	require.NoError(t, env.messages.Create(ctx, &message.Message{
		SenderID:    physician.ID,
		RecipientID: patient.ID,
		Content:     corrupt,
	}))

	_, err = env.svc.SendMessage(ctx, physician.ID, "readable two", claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)

	msgs, err := env.svc.ReadConversation(ctx, physician.ID, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "readable one", msgs[0].Content)
	assert.Equal(t, UnreadablePlaceholder, msgs[1].Content)
	assert.Equal(t, "readable two", msgs[2].Content)
}

func TestMarkRead_RecipientOnlyAndIdempotent(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	env := newMessageEnv(t, patient, physician)
	ctx := context.Background()
	env.establishLink(t, patient, physician)

	sent, err := env.svc.SendMessage(ctx, physician.ID, "unread", claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)

	// The sender cannot mark their own message read.
	err = env.svc.MarkRead(ctx, sent.ID, claimsFor(patient))
	assert.ErrorIs(t, err, message.ErrNotRecipient)

	count, err := env.svc.CountUnread(ctx, claimsFor(physician))
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, env.svc.MarkRead(ctx, sent.ID, claimsFor(physician)))
	require.NoError(t, env.svc.MarkRead(ctx, sent.ID, claimsFor(physician)))

	count, err = env.svc.CountUnread(ctx, claimsFor(physician))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkRead_NotFound(t *testing.T) {
	patient := testPatient()
	env := newMessageEnv(t, patient)

	err := env.svc.MarkRead(context.Background(), uuid.New(), claimsFor(patient))
	assert.ErrorIs(t, err, message.ErrMessageNotFound)
}
