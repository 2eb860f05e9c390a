package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"rtchat/internal/domain"
	"rtchat/internal/service"
)

func newMessageFixture(t *testing.T) (*service.MessageService, *memUserRepo, *memMessageRepo, *memChatRepo) {
	t.Helper()
	users := newMemUserRepo()
	chats := newMemChatRepo()
	msgs := newMemMessageRepo()
	return service.NewMessageService(chats, msgs, users), users, msgs, chats
}

func seedUser(t *testing.T, users *memUserRepo, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, IsActive: true}
	err := users.Create(context.Background(), u)
	assert.NoError(t, err)
	return u
}

func TestSendDirect(t *testing.T) {
	svc, users, _, chats := newMessageFixture(t)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		msg, err := svc.SendDirect(ctx, alice.ID, bob.ID, "hi")
		assert.NoError(t, err)
		assert.True(t, domain.IsDurableID(msg.ID))
		assert.Equal(t, alice.ID, msg.SenderID)
		assert.False(t, msg.IsRead)

		// First contact creates the conversation pair lazily.
		chat, err := chats.FindByParticipants(ctx, bob.ID, alice.ID)
		assert.NoError(t, err)
		assert.NotNil(t, chat)
	})

	t.Run("ReusesExistingChat", func(t *testing.T) {
		_, err := svc.SendDirect(ctx, bob.ID, alice.ID, "hello back")
		assert.NoError(t, err)
		assert.Len(t, chats.chats, 1)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		_, err := svc.SendDirect(ctx, alice.ID, bob.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("BodyTooLong", func(t *testing.T) {
		_, err := svc.SendDirect(ctx, alice.ID, bob.ID, strings.Repeat("x", 5001))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("SelfMessage", func(t *testing.T) {
		_, err := svc.SendDirect(ctx, alice.ID, alice.ID, "hi me")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("UnknownReceiver", func(t *testing.T) {
		_, err := svc.SendDirect(ctx, alice.ID, "507f1f77bcf86cd799439011", "hi")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestHistoryRetrievableAfterSend(t *testing.T) {
	svc, users, _, _ := newMessageFixture(t)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	ctx := context.Background()

	sent, err := svc.SendDirect(ctx, alice.ID, bob.ID, "survives disconnect")
	assert.NoError(t, err)

	// The sender is gone; the receiver still finds the message.
	history, err := svc.History(ctx, bob.ID, alice.ID, 100)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)
}

func TestMarkRead(t *testing.T) {
	svc, users, _, _ := newMessageFixture(t)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	ctx := context.Background()

	sent, err := svc.SendDirect(ctx, alice.ID, bob.ID, "hi")
	assert.NoError(t, err)

	t.Run("ProvisionalIDIsSoftNotFound", func(t *testing.T) {
		_, transitioned, err := svc.MarkRead(ctx, "temp-1700000000000-4821", bob.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.False(t, transitioned)
	})

	t.Run("SenderCannotMarkOwnMessage", func(t *testing.T) {
		_, _, err := svc.MarkRead(ctx, sent.ID, alice.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("FirstTransition", func(t *testing.T) {
		msg, transitioned, err := svc.MarkRead(ctx, sent.ID, bob.ID)
		assert.NoError(t, err)
		assert.True(t, transitioned)
		assert.True(t, msg.IsRead)
		assert.NotNil(t, msg.ReadAt)
	})

	t.Run("SecondMarkIsNoOp", func(t *testing.T) {
		msg, transitioned, err := svc.MarkRead(ctx, sent.ID, bob.ID)
		assert.NoError(t, err)
		assert.False(t, transitioned)
		assert.True(t, msg.IsRead)
	})
}

func TestMarkAllReadFrom(t *testing.T) {
	svc, users, _, _ := newMessageFixture(t)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SendDirect(ctx, alice.ID, bob.ID, "msg")
		assert.NoError(t, err)
	}
	// One in the other direction must stay untouched.
	reply, err := svc.SendDirect(ctx, bob.ID, alice.ID, "reply")
	assert.NoError(t, err)

	marked, err := svc.MarkAllReadFrom(ctx, bob.ID, alice.ID)
	assert.NoError(t, err)
	assert.Len(t, marked, 3)
	for _, m := range marked {
		assert.True(t, m.IsRead)
		assert.Equal(t, alice.ID, m.SenderID)
	}

	again, err := svc.MarkAllReadFrom(ctx, bob.ID, alice.ID)
	assert.NoError(t, err)
	assert.Empty(t, again)

	assert.False(t, reply.IsRead)
}
