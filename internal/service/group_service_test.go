package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"rtchat/internal/domain"
	"rtchat/internal/service"
)

func newGroupFixture(t *testing.T) (*service.GroupService, *domain.GroupChat) {
	t.Helper()
	svc := service.NewGroupService(newMemGroupRepo(), newMemGroupMessageRepo())

	g, err := svc.CreateGroup(context.Background(), "alice", service.GroupCreateInput{
		Name:      "team",
		MemberIDs: []string{"bob", "carol"},
	})
	assert.NoError(t, err)
	return svc, g
}

func TestCreateGroup(t *testing.T) {
	svc := service.NewGroupService(newMemGroupRepo(), newMemGroupMessageRepo())
	ctx := context.Background()

	t.Run("CreatorIsMemberAndAdmin", func(t *testing.T) {
		g, err := svc.CreateGroup(ctx, "alice", service.GroupCreateInput{
			Name:      "team",
			MemberIDs: []string{"bob", "alice", "bob"},
		})
		assert.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, g.Members)
		assert.Equal(t, []string{"alice"}, g.Admins)
		assert.Equal(t, "alice", g.CreatorID)
	})

	t.Run("NameRequired", func(t *testing.T) {
		_, err := svc.CreateGroup(ctx, "alice", service.GroupCreateInput{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestGroupMembershipGate(t *testing.T) {
	svc, g := newGroupFixture(t)
	ctx := context.Background()

	t.Run("NonMemberCannotRead", func(t *testing.T) {
		_, err := svc.GetGroup(ctx, g.ID, "mallory")
		assert.ErrorIs(t, err, domain.ErrNotAMember)

		_, err = svc.Messages(ctx, g.ID, "mallory", 100)
		assert.ErrorIs(t, err, domain.ErrNotAMember)
	})

	t.Run("NonMemberCannotSend", func(t *testing.T) {
		_, err := svc.SendMessage(ctx, g.ID, "mallory", "hi")
		assert.ErrorIs(t, err, domain.ErrNotAMember)
	})

	t.Run("MemberCanSend", func(t *testing.T) {
		msg, err := svc.SendMessage(ctx, g.ID, "bob", "hi all")
		assert.NoError(t, err)
		assert.Equal(t, []string{"bob"}, msg.ReadBy, "sender trivially reads their own message")
	})
}

func TestGroupReadCompleteness(t *testing.T) {
	svc, g := newGroupFixture(t)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, g.ID, "alice", "status?")
	assert.NoError(t, err)

	status, err := svc.MessageReadStatus(ctx, msg.ID, "alice")
	assert.NoError(t, err)
	assert.Equal(t, 0, status.ReadBy)
	assert.Equal(t, 2, status.Total, "sender excluded from denominator")
	assert.False(t, status.FullyRead)

	_, added, err := svc.MarkMessageRead(ctx, msg.ID, "bob")
	assert.NoError(t, err)
	assert.True(t, added)

	status, err = svc.MessageReadStatus(ctx, msg.ID, "alice")
	assert.NoError(t, err)
	assert.Equal(t, 1, status.ReadBy)
	assert.False(t, status.FullyRead, "carol has not read yet")

	_, added, err = svc.MarkMessageRead(ctx, msg.ID, "carol")
	assert.NoError(t, err)
	assert.True(t, added)

	status, err = svc.MessageReadStatus(ctx, msg.ID, "alice")
	assert.NoError(t, err)
	assert.True(t, status.FullyRead)
}

func TestGroupMarkMessageReadIdempotent(t *testing.T) {
	svc, g := newGroupFixture(t)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, g.ID, "alice", "hi")
	assert.NoError(t, err)

	_, added, err := svc.MarkMessageRead(ctx, msg.ID, "bob")
	assert.NoError(t, err)
	assert.True(t, added)

	got, added, err := svc.MarkMessageRead(ctx, msg.ID, "bob")
	assert.NoError(t, err)
	assert.False(t, added)
	assert.ElementsMatch(t, []string{"alice", "bob"}, got.ReadBy, "read_by never grows duplicates")
}

func TestGroupMarkAllReadAndUnreadCounts(t *testing.T) {
	svc, g := newGroupFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, g.ID, "alice", "msg")
		assert.NoError(t, err)
	}
	_, err := svc.SendMessage(ctx, g.ID, "bob", "from bob")
	assert.NoError(t, err)

	n, err := svc.UnreadCount(ctx, g.ID, "bob")
	assert.NoError(t, err)
	assert.Equal(t, 3, n, "bob's own message does not count")

	marked, err := svc.MarkAllRead(ctx, g.ID, "bob")
	assert.NoError(t, err)
	assert.Len(t, marked, 3)

	n, err = svc.UnreadCount(ctx, g.ID, "bob")
	assert.NoError(t, err)
	assert.Zero(t, n)

	marked, err = svc.MarkAllRead(ctx, g.ID, "bob")
	assert.NoError(t, err)
	assert.Empty(t, marked)

	n, err = svc.UnreadCount(ctx, g.ID, "carol")
	assert.NoError(t, err)
	assert.Equal(t, 4, n, "carol has everything unread")

	all, err := svc.AllUnreadCounts(ctx, "carol")
	assert.NoError(t, err)
	assert.Equal(t, map[string]int{g.ID: 4}, all)
}

func TestGroupProvisionalIDRouting(t *testing.T) {
	svc, _ := newGroupFixture(t)
	ctx := context.Background()

	_, _, err := svc.MarkMessageRead(ctx, "temp-1700000000000-4821", "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.MessageReadStatus(ctx, "temp-1700000000000-4821", "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
