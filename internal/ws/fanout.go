package ws

import (
	"context"

	"github.com/rs/zerolog"

	"rtchat/internal/domain"
)

// Fanout pushes events to the live connections of intended recipients.
// Delivery is best effort and independent of the persistence path: an
// offline recipient is a normal branch, never an error, and nothing
// here blocks or fails the caller.
type Fanout struct {
	hub    *Hub
	groups domain.GroupChatRepository
	log    zerolog.Logger
}

func NewFanout(hub *Hub, groups domain.GroupChatRepository, log zerolog.Logger) *Fanout {
	return &Fanout{hub: hub, groups: groups, log: log}
}

// Deliver pushes the event to each recipient that has a live connection.
// Returns how many recipients were reachable.
func (f *Fanout) Deliver(ev Event, recipients ...string) int {
	delivered := 0
	for _, id := range recipients {
		if f.hub.Push(id, ev) {
			delivered++
		}
	}
	return delivered
}

// DeliverToGroup resolves the group's member set and delivers to every
// member except the sender. The member list is a snapshot at the moment
// of fan-out; a member added concurrently may miss this event.
func (f *Fanout) DeliverToGroup(ctx context.Context, groupID, senderID string, ev Event) int {
	g, err := f.groups.GetByID(ctx, groupID)
	if err != nil {
		f.log.Warn().Err(err).Str("group_id", groupID).Msg("group fan-out skipped")
		return 0
	}
	delivered := 0
	for _, member := range g.Members {
		if member == senderID {
			continue
		}
		if f.hub.Push(member, ev) {
			delivered++
		}
	}
	return delivered
}

// NotifyIDUpdate tells every participant which durable id replaces the
// given provisional id, so UIs that rendered the live-pushed copy can
// rebase it in place instead of showing a duplicate.
func (f *Fanout) NotifyIDUpdate(tempID, messageID string, recipients ...string) {
	if tempID == "" {
		return
	}
	ev := NewEvent(EventMessageIDUpdate, IDUpdatePayload{TempID: tempID, MessageID: messageID})
	f.Deliver(ev, recipients...)
}

// NotifyGroupIDUpdate is NotifyIDUpdate against a group's member
// snapshot, sender included (the sender also rebases).
func (f *Fanout) NotifyGroupIDUpdate(ctx context.Context, groupID, tempID, messageID string) {
	if tempID == "" {
		return
	}
	g, err := f.groups.GetByID(ctx, groupID)
	if err != nil {
		f.log.Warn().Err(err).Str("group_id", groupID).Msg("id-update fan-out skipped")
		return
	}
	ev := NewEvent(EventMessageIDUpdate, IDUpdatePayload{TempID: tempID, MessageID: messageID})
	f.Deliver(ev, g.Members...)
}
