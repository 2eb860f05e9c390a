package service

import (
	"context"
	"fmt"

	"rtchat/internal/domain"
)

// UnreadService maintains the per-pair unread counters for direct
// messages. Group unread counts are computed from read_by sets instead
// (see GroupService); both surfaces agree on "messages from this
// peer/group not yet marked read".
type UnreadService struct {
	unreads domain.UnreadRepository
}

func NewUnreadService(unreads domain.UnreadRepository) *UnreadService {
	return &UnreadService{unreads: unreads}
}

// NoteDelivered bumps the receiver's counter for the sender. Called on
// every direct-message delivery; a recipient with the conversation open
// resets it right back via the mark-read path.
func (s *UnreadService) NoteDelivered(ctx context.Context, senderID, receiverID string) error {
	if senderID == "" || receiverID == "" || senderID == receiverID {
		return fmt.Errorf("%w: sender and receiver required", domain.ErrInvalidInput)
	}
	return s.unreads.Increment(ctx, receiverID, senderID)
}

// Reset zeroes the caller's counter for one peer. Idempotent.
func (s *UnreadService) Reset(ctx context.Context, ownerID, peerID string) error {
	return s.unreads.Reset(ctx, ownerID, peerID)
}

// Counts returns every non-zero counter for the caller keyed by peer id.
func (s *UnreadService) Counts(ctx context.Context, ownerID string) (map[string]int, error) {
	return s.unreads.CountsFor(ctx, ownerID)
}
