package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rtchat/internal/domain"
)

const maxMessageRunes = 5000

// MessageService owns direct messages: persistence, history, and read
// receipts. Live fan-out is a separate concern; callers run both
// concurrently and neither waits for the other.
type MessageService struct {
	chats    domain.ChatRepository
	messages domain.MessageRepository
	users    domain.UserRepository
}

func NewMessageService(
	chats domain.ChatRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
) *MessageService {
	return &MessageService{
		chats:    chats,
		messages: messages,
		users:    users,
	}
}

// SendDirect persists a direct message, creating the conversation pair
// lazily on first contact. The returned message carries the durable id.
func (s *MessageService) SendDirect(ctx context.Context, senderID, receiverID, body string) (*domain.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: message body cannot be empty", domain.ErrInvalidInput)
	}
	if len([]rune(body)) > maxMessageRunes {
		return nil, fmt.Errorf("%w: message body exceeds %d characters", domain.ErrInvalidInput, maxMessageRunes)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot message yourself", domain.ErrInvalidInput)
	}
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}

	chat, err := s.chats.FindByParticipants(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("find chat: %w", err)
	}
	if chat == nil {
		chat = &domain.Chat{Participants: []string{senderID, receiverID}}
		if err := s.chats.Create(ctx, chat); err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.chats.Touch(ctx, chat.ID, msg.CreatedAt); err != nil {
		// History stays correct without the bump; don't fail the send.
		return msg, nil
	}
	return msg, nil
}

// History returns the chronological conversation between the caller and
// a peer.
func (s *MessageService) History(ctx context.Context, callerID, peerID string, limit int) ([]*domain.Message, error) {
	msgs, err := s.messages.ListBetween(ctx, callerID, peerID, limit)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead records a read receipt. Only the receiver may mark, the
// transition happens once, and repeating it is a no-op. The returned
// bool reports whether this call performed the transition.
func (s *MessageService) MarkRead(ctx context.Context, messageID, readerID string) (*domain.Message, bool, error) {
	if !domain.IsDurableID(messageID) {
		// Provisional ids never reach storage; this is the race with a
		// not-yet-persisted message, soft and retryable.
		return nil, false, domain.ErrNotFound
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if msg.ReceiverID != readerID {
		return nil, false, domain.ErrForbidden
	}
	if msg.IsRead {
		return msg, false, nil
	}

	now := time.Now().UTC()
	transitioned, err := s.messages.MarkRead(ctx, messageID, now)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	if transitioned {
		msg.IsRead = true
		msg.ReadAt = &now
	}
	return msg, transitioned, nil
}

// MarkAllReadFrom marks every unread message from the peer as read in
// one pass and returns the messages that actually transitioned, so the
// caller can emit one receipt per message to the sender.
func (s *MessageService) MarkAllReadFrom(ctx context.Context, readerID, peerID string) ([]*domain.Message, error) {
	unread, err := s.messages.ListUnreadFrom(ctx, readerID, peerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var marked []*domain.Message
	for _, msg := range unread {
		transitioned, err := s.messages.MarkRead(ctx, msg.ID, now)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return marked, fmt.Errorf("mark read %s: %w", msg.ID, err)
		}
		if transitioned {
			msg.IsRead = true
			msg.ReadAt = &now
			marked = append(marked, msg)
		}
	}
	return marked, nil
}
