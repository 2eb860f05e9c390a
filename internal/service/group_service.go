package service

import (
	"context"
	"errors"
	"fmt"

	"rtchat/internal/domain"
)

// GroupService owns group chats and group messages. Membership
// administration beyond creation is out of scope here, but every
// message operation gates on a read-only membership check first.
type GroupService struct {
	groups    domain.GroupChatRepository
	groupMsgs domain.GroupMessageRepository
}

func NewGroupService(groups domain.GroupChatRepository, groupMsgs domain.GroupMessageRepository) *GroupService {
	return &GroupService{groups: groups, groupMsgs: groupMsgs}
}

type GroupCreateInput struct {
	Name        string
	Description string
	MemberIDs   []string
}

// CreateGroup creates a group with the creator as member and admin.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID string, in GroupCreateInput) (*domain.GroupChat, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: group name is required", domain.ErrInvalidInput)
	}

	members := make([]string, 0, len(in.MemberIDs)+1)
	seen := map[string]struct{}{creatorID: {}}
	members = append(members, creatorID)
	for _, id := range in.MemberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	g := &domain.GroupChat{
		Name:        in.Name,
		Description: in.Description,
		Members:     members,
		Admins:      []string{creatorID},
		CreatorID:   creatorID,
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// GetGroup returns the group if the caller is a member.
func (s *GroupService) GetGroup(ctx context.Context, groupID, callerID string) (*domain.GroupChat, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsMember(callerID) {
		return nil, domain.ErrNotAMember
	}
	return g, nil
}

// ListForUser returns the groups the user belongs to.
func (s *GroupService) ListForUser(ctx context.Context, userID string) ([]*domain.GroupChat, error) {
	return s.groups.ListForMember(ctx, userID)
}

// SendMessage persists a group message. The sender must be a member;
// non-members get no fan-out and no state change. The stored message
// starts with the sender in read_by.
func (s *GroupService) SendMessage(ctx context.Context, groupID, senderID, body string) (*domain.GroupMessage, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: message body cannot be empty", domain.ErrInvalidInput)
	}
	if len([]rune(body)) > maxMessageRunes {
		return nil, fmt.Errorf("%w: message body exceeds %d characters", domain.ErrInvalidInput, maxMessageRunes)
	}
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsMember(senderID) {
		return nil, domain.ErrNotAMember
	}

	msg := &domain.GroupMessage{
		SenderID: senderID,
		GroupID:  groupID,
		Body:     body,
		ReadBy:   []string{senderID},
	}
	if err := s.groupMsgs.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Messages returns the group's chronological history, members only.
func (s *GroupService) Messages(ctx context.Context, groupID, callerID string, limit int) ([]*domain.GroupMessage, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsMember(callerID) {
		return nil, domain.ErrNotAMember
	}
	return s.groupMsgs.ListForGroup(ctx, groupID, limit)
}

// MarkMessageRead adds the reader to the message's read_by set. The
// returned bool reports whether this call added them (marking twice is
// a no-op).
func (s *GroupService) MarkMessageRead(ctx context.Context, messageID, readerID string) (*domain.GroupMessage, bool, error) {
	if !domain.IsDurableID(messageID) {
		return nil, false, domain.ErrNotFound
	}
	msg, err := s.groupMsgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	g, err := s.groups.GetByID(ctx, msg.GroupID)
	if err != nil {
		return nil, false, err
	}
	if !g.IsMember(readerID) {
		return nil, false, domain.ErrNotAMember
	}
	if msg.ReadByUser(readerID) {
		return msg, false, nil
	}

	added, err := s.groupMsgs.AddReader(ctx, messageID, readerID)
	if err != nil {
		return nil, false, err
	}
	if added {
		msg.ReadBy = append(msg.ReadBy, readerID)
	}
	return msg, added, nil
}

// MarkAllRead marks every unread message in the group as read by the
// caller in one pass and returns the messages that transitioned, for
// per-sender receipt fan-out.
func (s *GroupService) MarkAllRead(ctx context.Context, groupID, callerID string) ([]*domain.GroupMessage, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsMember(callerID) {
		return nil, domain.ErrNotAMember
	}

	unread, err := s.groupMsgs.ListUnreadForUser(ctx, groupID, callerID)
	if err != nil {
		return nil, err
	}

	var marked []*domain.GroupMessage
	for _, msg := range unread {
		added, err := s.groupMsgs.AddReader(ctx, msg.ID, callerID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return marked, fmt.Errorf("mark group message %s: %w", msg.ID, err)
		}
		if added {
			msg.ReadBy = append(msg.ReadBy, callerID)
			marked = append(marked, msg)
		}
	}
	return marked, nil
}

// UnreadCount computes the caller's unread count for one group from
// the read_by sets.
func (s *GroupService) UnreadCount(ctx context.Context, groupID, callerID string) (int, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if !g.IsMember(callerID) {
		return 0, domain.ErrNotAMember
	}
	return s.groupMsgs.CountUnreadForUser(ctx, groupID, callerID)
}

// AllUnreadCounts returns the caller's unread count per group.
func (s *GroupService) AllUnreadCounts(ctx context.Context, callerID string) (map[string]int, error) {
	groups, err := s.groups.ListForMember(ctx, callerID)
	if err != nil {
		return nil, err
	}
	res := make(map[string]int, len(groups))
	for _, g := range groups {
		n, err := s.groupMsgs.CountUnreadForUser(ctx, g.ID, callerID)
		if err != nil {
			return nil, fmt.Errorf("count unread for group %s: %w", g.ID, err)
		}
		res[g.ID] = n
	}
	return res, nil
}

// ReadStatus is the on-demand partial read state of one group message.
type ReadStatus struct {
	MessageID string `json:"message_id"`
	ReadBy    int    `json:"read_by"`
	Total     int    `json:"total"`
	FullyRead bool   `json:"fully_read"`
}

// MessageReadStatus computes "read by N of M" against the current
// member set, sender excluded from the denominator. Members who left
// the group stop counting toward it.
func (s *GroupService) MessageReadStatus(ctx context.Context, messageID, callerID string) (*ReadStatus, error) {
	if !domain.IsDurableID(messageID) {
		return nil, domain.ErrNotFound
	}
	msg, err := s.groupMsgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	g, err := s.groups.GetByID(ctx, msg.GroupID)
	if err != nil {
		return nil, err
	}
	if !g.IsMember(callerID) {
		return nil, domain.ErrNotAMember
	}
	read, total := msg.ReadProgress(g.Members)
	return &ReadStatus{
		MessageID: msg.ID,
		ReadBy:    read,
		Total:     total,
		FullyRead: read == total,
	}, nil
}
