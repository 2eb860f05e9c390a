package chatclient

import (
	"encoding/json"
	"fmt"

	"rtchat/internal/ws"
)

// Actions collects the side effects a dispatched event asks the
// caller to perform against the server.
type Actions struct {
	// AckRead holds durable message ids to acknowledge as read.
	AckRead []string
	// AckGroupID, when set, scopes AckRead to a group conversation.
	AckGroupID string
}

// Dispatch consumes one decoded live event and applies it to the
// session. All live-event mutation flows through here, so event
// handling stays single-threaded with respect to the view state.
func (s *Session) Dispatch(ev ws.Event) (Actions, error) {
	var acts Actions

	switch ev.Name {
	case ws.EventNewMessage:
		var p ws.DirectMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return acts, fmt.Errorf("decode %s: %w", ev.Name, err)
		}
		_, ack := s.AddIncoming(p.SenderID, false, Incoming{
			ID:        p.ID,
			TempID:    p.TempID,
			SenderID:  p.SenderID,
			Body:      p.Body,
			CreatedAt: p.CreatedAt,
		})
		acts.AckRead = ack

	case ws.EventNewGroupMessage:
		var p ws.GroupMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return acts, fmt.Errorf("decode %s: %w", ev.Name, err)
		}
		_, ack := s.AddIncoming(p.GroupID, true, Incoming{
			ID:        p.ID,
			TempID:    p.TempID,
			SenderID:  p.SenderID,
			Body:      p.Body,
			CreatedAt: p.CreatedAt,
		})
		acts.AckRead = ack
		acts.AckGroupID = p.GroupID

	case ws.EventMessageIDUpdate:
		var p ws.IDUpdatePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return acts, fmt.Errorf("decode %s: %w", ev.Name, err)
		}
		s.ApplyIDUpdate(p.TempID, p.MessageID)

	case ws.EventMessageRead:
		var p ws.MessageReadPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return acts, fmt.Errorf("decode %s: %w", ev.Name, err)
		}
		s.ApplyReadReceipt(p.MessageID)

	case ws.EventGroupRead:
		var p ws.GroupReadPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return acts, fmt.Errorf("decode %s: %w", ev.Name, err)
		}
		s.ApplyReadReceipt(p.MessageID)

	case ws.EventTyping, ws.EventTypingInGroup:
		var p ws.TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return acts, fmt.Errorf("decode %s: %w", ev.Name, err)
		}
		convID := p.FromUserID
		if ev.Name == ws.EventTypingInGroup {
			convID = p.ToID
		}
		s.SetTyping(convID, p.FromUserID, p.IsTyping)
	}

	return acts, nil
}
