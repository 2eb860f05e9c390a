package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rtchat/internal/domain"
	"rtchat/internal/security"
	"rtchat/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// NewTypingExpirer returns the expiry callback that pushes a synthetic
// "stopped typing" event when a typing signal times out in silence.
func NewTypingExpirer(fan *Fanout) func(from, to string, group bool) {
	return func(from, to string, group bool) {
		payload := TypingPayload{FromUserID: from, ToID: to, IsTyping: false}
		if group {
			fan.DeliverToGroup(context.Background(), to, from, NewEvent(EventTypingInGroup, payload))
			return
		}
		fan.Deliver(NewEvent(EventTyping, payload), to)
	}
}

// MakeHandler returns the HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or
// Sec-WebSocket-Protocol), registers the connection in the presence
// hub, then dispatches events:
//   - identify               -> confirm presence binding
//   - newMessage             -> bump unread counter + relay to receiver
//   - newGroupMessage        -> membership-gated relay to members
//   - markAsRead             -> persist receipt + messageRead to sender
//   - markGroupMessageAsRead -> read_by update + groupMessageRead to sender
//   - typing / typingInGroup -> forward indicator, auto-expiring
func MakeHandler(
	hub *Hub,
	fan *Fanout,
	typing *TypingTracker,
	tokens *security.TokenService,
	users domain.UserRepository,
	msgSvc *service.MessageService,
	groupSvc *service.GroupService,
	unreadSvc *service.UnreadService,
	allowedOrigins []string,
	log zerolog.Logger,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		userID, err := tokens.Parse(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		user, err := users.GetByID(r.Context(), userID)
		if err != nil || !user.IsActive {
			http.Error(w, "user not found or inactive", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		// The connection handle is ephemeral; a reconnect gets a fresh
		// one and silently supersedes this mapping. Disconnects are
		// matched on the handle so a stale close cannot evict the
		// successor.
		handle := uuid.NewString()
		hub.Register(user.ID, handle, conn)
		defer func() {
			hub.Unregister(user.ID, handle)
			typing.CancelAllFrom(user.ID)
			if err := users.TouchLastSeen(context.Background(), user.ID, time.Now().UTC()); err != nil {
				log.Warn().Err(err).Str("user_id", user.ID).Msg("touch last_seen")
			}
		}()

		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				break
			}
			dispatch(r.Context(), hub, fan, typing, msgSvc, groupSvc, unreadSvc, log, user.ID, ev)
		}
	}
}

func dispatch(
	ctx context.Context,
	hub *Hub,
	fan *Fanout,
	typing *TypingTracker,
	msgSvc *service.MessageService,
	groupSvc *service.GroupService,
	unreadSvc *service.UnreadService,
	log zerolog.Logger,
	userID string,
	ev Event,
) {
	switch ev.Name {

	case EventIdentify:
		var p IdentifyPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.UserID == "" {
			sendError(hub, userID, "identify requires user_id")
			return
		}
		if p.UserID != userID {
			sendError(hub, userID, "identity does not match this connection")
			return
		}
		// Binding happened at upgrade; confirm with the online set.
		hub.Push(userID, NewEvent(EventOnlineUsers, hub.OnlineUsers()))

	case EventNewMessage:
		var p DirectMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ReceiverID == "" || p.Body == "" {
			sendError(hub, userID, "newMessage requires receiver_id and body")
			return
		}
		p.SenderID = userID
		// Counter bump and live relay are independent; a failed bump
		// must not block delivery.
		if err := unreadSvc.NoteDelivered(ctx, userID, p.ReceiverID); err != nil {
			log.Warn().Err(err).Str("receiver_id", p.ReceiverID).Msg("increment unread")
		}
		// The receiver needs some id to key the bubble by; fall back to
		// the provisional one until messageIdUpdate arrives.
		if p.ID == "" && p.TempID != "" {
			p.ID = p.TempID
		}
		fan.Deliver(NewEvent(EventNewMessage, p), p.ReceiverID)

	case EventNewGroupMessage:
		var p GroupMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.GroupID == "" || p.Body == "" {
			sendError(hub, userID, "newGroupMessage requires group_id and body")
			return
		}
		p.SenderID = userID
		if _, err := groupSvc.GetGroup(ctx, p.GroupID, userID); err != nil {
			if errors.Is(err, domain.ErrNotAMember) {
				sendError(hub, userID, "you are not a member of this group")
				return
			}
			log.Warn().Err(err).Str("group_id", p.GroupID).Msg("group lookup failed")
			return
		}
		if p.ID == "" && p.TempID != "" {
			p.ID = p.TempID
		}
		fan.DeliverToGroup(ctx, p.GroupID, userID, NewEvent(EventNewGroupMessage, p))

	case EventMarkAsRead:
		var p MarkReadPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.MessageID == "" {
			sendError(hub, userID, "markAsRead requires message_id")
			return
		}
		// A provisional-looking id means the persisted copy does not
		// exist yet; that path is client-side only.
		if !domain.IsDurableID(p.MessageID) {
			return
		}
		msg, transitioned, err := msgSvc.MarkRead(ctx, p.MessageID, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Race with in-flight persistence; the client retries.
				log.Debug().Str("message_id", p.MessageID).Msg("markAsRead before persistence")
				return
			}
			if !errors.Is(err, domain.ErrForbidden) {
				log.Warn().Err(err).Str("message_id", p.MessageID).Msg("markAsRead")
			}
			return
		}
		if transitioned {
			// Read-on-delivery arrives here without a conversation-open
			// reset; zero the pair counter so it cannot go stale-positive.
			if err := unreadSvc.Reset(ctx, userID, msg.SenderID); err != nil {
				log.Warn().Err(err).Str("sender_id", msg.SenderID).Msg("reset unread")
			}
			fan.Deliver(NewEvent(EventMessageRead, MessageReadPayload{
				MessageID: msg.ID,
				ReaderID:  userID,
				ReadAt:    *msg.ReadAt,
			}), msg.SenderID)
		}

	case EventMarkGroupRead:
		var p MarkReadPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.MessageID == "" {
			sendError(hub, userID, "markGroupMessageAsRead requires message_id")
			return
		}
		if !domain.IsDurableID(p.MessageID) {
			return
		}
		msg, added, err := groupSvc.MarkMessageRead(ctx, p.MessageID, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Debug().Str("message_id", p.MessageID).Msg("group read before persistence")
				return
			}
			if errors.Is(err, domain.ErrNotAMember) {
				sendError(hub, userID, "you are not a member of this group")
				return
			}
			log.Warn().Err(err).Str("message_id", p.MessageID).Msg("markGroupMessageAsRead")
			return
		}
		if added {
			fan.Deliver(NewEvent(EventGroupRead, GroupReadPayload{
				MessageID: msg.ID,
				GroupID:   msg.GroupID,
				ReaderID:  userID,
			}), msg.SenderID)
		}

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ToID == "" {
			return
		}
		p.FromUserID = userID
		typing.Signal(userID, p.ToID, false, p.IsTyping)
		fan.Deliver(NewEvent(EventTyping, p), p.ToID)

	case EventTypingInGroup:
		var p TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ToID == "" {
			return
		}
		p.FromUserID = userID
		if _, err := groupSvc.GetGroup(ctx, p.ToID, userID); err != nil {
			return
		}
		typing.Signal(userID, p.ToID, true, p.IsTyping)
		fan.DeliverToGroup(ctx, p.ToID, userID, NewEvent(EventTypingInGroup, p))

	default:
		log.Debug().Str("event", ev.Name).Str("user_id", userID).Msg("unknown event")
	}
}

func sendError(hub *Hub, userID, msg string) {
	hub.Push(userID, NewEvent(EventError, ErrorPayload{Message: msg}))
}
