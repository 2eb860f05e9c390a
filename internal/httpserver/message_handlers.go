package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rtchat/internal/domain"
	"rtchat/internal/service"
	"rtchat/internal/ws"
)

type messageSendRequest struct {
	Body   string `json:"body"`
	TempID string `json:"temp_id"`
}

// messageResponse echoes the client's provisional id next to the
// durable record so the sender can correlate the REST reply with the
// optimistic bubble it already rendered.
type messageResponse struct {
	*domain.Message
	TempID string `json:"temp_id,omitempty"`
}

func handleSendMessage(msgSvc *service.MessageService, fan *ws.Fanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		peerID := chi.URLParam(r, "peerID")

		var req messageSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.TempID != "" && !domain.IsProvisionalID(req.TempID) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "temp_id must be a provisional id"})
			return
		}

		msg, err := msgSvc.SendDirect(r.Context(), currentUser.ID, peerID, req.Body)
		if err != nil {
			writeError(w, err)
			return
		}

		// Both participants may have rendered the live-pushed copy
		// under the provisional id; tell them the durable one.
		fan.NotifyIDUpdate(req.TempID, msg.ID, msg.SenderID, msg.ReceiverID)

		writeJSON(w, http.StatusCreated, messageResponse{Message: msg, TempID: req.TempID})
	}
}

func handleHistory(msgSvc *service.MessageService, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		msgs, err := msgSvc.History(r.Context(), currentUser.ID, chi.URLParam(r, "peerID"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if msgs == nil {
			msgs = []*domain.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleMarkRead(msgSvc *service.MessageService, unreadSvc *service.UnreadService, fan *ws.Fanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		messageID := chi.URLParam(r, "messageID")

		msg, transitioned, err := msgSvc.MarkRead(r.Context(), messageID, currentUser.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// May simply not be persisted yet; the client retries.
				writeJSON(w, http.StatusNotFound, map[string]any{"error": "message not found", "retryable": true})
				return
			}
			writeError(w, err)
			return
		}

		if transitioned {
			// Read-on-delivery marks a single message without a
			// conversation-open reset; the counter must not stay
			// positive when nothing is unread.
			if err := unreadSvc.Reset(r.Context(), currentUser.ID, msg.SenderID); err != nil {
				writeError(w, err)
				return
			}
			fan.Deliver(ws.NewEvent(ws.EventMessageRead, ws.MessageReadPayload{
				MessageID: msg.ID,
				ReaderID:  currentUser.ID,
				ReadAt:    *msg.ReadAt,
			}), msg.SenderID)
		}
		writeJSON(w, http.StatusOK, msg)
	}
}
