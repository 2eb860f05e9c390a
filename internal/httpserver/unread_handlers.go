package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rtchat/internal/service"
	"rtchat/internal/ws"
)

func handleUnreadCounts(unreadSvc *service.UnreadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		counts, err := unreadSvc.Counts(r.Context(), currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if counts == nil {
			counts = map[string]int{}
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

// handleResetUnread is the open-conversation acknowledgement: zero the
// counter for that peer and mark every unread message from them read in
// one batch, pushing a receipt per transitioned message to the sender.
func handleResetUnread(unreadSvc *service.UnreadService, msgSvc *service.MessageService, fan *ws.Fanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		fromUserID := chi.URLParam(r, "fromUserID")
		if err := unreadSvc.Reset(r.Context(), currentUser.ID, fromUserID); err != nil {
			writeError(w, err)
			return
		}

		marked, err := msgSvc.MarkAllReadFrom(r.Context(), currentUser.ID, fromUserID)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, msg := range marked {
			fan.Deliver(ws.NewEvent(ws.EventMessageRead, ws.MessageReadPayload{
				MessageID: msg.ID,
				ReaderID:  currentUser.ID,
				ReadAt:    *msg.ReadAt,
			}), msg.SenderID)
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "reset", "marked": len(marked)})
	}
}
