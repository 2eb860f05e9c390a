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

type groupCreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"member_ids"`
}

type groupMessageSendRequest struct {
	Body   string `json:"body"`
	TempID string `json:"temp_id"`
}

type groupMessageResponse struct {
	*domain.GroupMessage
	TempID string `json:"temp_id,omitempty"`
}

func handleCreateGroup(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req groupCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		group, err := groupSvc.CreateGroup(r.Context(), currentUser.ID, service.GroupCreateInput{
			Name:        req.Name,
			Description: req.Description,
			MemberIDs:   req.MemberIDs,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, group)
	}
}

func handleListGroups(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		groups, err := groupSvc.ListForUser(r.Context(), currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if groups == nil {
			groups = []*domain.GroupChat{}
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

func handleGetGroup(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		group, err := groupSvc.GetGroup(r.Context(), chi.URLParam(r, "groupID"), currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, group)
	}
}

func handleGroupMessages(groupSvc *service.GroupService, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		msgs, err := groupSvc.Messages(r.Context(), chi.URLParam(r, "groupID"), currentUser.ID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if msgs == nil {
			msgs = []*domain.GroupMessage{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleSendGroupMessage(groupSvc *service.GroupService, fan *ws.Fanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		groupID := chi.URLParam(r, "groupID")

		var req groupMessageSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.TempID != "" && !domain.IsProvisionalID(req.TempID) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "temp_id must be a provisional id"})
			return
		}

		msg, err := groupSvc.SendMessage(r.Context(), groupID, currentUser.ID, req.Body)
		if err != nil {
			writeError(w, err)
			return
		}

		fan.NotifyGroupIDUpdate(r.Context(), groupID, req.TempID, msg.ID)

		writeJSON(w, http.StatusCreated, groupMessageResponse{GroupMessage: msg, TempID: req.TempID})
	}
}

func handleMarkGroupAllRead(groupSvc *service.GroupService, fan *ws.Fanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		groupID := chi.URLParam(r, "groupID")

		transitioned, err := groupSvc.MarkAllRead(r.Context(), groupID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, msg := range transitioned {
			fan.Deliver(ws.NewEvent(ws.EventGroupRead, ws.GroupReadPayload{
				MessageID: msg.ID,
				GroupID:   groupID,
				ReaderID:  currentUser.ID,
			}), msg.SenderID)
		}
		writeJSON(w, http.StatusOK, map[string]int{"marked": len(transitioned)})
	}
}

func handleMarkGroupMessageRead(groupSvc *service.GroupService, fan *ws.Fanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		messageID := chi.URLParam(r, "messageID")

		msg, transitioned, err := groupSvc.MarkMessageRead(r.Context(), messageID, currentUser.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]any{"error": "message not found", "retryable": true})
				return
			}
			writeError(w, err)
			return
		}
		if transitioned {
			fan.Deliver(ws.NewEvent(ws.EventGroupRead, ws.GroupReadPayload{
				MessageID: msg.ID,
				GroupID:   msg.GroupID,
				ReaderID:  currentUser.ID,
			}), msg.SenderID)
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func handleGroupUnread(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		groupID := chi.URLParam(r, "groupID")
		count, err := groupSvc.UnreadCount(r.Context(), groupID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"group_id": groupID, "count": count})
	}
}

func handleAllGroupUnread(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		counts, err := groupSvc.AllUnreadCounts(r.Context(), currentUser.ID)
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

func handleGroupMessageStatus(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		status, err := groupSvc.MessageReadStatus(r.Context(), chi.URLParam(r, "messageID"), currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
