package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"rtchat/internal/config"
	"rtchat/internal/domain"
	"rtchat/internal/security"
	"rtchat/internal/service"
	mongostore "rtchat/internal/store/mongo"
	"rtchat/internal/ws"
)

// NewRouter constructs the main HTTP router and wires repositories,
// services, live-connection handler, and middleware.
func NewRouter(
	cfg *config.Config,
	db *mongo.Database,
	hub *ws.Hub,
	tokenSvc *security.TokenService,
	passwordHasher *security.PasswordHasher,
	log zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Repositories
	userRepo := mongostore.NewUserRepo(db)
	chatRepo := mongostore.NewChatRepo(db)
	msgRepo := mongostore.NewMessageRepo(db)
	groupRepo := mongostore.NewGroupChatRepo(db)
	groupMsgRepo := mongostore.NewGroupMessageRepo(db)
	unreadRepo := mongostore.NewUnreadRepo(db)

	// Services
	authSvc := service.NewAuthService(userRepo, tokenSvc, passwordHasher)
	userSvc := service.NewUserService(userRepo)
	msgSvc := service.NewMessageService(chatRepo, msgRepo, userRepo)
	groupSvc := service.NewGroupService(groupRepo, groupMsgRepo)
	unreadSvc := service.NewUnreadService(unreadRepo)

	// Fan-out and typing state share the hub with the REST handlers,
	// so a REST persist can notify live connections of id updates.
	fan := ws.NewFanout(hub, groupRepo, log)
	typing := ws.NewTypingTracker(cfg.TypingTimeout(), ws.NewTypingExpirer(fan))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "rtchat API", "version": "1.0.0"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, userRepo))

			r.Post("/auth/logout", handleLogout(authSvc))
			r.Get("/auth/me", handleMe())

			// Users
			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(userSvc))
				r.Get("/online", handleListOnlineUsers(hub))
				r.Get("/{userID}", handleGetUser(userSvc))
			})

			// Direct messages
			r.Route("/messages", func(r chi.Router) {
				r.Get("/{peerID}", handleHistory(msgSvc, cfg.HistoryLimit))
				r.Post("/send/{peerID}", handleSendMessage(msgSvc, fan))
				r.Post("/read/{messageID}", handleMarkRead(msgSvc, unreadSvc, fan))
			})

			// Group chats
			r.Route("/groups", func(r chi.Router) {
				r.Post("/", handleCreateGroup(groupSvc))
				r.Get("/", handleListGroups(groupSvc))
				r.Get("/unread", handleAllGroupUnread(groupSvc))
				r.Get("/{groupID}", handleGetGroup(groupSvc))
				r.Get("/{groupID}/messages", handleGroupMessages(groupSvc, cfg.HistoryLimit))
				r.Post("/{groupID}/messages", handleSendGroupMessage(groupSvc, fan))
				r.Post("/{groupID}/read", handleMarkGroupAllRead(groupSvc, fan))
				r.Get("/{groupID}/unread", handleGroupUnread(groupSvc))
				r.Post("/messages/{messageID}/read", handleMarkGroupMessageRead(groupSvc, fan))
				r.Get("/messages/{messageID}/status", handleGroupMessageStatus(groupSvc))
			})

			// Direct unread counters
			r.Route("/unread", func(r chi.Router) {
				r.Get("/", handleUnreadCounts(unreadSvc))
				r.Post("/reset/{fromUserID}", handleResetUnread(unreadSvc, msgSvc, fan))
			})
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(hub, fan, typing, tokenSvc, userRepo, msgSvc, groupSvc, unreadSvc, cfg.CORSOrigins, log))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain sentinels onto HTTP status codes. Internal
// detail stays out of responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.Is(err, domain.ErrNotAMember):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "you are not a member of this group"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already exists"})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
