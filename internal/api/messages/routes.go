package messages

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatline/internal/auth"
)

// RegisterRoutes wires the chat-core endpoints. Everything, sockets
// included, sits behind the session-token middleware.
func RegisterRoutes(router *mux.Router, handler *Handler, verifier *auth.Verifier) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(verifier.Middleware)

	api.HandleFunc("/messages/send", handler.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/seen", handler.MarkSeen).Methods(http.MethodPost)
	api.HandleFunc("/messages/{messageId}/reactions", handler.AddReaction).Methods(http.MethodPost)
	api.HandleFunc("/messages/{peerId}", handler.DirectHistory).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}/messages", handler.GroupHistory).Methods(http.MethodGet)
	api.HandleFunc("/conversations", handler.Sidebar).Methods(http.MethodGet)
	api.HandleFunc("/attachments/{attachmentId}", handler.Attachment).Methods(http.MethodGet)

	router.Handle("/ws", verifier.Middleware(http.HandlerFunc(handler.ServeWS)))
}
