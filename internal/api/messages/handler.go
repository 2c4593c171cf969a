package messages

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatline/internal/auth"
	"chatline/internal/chat"
	"chatline/internal/models"
	"chatline/internal/ws"
)

// AttachmentFetcher serves previously uploaded attachments.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, id string) (string, error)
}

// Handler exposes the chat core over HTTP and the socket endpoint.
type Handler struct {
	Service     *chat.Service
	Hub         *ws.Hub
	Attachments AttachmentFetcher
	Log         *zap.Logger

	validate *validator.Validate
}

func NewHandler(service *chat.Service, hub *ws.Hub, attachments AttachmentFetcher, log *zap.Logger) *Handler {
	return &Handler{
		Service:     service,
		Hub:         hub,
		Attachments: attachments,
		Log:         log,
		validate:    validator.New(),
	}
}

// response is the envelope every endpoint returns.
type response struct {
	Data    interface{} `json:"data"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
}

type sendRequest struct {
	ReceiverID string `json:"receiverId" validate:"required_without=GroupID,excluded_with=GroupID"`
	GroupID    string `json:"groupId"`
	Text       string `json:"text"`
	Image      string `json:"image"` // data URI, uploaded before the message is persisted
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body", Error: err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Message: "Exactly one of receiverId and groupId is required",
			Error:   err.Error(),
		})
		return
	}

	audience := models.Direct(req.ReceiverID)
	if req.GroupID != "" {
		audience = models.GroupChat(req.GroupID)
	}
	msg, err := h.Service.Send(r.Context(), auth.AccountID(r.Context()), audience, req.Text, req.Image)
	if err != nil {
		h.writeError(w, err, "Failed to send message")
		return
	}
	writeJSON(w, http.StatusCreated, response{Data: msg, Success: true, Message: "Message sent successfully"})
}

func (h *Handler) DirectHistory(w http.ResponseWriter, r *http.Request) {
	peerID := mux.Vars(r)["peerId"]
	history, err := h.Service.DirectHistory(r.Context(), auth.AccountID(r.Context()), peerID)
	if err != nil {
		h.writeError(w, err, "Failed to fetch messages")
		return
	}
	if history == nil {
		history = []models.Message{}
	}
	writeJSON(w, http.StatusOK, response{Data: history, Success: true, Message: "Successfully fetched the chat messages"})
}

func (h *Handler) GroupHistory(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	history, err := h.Service.GroupHistory(r.Context(), groupID)
	if err != nil {
		h.writeError(w, err, "Failed to fetch group messages")
		return
	}
	if history == nil {
		history = []models.Message{}
	}
	writeJSON(w, http.StatusOK, response{Data: history, Success: true, Message: "Successfully fetched the group messages"})
}

func (h *Handler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CounterpartID string `json:"counterpartId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CounterpartID == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "counterpartId is required"})
		return
	}
	if err := h.Service.MarkSeen(r.Context(), auth.AccountID(r.Context()), req.CounterpartID); err != nil {
		h.writeError(w, err, "Failed to mark messages seen")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Messages marked seen"})
}

func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["messageId"]
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body", Error: err.Error()})
		return
	}
	msg, err := h.Service.React(r.Context(), messageID, auth.AccountID(r.Context()), req.Emoji)
	if err != nil {
		h.writeError(w, err, "Failed to add reaction")
		return
	}
	writeJSON(w, http.StatusOK, response{Data: msg, Success: true, Message: "Reaction added"})
}

func (h *Handler) Sidebar(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Service.Sidebar(r.Context(), auth.AccountID(r.Context()))
	if err != nil {
		h.writeError(w, err, "Failed to fetch conversations")
		return
	}
	writeJSON(w, http.StatusOK, response{Data: summaries, Success: true, Message: "Successfully fetched conversations"})
}

func (h *Handler) Attachment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["attachmentId"]
	dataURI, err := h.Attachments.Fetch(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to fetch attachment")
		return
	}
	writeDataURI(w, dataURI)
}

var upgrader = websocket.Upgrader{
	// Cross-origin policy is enforced by the CORS layer and the session
	// token; the upgrader itself accepts any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the connection, binds it to the authenticated account
// and starts the pumps. Inbound frames only carry typing indicators.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	client := &ws.Client{
		AccountID: accountID,
		Send:      make(chan []byte, 256),
		Conn:      conn,
	}
	h.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump(h.Hub, func(frame ws.InboundFrame) {
		h.handleFrame(accountID, frame)
	})
}

func (h *Handler) handleFrame(accountID string, frame ws.InboundFrame) {
	switch frame.Event {
	case ws.EventTypingStart, ws.EventTypingStop:
		audience := models.Direct(frame.ReceiverID)
		if frame.GroupID != "" {
			audience = models.GroupChat(frame.GroupID)
		}
		if audience.ID() == "" {
			return
		}
		err := h.Service.Typing(context.Background(), accountID, audience, frame.Event == ws.EventTypingStart)
		if err != nil {
			h.Log.Warn("typing relay", zap.String("accountId", accountID), zap.Error(err))
		}
	default:
		h.Log.Debug("unknown inbound frame", zap.String("event", frame.Event))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	var validation *chat.ValidationError
	var notFound *chat.NotFoundError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, response{Message: validation.Reason, Error: validation.Reason})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, response{Message: notFound.Error(), Error: notFound.Error()})
	default:
		h.Log.Error(fallback, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, response{Message: fallback, Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDataURI decodes data:<mediatype>[;base64],<payload> and serves the
// raw bytes with the embedded content type.
func writeDataURI(w http.ResponseWriter, dataURI string) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(dataURI, "data:"), ",")
	if !ok {
		http.Error(w, "Malformed attachment", http.StatusInternalServerError)
		return
	}
	if strings.HasSuffix(meta, ";base64") {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			http.Error(w, "Malformed attachment", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", strings.TrimSuffix(meta, ";base64"))
		_, _ = w.Write(raw)
		return
	}
	if meta != "" {
		w.Header().Set("Content-Type", meta)
	}
	_, _ = w.Write([]byte(payload))
}
