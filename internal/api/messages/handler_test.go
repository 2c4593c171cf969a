package messages_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatline/internal/api/messages"
	"chatline/internal/auth"
	"chatline/internal/chat"
	"chatline/internal/models"
	"chatline/internal/storage/memory"
	"chatline/internal/ws"
)

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
}

type testServer struct {
	router   *mux.Router
	verifier *auth.Verifier
	store    *memory.MessageStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewMessageStore()
	dir := memory.NewDirectory()
	dir.AddAccount(models.Account{ID: "alice", DisplayName: "Alice"})
	dir.AddAccount(models.Account{ID: "bob", DisplayName: "Bob"})
	dir.AddGroup(models.Group{ID: "g1", Name: "book club", AdminID: "bob", Members: []string{"alice", "bob"}})

	log := zap.NewNop()
	hub := ws.NewHub(log)
	attachments := memory.NewAttachmentStore()
	service := chat.NewService(store, dir, attachments, hub, log)
	verifier := auth.NewVerifier("test-secret")

	router := mux.NewRouter()
	messages.RegisterRoutes(router, messages.NewHandler(service, hub, attachments, log), verifier)
	return &testServer{router: router, verifier: verifier, store: store}
}

func (s *testServer) do(t *testing.T, method, path, accountID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if accountID != "" {
		token, err := s.verifier.Sign(accountID, time.Hour)
		require.NoError(t, err)
		r.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, r)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestSendMessage_RequiresSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/messages/send", "", map[string]string{"receiverId": "bob", "text": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendMessage_Direct(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/messages/send", "alice", map[string]string{"receiverId": "bob", "text": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var msg models.Message
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "bob", msg.ReceiverID)
	assert.Equal(t, models.StatusSent, msg.Status)
}

func TestSendMessage_RejectsAmbiguousAudience(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/messages/send", "alice",
		map[string]string{"receiverId": "bob", "groupId": "g1", "text": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/messages/send", "alice", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage_RejectsEmptyBody(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/messages/send", "alice", map[string]string{"receiverId": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDirectHistory(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/messages/send", "alice", map[string]string{"receiverId": "bob", "text": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/messages/alice", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history []models.Message
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Text)
}

func TestAddReaction_UnknownMessage(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/messages/missing/reactions", "alice", map[string]string{"emoji": "👍"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddReaction(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/messages/send", "alice", map[string]string{"receiverId": "bob", "text": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &msg))

	rec = s.do(t, http.MethodPost, "/api/v1/messages/"+msg.ID+"/reactions", "bob", map[string]string{"emoji": "👍"})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Message
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &updated))
	assert.Equal(t, []models.Reaction{{AccountID: "bob", Emoji: "👍"}}, updated.Reactions)
}

func TestMarkSeen_RequiresCounterpart(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/messages/seen", "bob", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSidebar(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/messages/send", "alice", map[string]string{"receiverId": "bob", "text": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/conversations", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []models.ConversationSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summaries))
	require.Len(t, summaries, 2)
	assert.True(t, summaries[0].IsGroup)
	assert.Equal(t, "g1", summaries[0].PeerID)
	assert.Equal(t, "alice", summaries[1].PeerID)
}

func TestAttachmentRoundtrip(t *testing.T) {
	s := newTestServer(t)

	// "hello" base64-encoded inside a png data URI.
	rec := s.do(t, http.MethodPost, "/api/v1/messages/send", "alice",
		map[string]string{"receiverId": "bob", "image": "data:image/png;base64,aGVsbG8="})
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &msg))
	require.True(t, strings.HasPrefix(msg.Image, "/api/v1/attachments/"))

	rec = s.do(t, http.MethodGet, msg.Image, "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "hello", rec.Body.String())
}
