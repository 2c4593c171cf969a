package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chatline/internal/chat"
)

// AttachmentStore holds uploaded attachments in memory, mirroring the
// Valkey-backed store for tests and local runs.
type AttachmentStore struct {
	mu    sync.RWMutex
	blobs map[string]string
}

func NewAttachmentStore() *AttachmentStore {
	return &AttachmentStore{blobs: make(map[string]string)}
}

func (s *AttachmentStore) Upload(ctx context.Context, dataURI string) (string, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return "", &chat.ValidationError{Reason: "attachment must be a data URI"}
	}
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = dataURI
	return "/api/v1/attachments/" + id, nil
}

func (s *AttachmentStore) Fetch(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[id]
	if !ok {
		return "", &chat.NotFoundError{Kind: "attachment", ID: id}
	}
	return blob, nil
}
