package valkeystore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"chatline/internal/chat"
)

const keyPrefix = "attachment:"

// AttachmentStore keeps uploaded attachments in Valkey. The send path
// uploads here before the message row exists; a failed upload means no
// message is created at all.
type AttachmentStore struct {
	client valkey.Client
	log    *zap.Logger
}

func NewAttachmentStore(addr string, log *zap.Logger) (*AttachmentStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}
	return &AttachmentStore{client: client, log: log}, nil
}

// Upload stores the data URI under an opaque key and returns the path the
// attachments endpoint serves it from.
func (s *AttachmentStore) Upload(ctx context.Context, dataURI string) (string, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return "", &chat.ValidationError{Reason: "attachment must be a data URI"}
	}
	id := uuid.NewString()
	cmd := s.client.B().Set().Key(keyPrefix + id).Value(dataURI).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return "", fmt.Errorf("store attachment: %w", err)
	}
	s.log.Debug("attachment stored", zap.String("attachmentId", id), zap.Int("bytes", len(dataURI)))
	return "/api/v1/attachments/" + id, nil
}

func (s *AttachmentStore) Fetch(ctx context.Context, id string) (string, error) {
	cmd := s.client.B().Get().Key(keyPrefix + id).Build()
	blob, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", &chat.NotFoundError{Kind: "attachment", ID: id}
		}
		return "", fmt.Errorf("fetch attachment: %w", err)
	}
	return blob, nil
}

func (s *AttachmentStore) Close() {
	s.client.Close()
}
