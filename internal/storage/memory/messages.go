package memory

import (
	"context"
	"sort"
	"sync"

	"chatline/internal/chat"
	"chatline/internal/models"
)

// MessageStore keeps the message history in process memory. It backs the
// tests and local runs without Postgres.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string]*models.Message
	order    []string // insertion order; createdAt ties resolve by it
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string]*models.Message)}
}

func (s *MessageStore) Insert(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = clone(msg)
	s.order = append(s.order, msg.ID)
	return nil
}

func (s *MessageStore) Get(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, &chat.NotFoundError{Kind: "message", ID: id}
	}
	return clone(msg), nil
}

func (s *MessageStore) MarkDelivered(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return &chat.NotFoundError{Kind: "message", ID: id}
	}
	if msg.Status == models.StatusSent {
		msg.Status = models.StatusDelivered
	}
	return nil
}

func (s *MessageStore) MarkSeen(ctx context.Context, viewerID, counterpartID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, msg := range s.messages {
		if msg.SenderID == counterpartID && msg.ReceiverID == viewerID && msg.Status != models.StatusSeen {
			msg.Status = models.StatusSeen
			updated++
		}
	}
	return updated, nil
}

func (s *MessageStore) UpsertReaction(ctx context.Context, messageID, accountID, emoji string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, &chat.NotFoundError{Kind: "message", ID: messageID}
	}
	msg.SetReaction(accountID, emoji)
	return clone(msg), nil
}

func (s *MessageStore) DirectHistory(ctx context.Context, accountID, peerID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var history []models.Message
	for _, id := range s.order {
		msg := s.messages[id]
		if msg.IsGroup() {
			continue
		}
		if (msg.SenderID == accountID && msg.ReceiverID == peerID) ||
			(msg.SenderID == peerID && msg.ReceiverID == accountID) {
			history = append(history, *clone(msg))
		}
	}
	return history, nil
}

func (s *MessageStore) GroupHistory(ctx context.Context, groupID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var history []models.Message
	for _, id := range s.order {
		msg := s.messages[id]
		if msg.GroupID == groupID {
			history = append(history, *clone(msg))
		}
	}
	return history, nil
}

func (s *MessageStore) LatestByCounterpart(ctx context.Context, accountID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[string]*models.Message)
	for _, id := range s.order {
		msg := s.messages[id]
		if msg.IsGroup() {
			continue
		}
		var peer string
		switch accountID {
		case msg.SenderID:
			peer = msg.ReceiverID
		case msg.ReceiverID:
			peer = msg.SenderID
		default:
			continue
		}
		current, ok := latest[peer]
		if !ok || !msg.CreatedAt.Before(current.CreatedAt) {
			latest[peer] = msg
		}
	}
	result := make([]models.Message, 0, len(latest))
	for _, msg := range latest {
		result = append(result, *clone(msg))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MessageStore) LatestGroupMessage(ctx context.Context, groupID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		msg := s.messages[s.order[i]]
		if msg.GroupID == groupID {
			return clone(msg), nil
		}
	}
	return nil, nil
}

func clone(msg *models.Message) *models.Message {
	copied := *msg
	copied.Reactions = append([]models.Reaction(nil), msg.Reactions...)
	return &copied
}
