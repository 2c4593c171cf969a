package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatline/internal/models"
	"chatline/internal/ws"
)

// MessageStore is the persisted message history. Inserts, status updates
// and reaction updates touch disjoint fields; only reactions need
// per-message serialization, which the store provides.
type MessageStore interface {
	Insert(ctx context.Context, msg *models.Message) error
	Get(ctx context.Context, id string) (*models.Message, error)
	// MarkDelivered promotes sent -> delivered; any other status is left alone.
	MarkDelivered(ctx context.Context, id string) error
	// MarkSeen sets status=seen on every direct message counterpart->viewer
	// not already seen, returning how many changed.
	MarkSeen(ctx context.Context, viewerID, counterpartID string) (int, error)
	// UpsertReaction overwrites accountID's reaction on the message or adds
	// one, atomically with respect to other accounts' reactions.
	UpsertReaction(ctx context.Context, messageID, accountID, emoji string) (*models.Message, error)
	DirectHistory(ctx context.Context, accountID, peerID string) ([]models.Message, error)
	GroupHistory(ctx context.Context, groupID string) ([]models.Message, error)
	// LatestByCounterpart returns the most recent message per distinct
	// other party, newest first.
	LatestByCounterpart(ctx context.Context, accountID string) ([]models.Message, error)
	// LatestGroupMessage returns nil when the group has no messages yet.
	LatestGroupMessage(ctx context.Context, groupID string) (*models.Message, error)
}

// Directory is the read-only view of accounts and groups owned by the
// identity and group CRUD layers.
type Directory interface {
	AccountExists(ctx context.Context, id string) (bool, error)
	// Group returns nil (not an error) when the group does not exist.
	Group(ctx context.Context, id string) (*models.Group, error)
	GroupsFor(ctx context.Context, accountID string) ([]models.Group, error)
}

// AttachmentStore uploads an attachment to the object store before the
// message is persisted, returning the reference stored on the message.
type AttachmentStore interface {
	Upload(ctx context.Context, dataURI string) (string, error)
}

// Notifier is the live fan-out side of the hub.
type Notifier interface {
	Notify(event string, payload interface{}, accountIDs ...string)
	IsOnline(accountID string) bool
}

// SeenNotice tells a sender which peer just marked their messages seen.
type SeenNotice struct {
	CounterpartID string `json:"counterpartId"`
}

// TypingNotice identifies who is typing.
type TypingNotice struct {
	SenderID string `json:"senderId"`
}

// Service routes messages, advances their delivery status, merges
// reactions and aggregates the sidebar. Persistence and live delivery
// are decoupled: a message that cannot be delivered live is still
// persisted and shows up on the next history fetch.
type Service struct {
	store       MessageStore
	dir         Directory
	attachments AttachmentStore
	notifier    Notifier
	log         *zap.Logger
}

func NewService(store MessageStore, dir Directory, attachments AttachmentStore, notifier Notifier, log *zap.Logger) *Service {
	return &Service{store: store, dir: dir, attachments: attachments, notifier: notifier, log: log}
}

// Send validates, persists and fans out a composed message. Direct
// messages go to the receiver's connections only; group messages go to
// every member, sender included, so the sender's other tabs stay in sync.
func (s *Service) Send(ctx context.Context, senderID string, aud models.Audience, text, image string) (*models.Message, error) {
	if text == "" && image == "" {
		return nil, &ValidationError{Reason: "message needs text or an attachment"}
	}
	if aud.ID() == "" {
		return nil, &ValidationError{Reason: "message needs a receiver or a group"}
	}

	var members []string
	if aud.IsGroup() {
		group, err := s.dir.Group(ctx, aud.ID())
		if err != nil {
			return nil, fmt.Errorf("resolve group: %w", err)
		}
		if group == nil {
			return nil, &ValidationError{Reason: "unknown group " + aud.ID()}
		}
		members = group.Members
	} else {
		ok, err := s.dir.AccountExists(ctx, aud.ID())
		if err != nil {
			return nil, fmt.Errorf("resolve receiver: %w", err)
		}
		if !ok {
			return nil, &ValidationError{Reason: "unknown account " + aud.ID()}
		}
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Text:      text,
		Status:    models.StatusSent,
		CreatedAt: time.Now().UTC(),
	}
	if aud.IsGroup() {
		msg.GroupID = aud.ID()
	} else {
		msg.ReceiverID = aud.ID()
	}

	// The upload must resolve before the message exists; a failed upload
	// leaves no partial message behind.
	if image != "" {
		ref, err := s.attachments.Upload(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
		msg.Image = ref
	}

	if err := s.store.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if aud.IsGroup() {
		s.notifier.Notify(ws.EventNewMessage, msg, members...)
	} else {
		if s.notifier.IsOnline(aud.ID()) {
			if err := s.store.MarkDelivered(ctx, msg.ID); err != nil {
				s.log.Warn("mark delivered", zap.String("messageId", msg.ID), zap.Error(err))
			} else {
				msg.Status = models.StatusDelivered
			}
		}
		s.notifier.Notify(ws.EventNewMessage, msg, aud.ID())
	}

	s.log.Info("message sent",
		zap.String("messageId", msg.ID),
		zap.String("senderId", senderID),
		zap.Bool("group", aud.IsGroup()))
	return msg, nil
}

// MarkSeen bulk-marks every direct message counterpart->viewer as seen.
// Idempotent: when nothing changed, no notification goes out.
func (s *Service) MarkSeen(ctx context.Context, viewerID, counterpartID string) error {
	updated, err := s.store.MarkSeen(ctx, viewerID, counterpartID)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	if updated == 0 {
		return nil
	}
	s.notifier.Notify(ws.EventMessagesSeen, SeenNotice{CounterpartID: viewerID}, counterpartID)
	s.log.Info("messages seen",
		zap.String("viewerId", viewerID),
		zap.String("counterpartId", counterpartID),
		zap.Int("updated", updated))
	return nil
}

// React applies accountID's reaction to a message and broadcasts the
// updated message to the conversation's participants.
func (s *Service) React(ctx context.Context, messageID, accountID, emoji string) (*models.Message, error) {
	if emoji == "" {
		return nil, &ValidationError{Reason: "emoji is required"}
	}
	msg, err := s.store.UpsertReaction(ctx, messageID, accountID, emoji)
	if err != nil {
		return nil, err
	}

	targets := []string{msg.SenderID, msg.ReceiverID}
	if msg.IsGroup() {
		group, err := s.dir.Group(ctx, msg.GroupID)
		if err != nil {
			return nil, fmt.Errorf("resolve group: %w", err)
		}
		targets = nil
		if group != nil {
			targets = group.Members
		}
	}
	s.notifier.Notify(ws.EventMessageReaction, msg, targets...)
	return msg, nil
}

// Sidebar builds the conversation list: every group the account belongs
// to, then direct-message counterparts ordered by latest activity. Groups
// are concatenated ahead of the direct list rather than interleaved.
func (s *Service) Sidebar(ctx context.Context, accountID string) ([]models.ConversationSummary, error) {
	groups, err := s.dir.GroupsFor(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	summaries := make([]models.ConversationSummary, 0, len(groups))
	for _, group := range groups {
		last, err := s.store.LatestGroupMessage(ctx, group.ID)
		if err != nil {
			return nil, fmt.Errorf("latest group message: %w", err)
		}
		summaries = append(summaries, models.ConversationSummary{
			PeerID:      group.ID,
			IsGroup:     true,
			Name:        group.Name,
			LastMessage: last,
		})
	}

	latest, err := s.store.LatestByCounterpart(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("latest direct messages: %w", err)
	}
	for i := range latest {
		msg := latest[i]
		peer := msg.SenderID
		if peer == accountID {
			peer = msg.ReceiverID
		}
		summaries = append(summaries, models.ConversationSummary{
			PeerID:      peer,
			LastMessage: &msg,
		})
	}
	return summaries, nil
}

// Typing relays an ephemeral typing indicator; nothing is persisted.
// Group indicators skip the sender's own connections.
func (s *Service) Typing(ctx context.Context, senderID string, aud models.Audience, start bool) error {
	event := ws.EventTypingStop
	if start {
		event = ws.EventTypingStart
	}
	notice := TypingNotice{SenderID: senderID}

	if !aud.IsGroup() {
		s.notifier.Notify(event, notice, aud.ID())
		return nil
	}
	group, err := s.dir.Group(ctx, aud.ID())
	if err != nil {
		return fmt.Errorf("resolve group: %w", err)
	}
	if group == nil {
		return nil
	}
	targets := make([]string, 0, len(group.Members))
	for _, member := range group.Members {
		if member != senderID {
			targets = append(targets, member)
		}
	}
	s.notifier.Notify(event, notice, targets...)
	return nil
}

// DirectHistory returns the full two-way history with a peer, oldest
// first. Offline recipients catch up through this.
func (s *Service) DirectHistory(ctx context.Context, accountID, peerID string) ([]models.Message, error) {
	return s.store.DirectHistory(ctx, accountID, peerID)
}

// GroupHistory returns a group's history, oldest first.
func (s *Service) GroupHistory(ctx context.Context, groupID string) ([]models.Message, error) {
	return s.store.GroupHistory(ctx, groupID)
}
