package models

import "time"

// Status is the delivery lifecycle of a message. Transitions only move
// forward: sent -> delivered -> seen.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

// Reaction is a single account's emoji on a message. An account holds at
// most one reaction per message; reacting again replaces the emoji.
type Reaction struct {
	AccountID string `json:"accountId"`
	Emoji     string `json:"emoji"`
}

// Message is a persisted chat message. Exactly one of ReceiverID and
// GroupID is set, decided at creation and never re-inferred.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId,omitempty"`
	GroupID    string     `json:"groupId,omitempty"`
	Text       string     `json:"text,omitempty"`
	Image      string     `json:"image,omitempty"` // attachment reference, served by the attachments endpoint
	Status     Status     `json:"status"`
	Reactions  []Reaction `json:"reactions"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// IsGroup reports whether the message was addressed to a group.
func (m *Message) IsGroup() bool { return m.GroupID != "" }

// SetReaction overwrites accountID's existing reaction or appends a new one.
func (m *Message) SetReaction(accountID, emoji string) {
	for i := range m.Reactions {
		if m.Reactions[i].AccountID == accountID {
			m.Reactions[i].Emoji = emoji
			return
		}
	}
	m.Reactions = append(m.Reactions, Reaction{AccountID: accountID, Emoji: emoji})
}
