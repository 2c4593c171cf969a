package models

// Account is the identity subsystem's view of a user. The chat core reads
// it for audience checks and never writes it.
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Group is a named member set with one admin. Membership is owned by the
// group CRUD layer; the chat core only reads it for fan-out and the
// sidebar.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	AdminID string   `json:"adminId"`
	IconURL string   `json:"iconUrl,omitempty"`
	Members []string `json:"-"`
}

// ConversationSummary is one sidebar row: a direct-message counterpart or
// a group, with the most recent message when one exists. It is derived on
// every request and never cached.
type ConversationSummary struct {
	PeerID      string   `json:"peerId"`
	IsGroup     bool     `json:"isGroup"`
	Name        string   `json:"name,omitempty"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}
