package models

// Audience is where a message is headed: a single account or a group.
// It is built once at the request boundary; nothing downstream guesses
// whether an id belongs to a user or a group.
type Audience struct {
	id    string
	group bool
}

// Direct addresses one account.
func Direct(receiverID string) Audience { return Audience{id: receiverID} }

// GroupChat addresses every member of a group.
func GroupChat(groupID string) Audience { return Audience{id: groupID, group: true} }

func (a Audience) ID() string    { return a.id }
func (a Audience) IsGroup() bool { return a.group }
