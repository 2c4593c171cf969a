package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_SetReactionOverwrites(t *testing.T) {
	msg := &Message{ID: "m1"}

	msg.SetReaction("alice", "👍")
	msg.SetReaction("bob", "🎉")
	msg.SetReaction("alice", "❤️")

	assert.Equal(t, []Reaction{
		{AccountID: "alice", Emoji: "❤️"},
		{AccountID: "bob", Emoji: "🎉"},
	}, msg.Reactions)
}

func TestAudience(t *testing.T) {
	direct := Direct("alice")
	assert.Equal(t, "alice", direct.ID())
	assert.False(t, direct.IsGroup())

	group := GroupChat("g1")
	assert.Equal(t, "g1", group.ID())
	assert.True(t, group.IsGroup())
}
