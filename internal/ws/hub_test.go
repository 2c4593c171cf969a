package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(accountID string, buffer int) *Client {
	return &Client{AccountID: accountID, Send: make(chan []byte, buffer)}
}

func decodeFrame(t *testing.T, raw []byte) Frame {
	t.Helper()
	var frame Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func decodeOnlineList(t *testing.T, raw []byte) []string {
	t.Helper()
	frame := decodeFrame(t, raw)
	require.Equal(t, EventOnlineAccounts, frame.Event)
	var ids []string
	require.NoError(t, json.Unmarshal(frame.Data, &ids))
	return ids
}

func TestHub_FirstConnectionBroadcastsOnlineList(t *testing.T) {
	hub := NewHub(zap.NewNop())
	alice := newTestClient("alice", 4)

	hub.Add(alice)
	assert.Equal(t, []string{"alice"}, decodeOnlineList(t, <-alice.Send))

	bob := newTestClient("bob", 4)
	hub.Add(bob)
	assert.Equal(t, []string{"alice", "bob"}, decodeOnlineList(t, <-alice.Send))
	assert.Equal(t, []string{"alice", "bob"}, decodeOnlineList(t, <-bob.Send))
}

func TestHub_SecondConnectionSameAccountDoesNotBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	tab1 := newTestClient("alice", 4)
	tab2 := newTestClient("alice", 4)

	hub.Add(tab1)
	<-tab1.Send // initial snapshot

	hub.Add(tab2)
	assert.Empty(t, tab1.Send)
	assert.Empty(t, tab2.Send)
	assert.True(t, hub.IsOnline("alice"))
	assert.Len(t, hub.ConnectionsFor("alice"), 2)
}

func TestHub_RemoveLastConnectionTakesAccountOffline(t *testing.T) {
	hub := NewHub(zap.NewNop())
	aliceTab1 := newTestClient("alice", 8)
	aliceTab2 := newTestClient("alice", 8)
	bob := newTestClient("bob", 8)

	hub.Add(aliceTab1)
	hub.Add(aliceTab2)
	hub.Add(bob)

	hub.Remove(aliceTab1)
	assert.True(t, hub.IsOnline("alice"), "one tab still open")

	hub.Remove(aliceTab2)
	assert.False(t, hub.IsOnline("alice"))
	assert.Empty(t, hub.ConnectionsFor("alice"))
	assert.Equal(t, []string{"bob"}, hub.OnlineAccounts())

	// Closed send channel ends the write pump.
	_, open := <-aliceTab2.Send
	assert.False(t, open)

	// Bob saw the departure.
	var last []string
	for len(bob.Send) > 0 {
		last = decodeOnlineList(t, <-bob.Send)
	}
	assert.Equal(t, []string{"bob"}, last)
}

func TestHub_NotifyTargetsOnlyGivenAccounts(t *testing.T) {
	hub := NewHub(zap.NewNop())
	alice := newTestClient("alice", 8)
	bob := newTestClient("bob", 8)
	hub.Add(alice)
	hub.Add(bob)
	for len(alice.Send) > 0 {
		<-alice.Send
	}
	for len(bob.Send) > 0 {
		<-bob.Send
	}

	hub.Notify(EventNewMessage, map[string]string{"text": "hi"}, "bob")

	require.Len(t, bob.Send, 1)
	assert.Equal(t, EventNewMessage, decodeFrame(t, <-bob.Send).Event)
	assert.Empty(t, alice.Send)
}

func TestHub_NotifyOfflineAccountIsSilentNoop(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Notify(EventNewMessage, "payload", "ghost")
	assert.False(t, hub.IsOnline("ghost"))
}

func TestHub_StalledConnectionIsDroppedWithoutAffectingOthers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	stalled := newTestClient("alice", 0) // no buffer, no reader: always blocked
	healthy := newTestClient("bob", 8)
	hub.Add(stalled)
	hub.Add(healthy)
	for len(healthy.Send) > 0 {
		<-healthy.Send
	}

	hub.Notify(EventNewMessage, "hello", "alice", "bob")

	assert.False(t, hub.IsOnline("alice"))
	found := false
	for len(healthy.Send) > 0 {
		if decodeFrame(t, <-healthy.Send).Event == EventNewMessage {
			found = true
		}
	}
	assert.True(t, found, "healthy client still got the message")
}
