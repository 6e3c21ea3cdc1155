package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// waitForEvents polls until the async writer has persisted count events.
func waitForEvents(t *testing.T, s *Store, channel string, count int) []Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		events, err := s.Recent(channel, 0)
		require.NoError(t, err)
		if len(events) >= count {
			return events
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d events, writer did not catch up", count)
	return nil
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)

	s.Record("#room", "alice", "join", "")
	s.Record("#room", "alice", "message", "hello")
	s.Record("#room", "alice", "part", "bye")

	events := waitForEvents(t, s, "#room", 3)

	// Newest first.
	assert.Equal(t, "part", events[0].Kind)
	assert.Equal(t, "message", events[1].Kind)
	assert.Equal(t, "hello", events[1].Text)
	assert.Equal(t, "join", events[2].Kind)
}

func TestRecentChannelFilter(t *testing.T) {
	s := openStore(t)

	s.Record("#alpha", "alice", "message", "one")
	s.Record("#beta", "bob", "message", "two")

	events := waitForEvents(t, s, "#alpha", 1)
	assert.Equal(t, "#alpha", events[0].Channel)
	assert.Equal(t, "one", events[0].Text)

	all := waitForEvents(t, s, "", 2)
	assert.Len(t, all, 2)
}

func TestRecentLimit(t *testing.T) {
	s := openStore(t)

	for i := 0; i < 5; i++ {
		s.Record("#room", "alice", "message", "spam")
	}
	waitForEvents(t, s, "#room", 5)

	events, err := s.Recent("#room", 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRecordAfterClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Must not panic or block.
	s.Record("#room", "alice", "message", "late")
	assert.NoError(t, s.Close())
}
