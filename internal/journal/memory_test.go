package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournal_ReplayReturnsOnlyNewerEvents(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()

	require.NoError(t, j.Append(ctx, "p1", 1, Event{Kind: EntityStarted, ID: "a"}))
	require.NoError(t, j.Append(ctx, "p1", 2, Event{Kind: EntityStarted, ID: "b"}))
	require.NoError(t, j.Append(ctx, "p1", 3, Event{Kind: EntityStopped, ID: "a"}))

	events, lastSeq, err := j.Replay(ctx, "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), lastSeq)
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, EntityStarted, events[0].Kind)
	assert.Equal(t, "a", events[2].ID)
	assert.Equal(t, EntityStopped, events[2].Kind)

	events, lastSeq, err = j.Replay(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), lastSeq)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].ID)
}

func TestMemoryJournal_ReplayUnknownPersistenceIDIsEmpty(t *testing.T) {
	j := NewMemoryJournal()
	events, lastSeq, err := j.Replay(context.Background(), "nope", 5)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(5), lastSeq)
}

func TestMemorySnapshotStore_SaveThenLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySnapshotStore()

	_, _, ok, err := s.Load(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "p1", State{Entities: []string{"a", "b"}}, 2))

	state, seq, ok, err := s.Load(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), seq)
	assert.Equal(t, []string{"a", "b"}, state.Entities)
}
