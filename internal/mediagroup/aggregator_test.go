package mediagroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorFlushesAlbumOnce(t *testing.T) {
	flushed := make(chan Group, 4)
	a := New(Options{Debounce: 30 * time.Millisecond, OnFlush: func(g Group) { flushed <- g }})

	assert.True(t, a.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "f1"}))
	assert.False(t, a.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "f2"}))
	assert.False(t, a.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "f3"}))
	assert.Equal(t, 1, a.Pending())

	select {
	case g := <-flushed:
		assert.Equal(t, int64(1), g.ChatID)
		require.Len(t, g.Items, 3)
		assert.Equal(t, "f1", g.First().FileID)
	case <-time.After(2 * time.Second):
		t.Fatal("album was not flushed")
	}

	select {
	case g := <-flushed:
		t.Fatalf("unexpected second flush: %+v", g)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Zero(t, a.Pending())
}

func TestAggregatorKeepsChatsApart(t *testing.T) {
	flushed := make(chan Group, 4)
	a := New(Options{Debounce: 20 * time.Millisecond, OnFlush: func(g Group) { flushed <- g }})

	assert.True(t, a.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "a"}))
	assert.True(t, a.Add(Item{ChatID: 2, MediaGroupID: "g", FileID: "b"}))

	got := map[int64]string{}
	for i := 0; i < 2; i++ {
		select {
		case g := <-flushed:
			got[g.ChatID] = g.First().FileID
		case <-time.After(2 * time.Second):
			t.Fatal("album was not flushed")
		}
	}
	assert.Equal(t, map[int64]string{1: "a", 2: "b"}, got)
}

func TestAggregatorIgnoresLooseItems(t *testing.T) {
	a := New(Options{})
	assert.False(t, a.Add(Item{ChatID: 1, FileID: "f"}))
	assert.False(t, a.Add(Item{ChatID: 1, MediaGroupID: "g"}))
	assert.Zero(t, a.Pending())
	assert.Equal(t, Item{}, Group{}.First())
}

func TestAggregatorStopDropsPending(t *testing.T) {
	flushed := make(chan Group, 1)
	a := New(Options{Debounce: 20 * time.Millisecond, OnFlush: func(g Group) { flushed <- g }})

	a.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "f"})
	a.Stop()
	assert.False(t, a.Add(Item{ChatID: 1, MediaGroupID: "h", FileID: "f"}))

	select {
	case <-flushed:
		t.Fatal("stopped aggregator flushed")
	case <-time.After(100 * time.Millisecond):
	}
}
