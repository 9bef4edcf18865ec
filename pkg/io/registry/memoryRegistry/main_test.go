package memoryregistry

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/quil-bridge/pkg/io/registry"
)

type fakeEntry struct {
	id     uuid.UUID
	seen   time.Time
	reg    registry.SessionRegistry
	closed int
	mu     sync.Mutex
}

func (f *fakeEntry) ID() uuid.UUID          { return f.id }
func (f *fakeEntry) ConnectedAt() time.Time { return time.Time{} }
func (f *fakeEntry) LastActive() time.Time  { return f.seen }
func (f *fakeEntry) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	f.reg.Remove(f.id)
	return nil
}

func TestInsertRemoveCount(t *testing.T) {
	reg := New()
	e := &fakeEntry{id: uuid.New(), reg: reg}

	require.NoError(t, reg.Insert(e))
	assert.Error(t, reg.Insert(e))
	assert.Equal(t, 1, reg.Count())

	got, ok := reg.Get(e.id)
	require.True(t, ok)
	assert.Equal(t, e.id, got.ID())

	assert.True(t, reg.Remove(e.id))
	assert.False(t, reg.Remove(e.id))
	assert.Zero(t, reg.Count())
}

func TestConcurrentConnectDisconnectReturnsToZero(t *testing.T) {
	reg := New()
	const n = 200

	entries := make([]*fakeEntry, n)
	var wg sync.WaitGroup
	for i := range entries {
		entries[i] = &fakeEntry{id: uuid.New(), reg: reg}
		wg.Add(1)
		go func(e *fakeEntry) {
			defer wg.Done()
			assert.NoError(t, reg.Insert(e))
		}(entries[i])
	}
	wg.Wait()
	assert.Equal(t, n, reg.Count())

	rand.Shuffle(n, func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	for _, e := range entries {
		wg.Add(1)
		go func(e *fakeEntry) {
			defer wg.Done()
			reg.Remove(e.id)
		}(e)
	}
	wg.Wait()
	assert.Zero(t, reg.Count())
}

func TestCloseAll(t *testing.T) {
	reg := New()
	a := &fakeEntry{id: uuid.New(), reg: reg}
	b := &fakeEntry{id: uuid.New(), reg: reg}
	require.NoError(t, reg.Insert(a))
	require.NoError(t, reg.Insert(b))

	stats := reg.Stats()
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Len(t, stats.Sessions, 2)

	require.NoError(t, reg.CloseAll())
	assert.Zero(t, reg.Count())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
}

func TestStatsReportLastActive(t *testing.T) {
	reg := New()
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := &fakeEntry{id: uuid.New(), reg: reg, seen: seen}
	require.NoError(t, reg.Insert(e))

	stats := reg.Stats()
	require.Len(t, stats.Sessions, 1)
	assert.Equal(t, e.id.String(), stats.Sessions[0].SessionID)
	assert.Equal(t, seen, stats.Sessions[0].LastActive)
}
