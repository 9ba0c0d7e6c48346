package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupRemote starts a server around a fresh memory engine and returns a
// remote client wired to it.
func setupRemote(t *testing.T) (*Remote, *Memory) {
	t.Helper()
	engine := NewMemory()
	server := NewServer(engine, zap.NewNop())
	require.NoError(t, server.Start("127.0.0.1:0"))
	t.Cleanup(func() { server.Close() })

	remote := NewRemote(RemoteConfig{
		Address:        server.Addr(),
		MaxConns:       2,
		DialTimeout:    time.Second,
		RequestTimeout: 2 * time.Second,
	}, zap.NewNop())
	t.Cleanup(func() { remote.Close() })
	return remote, engine
}

// TestRemoteRoundTrip drives every operation across the wire and checks
// the results against the engine.
func TestRemoteRoundTrip(t *testing.T) {
	remote, engine := setupRemote(t)

	stored, err := remote.Store("k", []byte("v1"), StoreInsert, StoreOptions{})
	require.NoError(t, err)
	require.NotZero(t, stored.Cas)

	got, err := remote.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got.Value)
	require.Equal(t, stored.Cas, got.Cas)

	replaced, err := remote.Store("k", []byte("v2"), StoreReplace, StoreOptions{Cas: stored.Cas})
	require.NoError(t, err)
	require.NotEqual(t, stored.Cas, replaced.Cas)

	counter, err := remote.Counter("hits", 0, CounterOptions{Initial: 10})
	require.NoError(t, err)
	require.Equal(t, int64(10), counter.Value)
	counter, err = remote.Counter("hits", 5, CounterOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(15), counter.Value)

	_, err = remote.Touch("k", 60)
	require.NoError(t, err)

	rows, err := remote.Query("SCAN", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	removed, err := remote.Remove("k", RemoveOptions{})
	require.NoError(t, err)
	require.NotZero(t, removed.Cas)

	// The engine saw all of it.
	require.Equal(t, 1, engine.Len())
}

// TestRemoteTypedErrors verifies that engine errors survive the wire as
// the same sentinel values.
func TestRemoteTypedErrors(t *testing.T) {
	remote, engine := setupRemote(t)

	_, err := remote.Get("missing")
	require.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = engine.Store("k", []byte("v"), StoreInsert, StoreOptions{})
	require.NoError(t, err)

	_, err = remote.Store("k", []byte("v2"), StoreInsert, StoreOptions{})
	require.ErrorIs(t, err, ErrDocumentExists)

	_, err = remote.Store("k", []byte("v2"), StoreReplace, StoreOptions{Cas: 424242})
	require.ErrorIs(t, err, ErrCasMismatch)

	err = remote.Unlock("k", 424242)
	require.ErrorIs(t, err, ErrCasMismatch)

	_, err = remote.Query("DROP TABLE", QueryOptions{})
	require.ErrorIs(t, err, ErrQueryFailed)
}

// TestRemoteConnectionReuse issues more requests than MaxConns to make
// sure pooled connections are returned and reused.
func TestRemoteConnectionReuse(t *testing.T) {
	remote, _ := setupRemote(t)

	for i := 0; i < 20; i++ {
		_, err := remote.Counter("seq", 1, CounterOptions{Initial: 1})
		require.NoError(t, err)
	}
	counter, err := remote.Counter("seq", 0, CounterOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(20), counter.Value)
}
