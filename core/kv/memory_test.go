package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMemoryStoreModes exercises the three store modes and their
// existence preconditions.
func TestMemoryStoreModes(t *testing.T) {
	m := NewMemory()

	// Insert is strict.
	res, err := m.Store("k", []byte("v1"), StoreInsert, StoreOptions{})
	require.NoError(t, err)
	require.NotZero(t, res.Cas)
	_, err = m.Store("k", []byte("v2"), StoreInsert, StoreOptions{})
	require.ErrorIs(t, err, ErrDocumentExists)

	// Replace requires existence.
	_, err = m.Store("missing", []byte("v"), StoreReplace, StoreOptions{})
	require.ErrorIs(t, err, ErrDocumentNotFound)

	// Upsert takes either path.
	_, err = m.Store("k", []byte("v2"), StoreUpsert, StoreOptions{})
	require.NoError(t, err)
	_, err = m.Store("fresh", []byte("v"), StoreUpsert, StoreOptions{})
	require.NoError(t, err)

	got, err := m.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got.Value)
}

// TestMemoryCasPrecondition verifies optimistic concurrency on replace
// and remove.
func TestMemoryCasPrecondition(t *testing.T) {
	m := NewMemory()

	first, err := m.Store("k", []byte("v1"), StoreInsert, StoreOptions{})
	require.NoError(t, err)

	// A replace under the current CAS succeeds and bumps it.
	second, err := m.Store("k", []byte("v2"), StoreReplace, StoreOptions{Cas: first.Cas})
	require.NoError(t, err)
	require.NotEqual(t, first.Cas, second.Cas)

	// The stale CAS no longer matches.
	_, err = m.Store("k", []byte("v3"), StoreReplace, StoreOptions{Cas: first.Cas})
	require.ErrorIs(t, err, ErrCasMismatch)
	_, err = m.Remove("k", RemoveOptions{Cas: first.Cas})
	require.ErrorIs(t, err, ErrCasMismatch)

	// Remove with the right CAS works.
	_, err = m.Remove("k", RemoveOptions{Cas: second.Cas})
	require.NoError(t, err)
	_, err = m.Get("k")
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

// TestMemoryCounter covers creation with an initial value and signed
// deltas thereafter.
func TestMemoryCounter(t *testing.T) {
	m := NewMemory()

	// Creation applies the initial value, not the delta.
	res, err := m.Counter("hits", 5, CounterOptions{Initial: 100})
	require.NoError(t, err)
	require.Equal(t, int64(100), res.Value)

	res, err = m.Counter("hits", 5, CounterOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(105), res.Value)

	res, err = m.Counter("hits", -7, CounterOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(98), res.Value)

	// Non-numeric documents refuse arithmetic.
	_, err = m.Store("text", []byte("hello"), StoreInsert, StoreOptions{})
	require.NoError(t, err)
	_, err = m.Counter("text", 1, CounterOptions{})
	require.ErrorIs(t, err, ErrValueNotCounter)
}

// TestMemoryTouchAndExpiry uses a fake clock to check lazy expiry.
func TestMemoryTouchAndExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1_000_000, 0)
	m.now = func() time.Time { return now }

	_, err := m.Store("k", []byte("v"), StoreInsert, StoreOptions{})
	require.NoError(t, err)

	_, err = m.Touch("k", 60)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = m.Get("k")
	require.NoError(t, err)

	now = now.Add(31 * time.Second)
	_, err = m.Get("k")
	require.ErrorIs(t, err, ErrDocumentNotFound)

	// Touch with zero clears the expiry.
	_, err = m.Store("k2", []byte("v"), StoreInsert, StoreOptions{Expiry: 10})
	require.NoError(t, err)
	_, err = m.Touch("k2", 0)
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = m.Get("k2")
	require.NoError(t, err)

	_, err = m.Touch("missing", 60)
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

// TestMemoryLocking covers GetAndLock, the lock's effect on mutations,
// and Unlock's CAS check.
func TestMemoryLocking(t *testing.T) {
	m := NewMemory()

	_, err := m.Store("k", []byte("v"), StoreInsert, StoreOptions{})
	require.NoError(t, err)

	locked, err := m.GetAndLock("k", time.Minute)
	require.NoError(t, err)

	// A second lock attempt and a blind mutation both bounce.
	_, err = m.GetAndLock("k", time.Minute)
	require.ErrorIs(t, err, ErrDocumentLocked)
	_, err = m.Store("k", []byte("v2"), StoreUpsert, StoreOptions{})
	require.ErrorIs(t, err, ErrDocumentLocked)

	// Unlock needs the lock token.
	require.ErrorIs(t, m.Unlock("k", locked.Cas+999), ErrCasMismatch)
	require.NoError(t, m.Unlock("k", locked.Cas))

	_, err = m.Store("k", []byte("v2"), StoreUpsert, StoreOptions{})
	require.NoError(t, err)

	require.ErrorIs(t, m.Unlock("missing", 1), ErrDocumentNotFound)
}

// TestMemoryQueryScan checks prefix scans, ordering and the limit.
func TestMemoryQueryScan(t *testing.T) {
	m := NewMemory()
	for _, key := range []string{"user:2", "user:1", "order:1", "user:3"} {
		_, err := m.Store(key, []byte("v-"+key), StoreUpsert, StoreOptions{})
		require.NoError(t, err)
	}

	rows, err := m.Query("SCAN user:", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "user:1", rows[0].Key)
	require.Equal(t, "user:3", rows[2].Key)

	rows, err = m.Query("SCAN user:", QueryOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// A bare SCAN returns everything.
	rows, err = m.Query("SCAN", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	_, err = m.Query("SELECT * FROM docs", QueryOptions{})
	require.ErrorIs(t, err, ErrQueryFailed)
}
