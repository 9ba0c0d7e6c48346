package connection

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startAcceptor runs a listener that accepts and holds connections until
// the test ends.
func startAcceptor(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()
	return ln.Addr().String()
}

// TestPoolReusesConnections checks that a released connection is handed
// out again instead of dialing a new one.
func TestPoolReusesConnections(t *testing.T) {
	addr := startAcceptor(t)
	pool := NewPool(addr, 2, time.Second)
	defer pool.Close()

	first, err := pool.Get()
	require.NoError(t, err)
	underlying := first.Conn
	require.NoError(t, first.Close())

	second, err := pool.Get()
	require.NoError(t, err)
	require.Same(t, underlying, second.Conn)
	require.NoError(t, second.Close())
}

// TestPoolDiscardDropsConnection makes sure Discard frees capacity for a
// fresh dial rather than recycling a broken connection.
func TestPoolDiscardDropsConnection(t *testing.T) {
	addr := startAcceptor(t)
	pool := NewPool(addr, 1, time.Second)
	defer pool.Close()

	conn, err := pool.Get()
	require.NoError(t, err)
	broken := conn.Conn
	require.NoError(t, conn.Discard())

	replacement, err := pool.Get()
	require.NoError(t, err)
	require.NotSame(t, broken, replacement.Conn)
	require.NoError(t, replacement.Close())
}

// TestPoolDoubleReleaseFails verifies a connection cannot be released
// twice.
func TestPoolDoubleReleaseFails(t *testing.T) {
	addr := startAcceptor(t)
	pool := NewPool(addr, 1, time.Second)
	defer pool.Close()

	conn, err := pool.Get()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.Error(t, conn.Close())
}

// TestPoolClosedRefusesGet checks Get after Close fails fast.
func TestPoolClosedRefusesGet(t *testing.T) {
	addr := startAcceptor(t)
	pool := NewPool(addr, 1, time.Second)
	require.NoError(t, pool.Close())

	_, err := pool.Get()
	require.Error(t, err)
}
