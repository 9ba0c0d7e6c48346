// Package connection provides a small, thread-safe TCP connection pool.
// It manages and reuses connections to a single remote host, which is
// ideal for a client issuing many short request/response exchanges
// against one server.
package connection

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// PooledConn wraps a net.Conn with a reference to its pool so callers can
// release it with a plain Close.
type PooledConn struct {
	net.Conn
	pool *Pool
}

// Close returns the connection to the pool for reuse. It does not close
// the underlying TCP connection; use Discard for that.
func (c *PooledConn) Close() error {
	if c.pool == nil {
		return fmt.Errorf("connection already released")
	}
	c.pool.put(c.Conn)
	c.pool = nil
	return nil
}

// Discard closes the underlying TCP connection permanently instead of
// returning it to the pool. Use it after an I/O error, when the
// connection's state can no longer be trusted.
func (c *PooledConn) Discard() error {
	if c.pool == nil {
		return fmt.Errorf("connection already released")
	}
	pool := c.pool
	c.pool = nil
	pool.dropped()
	return c.Conn.Close()
}

// Pool manages a bounded set of connections to one address.
type Pool struct {
	mu      sync.Mutex
	idle    chan net.Conn
	dial    func() (net.Conn, error)
	maxOpen int
	open    int
	closed  bool
}

// NewPool creates a pool for the given address. maxOpen bounds the number
// of simultaneously open connections; dialTimeout applies to each new
// connection attempt.
func NewPool(address string, maxOpen int, dialTimeout time.Duration) *Pool {
	if maxOpen < 1 {
		maxOpen = 1
	}
	return &Pool{
		idle: make(chan net.Conn, maxOpen),
		dial: func() (net.Conn, error) {
			return net.DialTimeout("tcp", address, dialTimeout)
		},
		maxOpen: maxOpen,
	}
}

// Get returns an idle connection, dialing a new one if the pool is not yet
// at capacity. When the pool is at capacity and every connection is in
// use, Get blocks until one is released.
func (p *Pool) Get() (*PooledConn, error) {
	select {
	case conn := <-p.idle:
		return &PooledConn{Conn: conn, pool: p}, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("connection pool is closed")
	}
	if p.open < p.maxOpen {
		p.open++
		p.mu.Unlock()
		conn, err := p.dial()
		if err != nil {
			p.dropped()
			return nil, err
		}
		return &PooledConn{Conn: conn, pool: p}, nil
	}
	p.mu.Unlock()

	conn := <-p.idle
	return &PooledConn{Conn: conn, pool: p}, nil
}

// put returns a connection to the idle set. If the pool has been closed in
// the meantime the connection is dropped instead.
func (p *Pool) put(conn net.Conn) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		conn.Close()
		return
	}
	select {
	case p.idle <- conn:
	default:
		// Idle set full; excess connections are not kept around.
		conn.Close()
		p.dropped()
	}
}

// dropped records that an open connection went away.
func (p *Pool) dropped() {
	p.mu.Lock()
	if p.open > 0 {
		p.open--
	}
	p.mu.Unlock()
}

// Close shuts the pool down and closes every idle connection. Connections
// currently checked out are closed when discarded or returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case conn := <-p.idle:
			conn.Close()
		default:
			return nil
		}
	}
}
