package txn

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sushant-115/sagakv/core/kv"
)

// State is the lifecycle state of a transaction context.
type State int

const (
	StateActive     State = iota // Operations may be recorded and commit/rollback invoked
	StateCommitted               // Terminal: every operation executed
	StateRolledBack              // Terminal: explicitly rolled back by the caller
	StateFailed                  // Terminal: an operation failed during commit
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Context owns the operation log and the compensation log of one
// transaction. It is the unit callers interact with: record operations
// with the Add*Operation methods, then Commit or Rollback exactly once.
//
// A Context is not safe for concurrent use. It shares the kv.Client it
// was given but does not own it; the client stays usable after the
// context is done.
type Context struct {
	id      string
	state   State
	client  kv.Client
	logger  *zap.Logger
	metrics *Metrics

	operations  []*OperationRecord
	rollbackOps []*OperationRecord
}

// Option customizes a Context at Begin time.
type Option func(*Context)

// WithLogger routes compensation/capture diagnostics to the given logger
// instead of discarding them.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches coordinator metric instruments.
func WithMetrics(metrics *Metrics) Option {
	return func(c *Context) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// Begin opens a new transaction context against the given client.
func Begin(client kv.Client, opts ...Option) (*Context, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	c := &Context{
		id:      uuid.NewString(),
		state:   StateActive,
		client:  client,
		logger:  zap.NewNop(),
		metrics: noopMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ID returns the transaction's UUID.
func (c *Context) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Context) State() State { return c.state }

// Len returns the number of recorded operations.
func (c *Context) Len() int { return len(c.operations) }

// record appends rec to the operation log after the shared preconditions
// pass. No mutation happens on failure.
func (c *Context) record(rec *OperationRecord) error {
	if c.state != StateActive {
		return ErrTransactionNotActive
	}
	if rec.Kind == OpQuery {
		if rec.Statement == "" {
			return ErrEmptyStatement
		}
	} else if rec.Key == "" {
		return ErrEmptyKey
	}
	c.operations = append(c.operations, rec)
	return nil
}

// AddGetOperation records a read of key. Reads participate in ordering
// but are never compensated.
func (c *Context) AddGetOperation(key string) error {
	return c.record(&OperationRecord{Kind: OpGet, Key: key})
}

// AddInsertOperation records a strict insert of value at key.
func (c *Context) AddInsertOperation(key string, value []byte, opts kv.StoreOptions) error {
	return c.record(&OperationRecord{
		Kind:       OpInsert,
		Key:        key,
		Value:      cloneBytes(value),
		Cas:        opts.Cas,
		Expiry:     opts.Expiry,
		Flags:      opts.Flags,
		Durability: opts.Durability,
	})
}

// AddUpsertOperation records an unconditional write of value at key. A
// before-image of the document is captured just ahead of execution so the
// compensation can either remove a created document or restore the prior
// value.
func (c *Context) AddUpsertOperation(key string, value []byte, opts kv.StoreOptions) error {
	return c.record(&OperationRecord{
		Kind:       OpUpsert,
		Key:        key,
		Value:      cloneBytes(value),
		Cas:        opts.Cas,
		Expiry:     opts.Expiry,
		Flags:      opts.Flags,
		Durability: opts.Durability,
	})
}

// AddReplaceOperation records a replace of the existing document at key.
func (c *Context) AddReplaceOperation(key string, value []byte, opts kv.StoreOptions) error {
	return c.record(&OperationRecord{
		Kind:       OpReplace,
		Key:        key,
		Value:      cloneBytes(value),
		Cas:        opts.Cas,
		Expiry:     opts.Expiry,
		Flags:      opts.Flags,
		Durability: opts.Durability,
	})
}

// AddRemoveOperation records a removal of the document at key.
func (c *Context) AddRemoveOperation(key string, opts kv.RemoveOptions) error {
	return c.record(&OperationRecord{
		Kind:       OpRemove,
		Key:        key,
		Cas:        opts.Cas,
		Durability: opts.Durability,
	})
}

// AddIncrementOperation records a counter increment by delta. delta must
// be the magnitude; it is compensated by an equal decrement.
func (c *Context) AddIncrementOperation(key string, delta int64, opts kv.CounterOptions) error {
	return c.record(&OperationRecord{
		Kind:       OpIncrement,
		Key:        key,
		Delta:      delta,
		Initial:    opts.Initial,
		Expiry:     opts.Expiry,
		Durability: opts.Durability,
	})
}

// AddDecrementOperation records a counter decrement by delta.
func (c *Context) AddDecrementOperation(key string, delta int64, opts kv.CounterOptions) error {
	return c.record(&OperationRecord{
		Kind:       OpDecrement,
		Key:        key,
		Delta:      delta,
		Initial:    opts.Initial,
		Expiry:     opts.Expiry,
		Durability: opts.Durability,
	})
}

// AddTouchOperation records an expiry update for key.
func (c *Context) AddTouchOperation(key string, expiry uint32) error {
	return c.record(&OperationRecord{Kind: OpTouch, Key: key, Expiry: expiry})
}

// AddUnlockOperation records an unlock of key with the given lock token.
func (c *Context) AddUnlockOperation(key string, cas kv.Cas) error {
	return c.record(&OperationRecord{Kind: OpUnlock, Key: key, Cas: cas})
}

// AddQueryOperation records a query. Queries participate in ordering but
// are never compensated.
func (c *Context) AddQueryOperation(statement string, opts kv.QueryOptions) error {
	return c.record(&OperationRecord{Kind: OpQuery, Statement: statement, Limit: opts.Limit})
}
