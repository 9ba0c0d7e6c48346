package kv

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// document is the internal representation of one stored entry.
type document struct {
	value     []byte
	cas       Cas
	flags     uint32
	expiresAt time.Time // Zero means no expiry
	lockedTo  time.Time // Zero means not locked
}

// Memory is an in-process Client backed by a map. It honors the same CAS,
// expiry and locking semantics the remote store does, which makes it the
// engine behind the standalone server and the fixture for coordinator
// tests. All methods are safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	docs    map[string]*document
	nextCas Cas
	now     func() time.Time // Overridable for tests
}

// NewMemory creates an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]*document),
		nextCas: 1,
		now:     time.Now,
	}
}

// lookup returns the live document for key, expiring it lazily.
// Caller must hold m.mu.
func (m *Memory) lookup(key string) *document {
	doc, ok := m.docs[key]
	if !ok {
		return nil
	}
	if !doc.expiresAt.IsZero() && m.now().After(doc.expiresAt) {
		delete(m.docs, key)
		return nil
	}
	return doc
}

// assignCas hands out the next CAS token. Caller must hold m.mu.
func (m *Memory) assignCas() Cas {
	cas := m.nextCas
	m.nextCas++
	return cas
}

func (m *Memory) expiryTime(expiry uint32) time.Time {
	if expiry == 0 {
		return time.Time{}
	}
	return m.now().Add(time.Duration(expiry) * time.Second)
}

func (m *Memory) Get(key string) (GetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.lookup(key)
	if doc == nil {
		return GetResult{}, ErrDocumentNotFound
	}
	return GetResult{Cas: doc.cas, Value: bytes.Clone(doc.value)}, nil
}

// GetAndLock fetches a document and write-locks it for lockTime. The
// returned CAS is the lock token to pass to Unlock. Mutations against a
// locked document fail with ErrDocumentLocked until unlocked or expired.
func (m *Memory) GetAndLock(key string, lockTime time.Duration) (GetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.lookup(key)
	if doc == nil {
		return GetResult{}, ErrDocumentNotFound
	}
	if m.isLocked(doc) {
		return GetResult{}, ErrDocumentLocked
	}
	doc.lockedTo = m.now().Add(lockTime)
	doc.cas = m.assignCas()
	return GetResult{Cas: doc.cas, Value: bytes.Clone(doc.value)}, nil
}

func (m *Memory) isLocked(doc *document) bool {
	return !doc.lockedTo.IsZero() && m.now().Before(doc.lockedTo)
}

func (m *Memory) Store(key string, value []byte, mode StoreMode, opts StoreOptions) (MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.lookup(key)
	switch mode {
	case StoreInsert:
		if doc != nil {
			return MutationResult{}, ErrDocumentExists
		}
	case StoreReplace:
		if doc == nil {
			return MutationResult{}, ErrDocumentNotFound
		}
	case StoreUpsert:
		// No existence precondition.
	default:
		return MutationResult{}, fmt.Errorf("%w: store mode %d", ErrInvalidArgument, mode)
	}

	if doc != nil {
		if m.isLocked(doc) && opts.Cas != doc.cas {
			return MutationResult{}, ErrDocumentLocked
		}
		if opts.Cas != 0 && opts.Cas != doc.cas {
			return MutationResult{}, ErrCasMismatch
		}
	} else if opts.Cas != 0 {
		return MutationResult{}, ErrCasMismatch
	}

	stored := &document{
		value:     bytes.Clone(value),
		flags:     opts.Flags,
		expiresAt: m.expiryTime(opts.Expiry),
		cas:       m.assignCas(),
	}
	m.docs[key] = stored
	return MutationResult{Cas: stored.cas}, nil
}

func (m *Memory) Remove(key string, opts RemoveOptions) (MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.lookup(key)
	if doc == nil {
		return MutationResult{}, ErrDocumentNotFound
	}
	if m.isLocked(doc) && opts.Cas != doc.cas {
		return MutationResult{}, ErrDocumentLocked
	}
	if opts.Cas != 0 && opts.Cas != doc.cas {
		return MutationResult{}, ErrCasMismatch
	}
	delete(m.docs, key)
	return MutationResult{Cas: m.assignCas()}, nil
}

func (m *Memory) Counter(key string, delta int64, opts CounterOptions) (CounterResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.lookup(key)
	if doc == nil {
		// Counter creation stores the initial value; the delta is not applied.
		stored := &document{
			value:     []byte(strconv.FormatInt(opts.Initial, 10)),
			expiresAt: m.expiryTime(opts.Expiry),
			cas:       m.assignCas(),
		}
		m.docs[key] = stored
		return CounterResult{Cas: stored.cas, Value: opts.Initial}, nil
	}
	if m.isLocked(doc) {
		return CounterResult{}, ErrDocumentLocked
	}

	current, err := strconv.ParseInt(string(doc.value), 10, 64)
	if err != nil {
		return CounterResult{}, fmt.Errorf("%w: %q", ErrValueNotCounter, doc.value)
	}
	current += delta
	doc.value = []byte(strconv.FormatInt(current, 10))
	doc.cas = m.assignCas()
	return CounterResult{Cas: doc.cas, Value: current}, nil
}

func (m *Memory) Touch(key string, expiry uint32) (MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.lookup(key)
	if doc == nil {
		return MutationResult{}, ErrDocumentNotFound
	}
	doc.expiresAt = m.expiryTime(expiry)
	doc.cas = m.assignCas()
	return MutationResult{Cas: doc.cas}, nil
}

func (m *Memory) Unlock(key string, cas Cas) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.lookup(key)
	if doc == nil {
		return ErrDocumentNotFound
	}
	if cas != doc.cas {
		return ErrCasMismatch
	}
	doc.lockedTo = time.Time{}
	return nil
}

// Query supports a single statement form, "SCAN <prefix>", which returns
// all live documents whose key starts with the prefix, ordered by key.
func (m *Memory) Query(statement string, opts QueryOptions) ([]QueryRow, error) {
	fields := strings.Fields(statement)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "SCAN") {
		return nil, fmt.Errorf("%w: unsupported statement %q", ErrQueryFailed, statement)
	}
	prefix := ""
	if len(fields) > 1 {
		prefix = fields[1]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.docs))
	for key := range m.docs {
		if strings.HasPrefix(key, prefix) && m.lookup(key) != nil {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	rows := make([]QueryRow, 0, len(keys))
	for _, key := range keys {
		if opts.Limit > 0 && len(rows) >= opts.Limit {
			break
		}
		rows = append(rows, QueryRow{Key: key, Value: bytes.Clone(m.docs[key].value)})
	}
	return rows, nil
}

// Len reports the number of live documents. Used by tests and the server's
// status logging.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.docs {
		if m.lookup(key) != nil {
			n++
		}
	}
	return n
}
