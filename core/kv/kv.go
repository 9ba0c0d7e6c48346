// Package kv defines the key-value client capability consumed by the
// transaction coordinator, together with the in-memory engine and the
// remote TCP client that implement it. The store offers single-document
// compare-and-swap only; multi-document atomicity is layered on top by
// the core/txn package.
package kv

// Cas is an opaque compare-and-swap token assigned by the store on every
// mutation. A zero Cas in an options struct means "no CAS precondition".
type Cas uint64

// StoreMode selects the semantics of a Store call.
type StoreMode int

const (
	StoreInsert  StoreMode = iota // Fails with ErrDocumentExists if the key is present
	StoreUpsert                   // Creates or overwrites unconditionally
	StoreReplace                  // Fails with ErrDocumentNotFound if the key is absent
)

func (m StoreMode) String() string {
	switch m {
	case StoreInsert:
		return "insert"
	case StoreUpsert:
		return "upsert"
	case StoreReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// DurabilityLevel expresses how durable a mutation must be before the
// store acknowledges it. The memory engine treats every level the same;
// a remote store may persist or replicate before replying.
type DurabilityLevel int

const (
	DurabilityNone        DurabilityLevel = iota // Acknowledge from memory
	DurabilityMajority                           // Replicated to a majority
	DurabilityPersistence                        // Persisted to disk
)

// StoreOptions carries the optional parameters of a Store call.
type StoreOptions struct {
	Cas        Cas // Precondition for replace; ignored for insert/upsert
	Expiry     uint32
	Flags      uint32
	Durability DurabilityLevel
}

// RemoveOptions carries the optional parameters of a Remove call.
type RemoveOptions struct {
	Cas        Cas
	Durability DurabilityLevel
}

// CounterOptions carries the optional parameters of a Counter call.
type CounterOptions struct {
	// Initial is the value assigned when the counter document does not
	// exist yet. The delta is not applied on creation.
	Initial    int64
	Expiry     uint32
	Durability DurabilityLevel
}

// QueryOptions carries the optional parameters of a Query call.
type QueryOptions struct {
	Limit int // 0 means unlimited
}

// GetResult is the outcome of a successful Get.
type GetResult struct {
	Cas   Cas
	Value []byte
}

// MutationResult is the outcome of a successful Store, Remove or Touch.
type MutationResult struct {
	Cas Cas
}

// CounterResult is the outcome of a successful Counter call.
type CounterResult struct {
	Cas   Cas
	Value int64
}

// QueryRow is one row of a query result.
type QueryRow struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Client is the single-document capability the transaction coordinator is
// built against. Implementations must return the typed errors from
// errors.go so callers can branch on failure kind. Calls are synchronous
// and blocking; any timeout semantics belong to the implementation.
//
// Implementations are not required to be safe for concurrent use unless
// documented otherwise.
type Client interface {
	Get(key string) (GetResult, error)
	Store(key string, value []byte, mode StoreMode, opts StoreOptions) (MutationResult, error)
	Remove(key string, opts RemoveOptions) (MutationResult, error)
	Counter(key string, delta int64, opts CounterOptions) (CounterResult, error)
	Touch(key string, expiry uint32) (MutationResult, error)
	Unlock(key string, cas Cas) error
	Query(statement string, opts QueryOptions) ([]QueryRow, error)
}
