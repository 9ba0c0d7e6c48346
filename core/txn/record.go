// Package txn implements a client-side compensating-transaction
// coordinator over the single-document kv.Client capability. The store
// offers only per-document compare-and-swap, so multi-operation units of
// work are made recoverable saga-style: each executed mutation gets a
// derived inverse operation, and on failure the inverses are replayed in
// reverse order. This is best-effort compensation, not isolation — a
// concurrent writer can still make a compensation fail with a CAS
// mismatch, and that outcome is reported, not hidden.
package txn

import (
	"bytes"

	"github.com/sushant-115/sagakv/core/kv"
)

// OperationKind identifies one of the closed set of actions a transaction
// can record. Every dispatch over the kind (execution, compensation
// planning, rollback eligibility) switches exhaustively over these values.
type OperationKind int

const (
	OpGet OperationKind = iota
	OpInsert
	OpUpsert
	OpReplace
	OpRemove
	OpIncrement
	OpDecrement
	OpTouch
	OpUnlock
	OpQuery
)

func (k OperationKind) String() string {
	switch k {
	case OpGet:
		return "get"
	case OpInsert:
		return "insert"
	case OpUpsert:
		return "upsert"
	case OpReplace:
		return "replace"
	case OpRemove:
		return "remove"
	case OpIncrement:
		return "increment"
	case OpDecrement:
		return "decrement"
	case OpTouch:
		return "touch"
	case OpUnlock:
		return "unlock"
	case OpQuery:
		return "query"
	default:
		return "unknown"
	}
}

// ReadOnly reports whether the kind leaves the store unchanged.
func (k OperationKind) ReadOnly() bool {
	return k == OpGet || k == OpQuery
}

// NeedsRollback reports whether a successful execution of this kind must
// be covered by a compensation record.
func (k OperationKind) NeedsRollback() bool {
	return !k.ReadOnly()
}

// OperationRecord describes one intended action. Records are built by the
// Context recorders, which duplicate every caller-provided byte slice so
// the record stays valid independent of caller buffer lifetimes. Once
// recorded, the intent fields are never modified; the result and
// before-image fields are filled in during commit.
type OperationRecord struct {
	Kind       OperationKind
	Key        string
	Value      []byte
	Cas        kv.Cas
	Expiry     uint32
	Flags      uint32
	Durability kv.DurabilityLevel
	// Delta is the magnitude recorded for OpIncrement/OpDecrement. The
	// sign is applied at execution time from the kind.
	Delta     int64
	Initial   int64
	Statement string
	Limit     int

	// Post-execution results, captured for compensation derivation.
	resultCas   kv.Cas
	resultValue []byte

	// Before-image, captured strictly ahead of execution for the kinds
	// whose compensation depends on prior state.
	captured      bool
	wasCreated    bool
	originalCas   kv.Cas
	originalValue []byte
}

// clone of a value buffer; nil stays nil.
func cloneBytes(b []byte) []byte {
	return bytes.Clone(b)
}
