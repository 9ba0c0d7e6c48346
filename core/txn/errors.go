package txn

import "errors"

// --- Error Definitions ---

var (
	ErrTransactionNotActive = errors.New("transaction is not active")
	ErrNilClient            = errors.New("key-value client must not be nil")
	ErrEmptyKey             = errors.New("operation key must not be empty")
	ErrEmptyStatement       = errors.New("query statement must not be empty")
)
