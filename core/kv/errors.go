package kv

import "errors"

// --- Error Definitions ---

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists (for strict insert)")
	ErrCasMismatch      = errors.New("cas mismatch, document was modified concurrently")
	ErrDocumentLocked   = errors.New("document is locked")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrQueryFailed      = errors.New("query execution failed")
	ErrValueNotCounter  = errors.New("document value is not a counter")
	ErrConnectionFailed = errors.New("connection to remote store failed")
	ErrProtocol         = errors.New("malformed wire message")
)
