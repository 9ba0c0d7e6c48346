package kv

import (
	"errors"
	"fmt"
)

// Wire protocol: newline-delimited JSON over TCP. One request line yields
// exactly one response line on the same connection.

const (
	cmdGet     = "GET"
	cmdStore   = "STORE"
	cmdRemove  = "REMOVE"
	cmdCounter = "COUNTER"
	cmdTouch   = "TOUCH"
	cmdUnlock  = "UNLOCK"
	cmdQuery   = "QUERY"
)

const (
	statusOK          = "OK"
	statusNotFound    = "NOT_FOUND"
	statusExists      = "EXISTS"
	statusCasMismatch = "CAS_MISMATCH"
	statusLocked      = "LOCKED"
	statusNotCounter  = "NOT_COUNTER"
	statusBadQuery    = "BAD_QUERY"
	statusError       = "ERROR"
)

// wireRequest is a client request line. Value is base64-encoded by
// encoding/json's []byte handling.
type wireRequest struct {
	Command    string `json:"command"`
	Key        string `json:"key,omitempty"`
	Value      []byte `json:"value,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Cas        uint64 `json:"cas,omitempty"`
	Expiry     uint32 `json:"expiry,omitempty"`
	Flags      uint32 `json:"flags,omitempty"`
	Durability int    `json:"durability,omitempty"`
	Delta      int64  `json:"delta,omitempty"`
	Initial    int64  `json:"initial,omitempty"`
	Statement  string `json:"statement,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// wireResponse is a server response line.
type wireResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message,omitempty"`
	Cas     uint64     `json:"cas,omitempty"`
	Value   []byte     `json:"value,omitempty"`
	Counter int64      `json:"counter,omitempty"`
	Rows    []QueryRow `json:"rows,omitempty"`
}

// errToStatus maps a typed engine error onto a wire status.
func errToStatus(err error) (status, message string) {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return statusNotFound, err.Error()
	case errors.Is(err, ErrDocumentExists):
		return statusExists, err.Error()
	case errors.Is(err, ErrCasMismatch):
		return statusCasMismatch, err.Error()
	case errors.Is(err, ErrDocumentLocked):
		return statusLocked, err.Error()
	case errors.Is(err, ErrValueNotCounter):
		return statusNotCounter, err.Error()
	case errors.Is(err, ErrQueryFailed):
		return statusBadQuery, err.Error()
	default:
		return statusError, err.Error()
	}
}

// statusToErr is the inverse mapping, applied on the client side so that
// callers of Remote see the same typed errors the engine produced.
func statusToErr(status, message string) error {
	switch status {
	case statusOK:
		return nil
	case statusNotFound:
		return ErrDocumentNotFound
	case statusExists:
		return ErrDocumentExists
	case statusCasMismatch:
		return ErrCasMismatch
	case statusLocked:
		return ErrDocumentLocked
	case statusNotCounter:
		return ErrValueNotCounter
	case statusBadQuery:
		return fmt.Errorf("%w: %s", ErrQueryFailed, message)
	default:
		return fmt.Errorf("remote error: %s", message)
	}
}

// parseStoreMode converts the wire mode string back to a StoreMode.
func parseStoreMode(mode string) (StoreMode, error) {
	switch mode {
	case "insert":
		return StoreInsert, nil
	case "upsert":
		return StoreUpsert, nil
	case "replace":
		return StoreReplace, nil
	default:
		return 0, fmt.Errorf("%w: store mode %q", ErrInvalidArgument, mode)
	}
}
