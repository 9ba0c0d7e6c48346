package txn

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sushant-115/sagakv/core/kv"
)

// needsBeforeImage reports whether execution of the kind must be preceded
// by a before-image capture. Upsert needs it to choose between remove and
// restore; replace and remove need it so their compensations restore what
// was actually there rather than what the caller believes was there.
func needsBeforeImage(kind OperationKind) bool {
	return kind == OpUpsert || kind == OpReplace || kind == OpRemove
}

// Commit executes the recorded operations in order, stopping at the first
// failure. On failure with cfg.AutoRollback set, the compensation log is
// drained before the context finalizes as failed. Commit never returns a
// raw error; the outcome is always a Result.
func (c *Context) Commit(cfg Config) Result {
	if c.state != StateActive {
		return Result{
			TransactionID: c.id,
			Success:       false,
			ErrorMessage:  fmt.Sprintf("%v: state is %s", ErrTransactionNotActive, c.state),
		}
	}

	executed := 0
	for i, rec := range c.operations {
		if needsBeforeImage(rec.Kind) {
			c.captureBeforeImage(rec)
		}

		if err := c.execute(rec); err != nil {
			rolledBack := 0
			if cfg.AutoRollback {
				rolledBack = c.drainRollbackLog()
			}
			c.state = StateFailed
			c.metrics.add(c.metrics.TxnFailedCounter, 1)
			return Result{
				TransactionID:        c.id,
				Success:              false,
				OperationsExecuted:   executed,
				OperationsRolledBack: rolledBack,
				ErrorMessage: fmt.Sprintf("operation %d (%s %q) failed: %v",
					i, rec.Kind, rec.Key, err),
			}
		}

		if rec.Kind.NeedsRollback() {
			c.rollbackOps = append(c.rollbackOps, planCompensation(rec))
			executed++
			c.metrics.add(c.metrics.OpsExecutedCounter, 1)
		}
	}

	c.state = StateCommitted
	c.metrics.add(c.metrics.TxnCommittedCounter, 1)
	return Result{
		TransactionID:      c.id,
		Success:            true,
		OperationsExecuted: len(c.operations),
	}
}

// captureBeforeImage reads the document's current state ahead of a
// mutating operation whose compensation depends on it. A read failure
// other than document-not-found leaves the record uncaptured; the
// operation still executes, and its compensation falls back to the
// caller-recorded fields. The failure is logged because that fallback is
// a known safety gap under concurrent mutation.
func (c *Context) captureBeforeImage(rec *OperationRecord) {
	res, err := c.client.Get(rec.Key)
	switch {
	case err == nil:
		rec.captured = true
		rec.wasCreated = false
		rec.originalCas = res.Cas
		rec.originalValue = cloneBytes(res.Value)
	case errors.Is(err, kv.ErrDocumentNotFound):
		rec.captured = true
		rec.wasCreated = true
		rec.originalCas = 0
		rec.originalValue = nil
	default:
		c.logger.Warn("Before-image capture failed, compensation may be imprecise",
			zap.String("txn_id", c.id),
			zap.Stringer("kind", rec.Kind),
			zap.String("key", rec.Key),
			zap.Error(err))
	}
}

// execute dispatches one record to the key-value client and captures the
// result CAS/value into the record. It is used for both forward execution
// and compensation replay.
func (c *Context) execute(rec *OperationRecord) error {
	switch rec.Kind {
	case OpGet:
		res, err := c.client.Get(rec.Key)
		if err != nil {
			return err
		}
		rec.resultCas = res.Cas
		rec.resultValue = res.Value
		return nil

	case OpInsert, OpUpsert, OpReplace:
		mode := kv.StoreInsert
		switch rec.Kind {
		case OpUpsert:
			mode = kv.StoreUpsert
		case OpReplace:
			mode = kv.StoreReplace
		}
		res, err := c.client.Store(rec.Key, rec.Value, mode, kv.StoreOptions{
			Cas:        rec.Cas,
			Expiry:     rec.Expiry,
			Flags:      rec.Flags,
			Durability: rec.Durability,
		})
		if err != nil {
			return err
		}
		rec.resultCas = res.Cas
		return nil

	case OpRemove:
		res, err := c.client.Remove(rec.Key, kv.RemoveOptions{
			Cas:        rec.Cas,
			Durability: rec.Durability,
		})
		if err != nil {
			return err
		}
		rec.resultCas = res.Cas
		return nil

	case OpIncrement, OpDecrement:
		delta := rec.Delta
		if rec.Kind == OpDecrement {
			delta = -delta
		}
		res, err := c.client.Counter(rec.Key, delta, kv.CounterOptions{
			Initial:    rec.Initial,
			Expiry:     rec.Expiry,
			Durability: rec.Durability,
		})
		if err != nil {
			return err
		}
		rec.resultCas = res.Cas
		rec.resultValue = []byte(strconv.FormatInt(res.Value, 10))
		return nil

	case OpTouch:
		res, err := c.client.Touch(rec.Key, rec.Expiry)
		if err != nil {
			return err
		}
		rec.resultCas = res.Cas
		return nil

	case OpUnlock:
		return c.client.Unlock(rec.Key, rec.Cas)

	case OpQuery:
		_, err := c.client.Query(rec.Statement, kv.QueryOptions{Limit: rec.Limit})
		return err

	default:
		return fmt.Errorf("unhandled operation kind %d", rec.Kind)
	}
}
