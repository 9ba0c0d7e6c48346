package txn

import (
	"fmt"

	"go.uber.org/zap"
)

// drainRollbackLog replays the compensation log in reverse of execution
// order. Later operations may depend on earlier ones, so they are undone
// first. Compensation is best-effort: a failed compensation is logged and
// the drain continues; it is never retried. The log is emptied either
// way. Returns the number of compensations that applied cleanly.
func (c *Context) drainRollbackLog() int {
	applied := 0
	for i := len(c.rollbackOps) - 1; i >= 0; i-- {
		rec := c.rollbackOps[i]
		if err := c.execute(rec); err != nil {
			c.logger.Warn("Compensation failed",
				zap.String("txn_id", c.id),
				zap.Stringer("kind", rec.Kind),
				zap.String("key", rec.Key),
				zap.Error(err))
			c.metrics.add(c.metrics.CompensationsFailedCounter, 1)
			continue
		}
		applied++
		c.metrics.add(c.metrics.CompensationsAppliedCounter, 1)
	}
	c.rollbackOps = c.rollbackOps[:0]
	return applied
}

// Rollback abandons an active transaction. Any compensations accumulated
// so far are replayed LIFO and the context finalizes as rolled back. Like
// Commit, it reports its outcome as a Result rather than an error.
func (c *Context) Rollback() Result {
	if c.state != StateActive {
		return Result{
			TransactionID: c.id,
			Success:       false,
			ErrorMessage:  fmt.Sprintf("%v: state is %s", ErrTransactionNotActive, c.state),
		}
	}

	applied := c.drainRollbackLog()
	c.state = StateRolledBack
	c.metrics.add(c.metrics.TxnRolledBackCounter, 1)
	return Result{
		TransactionID:        c.id,
		Success:              true,
		OperationsRolledBack: applied,
	}
}
