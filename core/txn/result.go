package txn

// Config controls commit behavior.
type Config struct {
	// AutoRollback makes a mid-transaction failure drain the compensation
	// log before the transaction finalizes as failed. When false, the
	// partial work is left in place and only reported.
	AutoRollback bool `yaml:"auto_rollback"`
}

// Result is the caller-facing accounting of one commit or rollback. A
// Result is always returned; errors never escape the transaction boundary
// as raw values.
type Result struct {
	// TransactionID is the UUID assigned at Begin.
	TransactionID string

	// Success reports whether every recorded operation executed.
	Success bool

	// OperationsExecuted counts the mutating operations that completed
	// against the store.
	OperationsExecuted int

	// OperationsRolledBack counts the compensations that applied cleanly.
	// It can be lower than OperationsExecuted when a compensation itself
	// failed; compensation is best-effort.
	OperationsRolledBack int

	// ErrorMessage names the terminating failure, empty on success.
	ErrorMessage string
}
