package txn

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the coordinator's metric instruments.
type Metrics struct {
	TxnCommittedCounter         metric.Int64Counter
	TxnFailedCounter            metric.Int64Counter
	TxnRolledBackCounter        metric.Int64Counter
	OpsExecutedCounter          metric.Int64Counter
	CompensationsAppliedCounter metric.Int64Counter
	CompensationsFailedCounter  metric.Int64Counter
}

// NewMetrics creates and registers the coordinator metrics on the given
// meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	txnCommitted, err := meter.Int64Counter(
		"sagakv.txn.committed_total",
		metric.WithDescription("Total number of transactions committed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	txnFailed, err := meter.Int64Counter(
		"sagakv.txn.failed_total",
		metric.WithDescription("Total number of transactions that failed mid-commit."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	txnRolledBack, err := meter.Int64Counter(
		"sagakv.txn.rolled_back_total",
		metric.WithDescription("Total number of transactions explicitly rolled back."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	opsExecuted, err := meter.Int64Counter(
		"sagakv.txn.operations_executed_total",
		metric.WithDescription("Total number of mutating operations executed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	compensationsApplied, err := meter.Int64Counter(
		"sagakv.txn.compensations_applied_total",
		metric.WithDescription("Total number of compensations that applied cleanly."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	compensationsFailed, err := meter.Int64Counter(
		"sagakv.txn.compensations_failed_total",
		metric.WithDescription("Total number of compensations that failed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		TxnCommittedCounter:         txnCommitted,
		TxnFailedCounter:            txnFailed,
		TxnRolledBackCounter:        txnRolledBack,
		OpsExecutedCounter:          opsExecuted,
		CompensationsAppliedCounter: compensationsApplied,
		CompensationsFailedCounter:  compensationsFailed,
	}, nil
}

// noopMetrics backs contexts created without WithMetrics.
func noopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("sagakv"))
	return m
}

func (m *Metrics) add(counter metric.Int64Counter, n int64) {
	counter.Add(context.Background(), n)
}
