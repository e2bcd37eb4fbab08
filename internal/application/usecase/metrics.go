package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fanders/microfinance/internal/application/usecase"

var tracer = otel.Tracer(instrumentationName)

// Metrics holds the ledger's business counters.
type Metrics struct {
	paymentsPosted     metric.Int64Counter
	paymentsClamped    metric.Int64Counter
	loansCompleted     metric.Int64Counter
	loanTransitions    metric.Int64Counter
	blottersFinalized  metric.Int64Counter
	finalizeRejections metric.Int64Counter
	expensesRecorded   metric.Int64Counter
}

// NewMetrics creates the counters on meter. A nil meter uses the global
// provider, which is a no-op until observability.InitMetrics runs.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	var (
		m   Metrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.paymentsPosted, "ledger_payments_posted_total", "Payments recorded against loans."},
		{&m.paymentsClamped, "ledger_payments_clamped_total", "Payments reduced to the remaining balance."},
		{&m.loansCompleted, "ledger_loans_completed_total", "Loans settled by a payment."},
		{&m.loanTransitions, "ledger_loan_transitions_total", "Loan lifecycle transitions by event."},
		{&m.blottersFinalized, "ledger_blotters_finalized_total", "Cash blotters locked."},
		{&m.finalizeRejections, "ledger_blotter_finalize_rejections_total", "Finalize attempts refused by the reconciliation check."},
		{&m.expensesRecorded, "ledger_expenses_recorded_total", "Expense lines added to blotters."},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// noopMetrics is used when a use case is built without metrics.
func noopMetrics() *Metrics {
	m, err := NewMetrics(nil)
	if err != nil {
		panic(err)
	}
	return m
}

func orNoop(m *Metrics) *Metrics {
	if m == nil {
		return noopMetrics()
	}
	return m
}

func (m *Metrics) transition(ctx context.Context, event string) {
	m.loanTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}
