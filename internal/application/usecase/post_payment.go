package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/event"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/pkg/events"
)

// PostPaymentUseCase is the payment ledger: it records a collection against
// an Active loan, clamps it to the remaining balance, completes the loan
// when fully paid and refreshes the day's blotter, all in one unit.
type PostPaymentUseCase struct {
	tx      port.TxManager
	clock   port.Clock
	metrics *Metrics
	logger  *slog.Logger
}

// NewPostPaymentUseCase wires dependencies.
func NewPostPaymentUseCase(tx port.TxManager, clock port.Clock, metrics *Metrics, logger *slog.Logger) *PostPaymentUseCase {
	return &PostPaymentUseCase{tx: tx, clock: clock, metrics: orNoop(metrics), logger: logger}
}

// Execute posts the payment. Nothing is written unless every step succeeds.
func (uc *PostPaymentUseCase) Execute(ctx context.Context, req dto.PostPaymentRequest) (resp dto.PostPaymentResponse, err error) {
	ctx, span := tracer.Start(ctx, "PostPayment", trace.WithAttributes(attribute.String("loan_id", req.LoanID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	actor := model.Actor(req.Actor)
	if err := model.ValidateAmount(req.Amount); err != nil {
		return dto.PostPaymentResponse{}, err
	}
	if err := actor.Validate(); err != nil {
		return dto.PostPaymentResponse{}, err
	}

	var posted posting
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		var err error
		posted, err = uc.post(ctx, s, req.LoanID, req.Amount, actor)
		return err
	})
	if err != nil {
		return dto.PostPaymentResponse{}, err
	}
	uc.report(ctx, posted)
	return toPostPaymentDTO(posted), nil
}

func toPostPaymentDTO(p posting) dto.PostPaymentResponse {
	return dto.PostPaymentResponse{
		Payment:          toPaymentDTO(p.payment),
		RequestedAmount:  p.plan.Requested,
		Clamped:          p.plan.Clamped,
		TotalPaid:        p.plan.TotalPaid,
		RemainingBalance: p.plan.Remaining,
		LoanStatus:       p.loan.Status().String(),
	}
}

// posting is what one payment wrote.
type posting struct {
	payment model.Payment
	plan    model.PostingPlan
	loan    model.Loan
}

// post runs the posting steps inside the caller's unit: lock the loan, clamp,
// insert the payment, complete the loan when settled and refresh today's
// blotter. Collection sheets post through here too.
func (uc *PostPaymentUseCase) post(ctx context.Context, s port.Store, loanID string, amount decimal.Decimal, actor model.Actor) (posting, error) {
	now, today := uc.clock.Now(), uc.clock.Today()
	var p posting

	// 1. Lock the loan row; concurrent posts for the same loan queue here.
	loan, err := s.Loans().GetForUpdate(ctx, loanID)
	if err != nil {
		return p, fmt.Errorf("find loan: %w", err)
	}

	// 2. Remaining balance from the recorded payments, then clamp.
	existing, err := s.Loans().ListPayments(ctx, loan.ID())
	if err != nil {
		return p, fmt.Errorf("list payments: %w", err)
	}
	if p.plan, err = loan.PlanPosting(amount, model.TotalPaid(existing)); err != nil {
		return p, fmt.Errorf("plan posting: %w", err)
	}

	// 3. Today's blotter must still accept collections.
	blotter, err := openBlotter(ctx, s, today, actor, now)
	if err != nil {
		return p, err
	}
	if err := requireDraft(blotter, "post payment"); err != nil {
		return p, err
	}

	// 4. Insert the payment.
	if p.payment, err = model.NewPayment(loan.ID(), p.plan.Amount, today, actor, now); err != nil {
		return p, err
	}
	if err := s.Loans().InsertPayment(ctx, p.payment); err != nil {
		return p, fmt.Errorf("insert payment: %w", err)
	}
	var raised events.EventCollector
	raised.Record(event.NewPaymentPosted(
		loan.ID(), p.payment.ID(), p.plan.Amount, p.plan.Requested, today.String(), actor.String(),
		p.plan.TotalPaid, p.plan.Remaining, now,
	))

	// 5. Complete the loan in the same unit once fully paid.
	if p.plan.Completes {
		if loan, err = loan.Complete(p.plan.TotalPaid, today, now); err != nil {
			return p, fmt.Errorf("complete loan: %w", err)
		}
		if err := s.Loans().Save(ctx, loan); err != nil {
			return p, fmt.Errorf("save loan: %w", err)
		}
		raised.RecordAll(loan.DomainEvents()...)
	}
	p.loan = loan

	// 6. Re-derive the day's collections.
	if blotter, err = refreshBlotter(ctx, s, blotter, now); err != nil {
		return p, fmt.Errorf("refresh blotter: %w", err)
	}
	if err := s.Blotters().Save(ctx, blotter); err != nil {
		return p, fmt.Errorf("save blotter: %w", err)
	}

	return p, recordEvents(ctx, s, raised.ClearEvents()...)
}

// report counts and logs a committed posting.
func (uc *PostPaymentUseCase) report(ctx context.Context, p posting) {
	uc.metrics.paymentsPosted.Add(ctx, 1)
	if p.plan.Clamped {
		uc.metrics.paymentsClamped.Add(ctx, 1)
		uc.logger.InfoContext(ctx, "payment clamped to remaining balance",
			"loan_id", p.loan.ID(),
			"requested", p.plan.Requested.String(),
			"posted", p.plan.Amount.String(),
		)
	}
	if p.plan.Completes {
		uc.metrics.loansCompleted.Add(ctx, 1)
		uc.metrics.transition(ctx, "complete")
		uc.logger.InfoContext(ctx, "loan completed", "loan_id", p.loan.ID(), "total_paid", p.plan.TotalPaid.String())
	}
	uc.logger.InfoContext(ctx, "payment posted",
		"loan_id", p.loan.ID(),
		"payment_id", p.payment.ID(),
		"amount", p.plan.Amount.String(),
		"remaining", p.plan.Remaining.String(),
	)
}
