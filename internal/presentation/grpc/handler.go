package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/application/usecase"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/pkg/auth"
)

var _ LedgerServiceServer = (*LedgerHandler)(nil)

// LoanUseCases groups the loan-side use cases the handler serves.
type LoanUseCases struct {
	Quote    *usecase.QuoteLoanUseCase
	Config   *usecase.GetLoanConfigUseCase
	Apply    *usecase.ApplyLoanUseCase
	Approve  *usecase.ApproveLoanUseCase
	Disburse *usecase.DisburseLoanUseCase
	Default  *usecase.MarkLoanDefaultedUseCase
	Get      *usecase.GetLoanUseCase
	Post     *usecase.PostPaymentUseCase
	Payments *usecase.ListPaymentsUseCase
	Overdue  *usecase.GetOverdueLoansUseCase
}

// BlotterUseCases groups the cash blotter use cases.
type BlotterUseCases struct {
	Open        *usecase.OpenBlotterUseCase
	Refresh     *usecase.RefreshBlotterUseCase
	AddExpense  *usecase.AddExpenseUseCase
	Finalize    *usecase.FinalizeBlotterUseCase
	Range       *usecase.GetBlotterRangeUseCase
	Position    *usecase.GetCashPositionUseCase
	Recalculate *usecase.RecalculateBlottersUseCase
}

// SheetUseCases groups the collection sheet use cases.
type SheetUseCases struct {
	Create  *usecase.CreateSheetUseCase
	AddLoan *usecase.AddSheetLoansUseCase
	Collect *usecase.RecordCollectionUseCase
	Submit  *usecase.SubmitSheetUseCase
	Approve *usecase.ApproveSheetUseCase
	Get     *usecase.GetSheetUseCase
	List    *usecase.ListSheetsUseCase
}

// LedgerHandler implements LedgerServiceServer over the application use
// cases. The acting user always comes from the verified token, never from
// the request body.
type LedgerHandler struct {
	loans    LoanUseCases
	blotters BlotterUseCases
	sheets   SheetUseCases
}

// NewLedgerHandler creates a new gRPC ledger handler.
func NewLedgerHandler(loans LoanUseCases, blotters BlotterUseCases, sheets SheetUseCases) *LedgerHandler {
	return &LedgerHandler{loans: loans, blotters: blotters, sheets: sheets}
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

func (h *LedgerHandler) QuoteLoan(ctx context.Context, req *dto.QuoteLoanRequest) (*dto.QuoteResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	return respond(h.loans.Quote.Execute(ctx, *req))
}

func (h *LedgerHandler) GetLoanConfig(ctx context.Context, _ *Empty) (*dto.LoanConfigResponse, error) {
	resp := h.loans.Config.Execute(ctx)
	return &resp, nil
}

func (h *LedgerHandler) ApplyLoan(ctx context.Context, req *dto.ApplyLoanRequest) (*dto.LoanResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(h.loans.Apply.Execute(ctx, in))
}

func (h *LedgerHandler) ApproveLoan(ctx context.Context, req *dto.LoanActionRequest) (*dto.LoanResponse, error) {
	return h.loanAction(ctx, req, h.loans.Approve.Execute)
}

func (h *LedgerHandler) DisburseLoan(ctx context.Context, req *dto.LoanActionRequest) (*dto.LoanResponse, error) {
	return h.loanAction(ctx, req, h.loans.Disburse.Execute)
}

func (h *LedgerHandler) MarkLoanDefaulted(ctx context.Context, req *dto.LoanActionRequest) (*dto.LoanResponse, error) {
	return h.loanAction(ctx, req, h.loans.Default.Execute)
}

func (h *LedgerHandler) loanAction(
	ctx context.Context,
	req *dto.LoanActionRequest,
	exec func(context.Context, dto.LoanActionRequest) (dto.LoanResponse, error),
) (*dto.LoanResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(exec(ctx, in))
}

func (h *LedgerHandler) GetLoan(ctx context.Context, req *dto.GetLoanRequest) (*dto.LoanSummaryResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	return respond(h.loans.Get.Execute(ctx, *req))
}

func (h *LedgerHandler) PostPayment(ctx context.Context, req *dto.PostPaymentRequest) (*dto.PostPaymentResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(h.loans.Post.Execute(ctx, in))
}

func (h *LedgerHandler) ListPayments(ctx context.Context, req *dto.GetLoanRequest) (*dto.ListPaymentsResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	return respond(h.loans.Payments.Execute(ctx, *req))
}

func (h *LedgerHandler) GetOverdueLoans(ctx context.Context, req *dto.OverdueLoansRequest) (*dto.OverdueLoansResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	return respond(h.loans.Overdue.Execute(ctx, *req))
}

// ---------------------------------------------------------------------------
// Cash blotter
// ---------------------------------------------------------------------------

func (h *LedgerHandler) OpenBlotter(ctx context.Context, req *dto.BlotterRequest) (*dto.BlotterResponse, error) {
	return h.blotterAction(ctx, req, h.blotters.Open.Execute)
}

func (h *LedgerHandler) RefreshBlotter(ctx context.Context, req *dto.BlotterRequest) (*dto.BlotterResponse, error) {
	return h.blotterAction(ctx, req, h.blotters.Refresh.Execute)
}

func (h *LedgerHandler) FinalizeBlotter(ctx context.Context, req *dto.BlotterRequest) (*dto.BlotterResponse, error) {
	return h.blotterAction(ctx, req, h.blotters.Finalize.Execute)
}

func (h *LedgerHandler) blotterAction(
	ctx context.Context,
	req *dto.BlotterRequest,
	exec func(context.Context, dto.BlotterRequest) (dto.BlotterResponse, error),
) (*dto.BlotterResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(exec(ctx, in))
}

func (h *LedgerHandler) AddExpense(ctx context.Context, req *dto.AddExpenseRequest) (*dto.AddExpenseResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(h.blotters.AddExpense.Execute(ctx, in))
}

func (h *LedgerHandler) GetBlotterRange(ctx context.Context, req *dto.BlotterRangeRequest) (*dto.BlotterRangeResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	return respond(h.blotters.Range.Execute(ctx, *req))
}

func (h *LedgerHandler) GetCashPosition(ctx context.Context, _ *Empty) (*dto.CashPositionResponse, error) {
	return respond(h.blotters.Position.Execute(ctx))
}

func (h *LedgerHandler) RecalculateBlotters(ctx context.Context, req *dto.RecalculateBlottersRequest) (*dto.RecalculateBlottersResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(h.blotters.Recalculate.Execute(ctx, in))
}

// ---------------------------------------------------------------------------
// Collection sheets
// ---------------------------------------------------------------------------

func (h *LedgerHandler) CreateCollectionSheet(ctx context.Context, req *dto.CreateSheetRequest) (*dto.SheetResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(h.sheets.Create.Execute(ctx, in))
}

func (h *LedgerHandler) AddSheetLoans(ctx context.Context, req *dto.AddSheetLoansRequest) (*dto.SheetResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(h.sheets.AddLoan.Execute(ctx, in))
}

func (h *LedgerHandler) RecordCollection(ctx context.Context, req *dto.RecordCollectionRequest) (*dto.RecordCollectionResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(h.sheets.Collect.Execute(ctx, in))
}

func (h *LedgerHandler) SubmitCollectionSheet(ctx context.Context, req *dto.SheetActionRequest) (*dto.SheetResponse, error) {
	return h.sheetAction(ctx, req, h.sheets.Submit.Execute)
}

func (h *LedgerHandler) ApproveCollectionSheet(ctx context.Context, req *dto.SheetActionRequest) (*dto.SheetResponse, error) {
	return h.sheetAction(ctx, req, h.sheets.Approve.Execute)
}

func (h *LedgerHandler) sheetAction(
	ctx context.Context,
	req *dto.SheetActionRequest,
	exec func(context.Context, dto.SheetActionRequest) (dto.SheetResponse, error),
) (*dto.SheetResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in := *req
	in.Actor = actor
	return respond(exec(ctx, in))
}

func (h *LedgerHandler) GetCollectionSheet(ctx context.Context, req *dto.GetSheetRequest) (*dto.SheetResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	return respond(h.sheets.Get.Execute(ctx, *req))
}

func (h *LedgerHandler) ListCollectionSheets(ctx context.Context, req *dto.ListSheetsRequest) (*dto.ListSheetsResponse, error) {
	if req == nil {
		return nil, errNilRequest
	}
	return respond(h.sheets.List.Execute(ctx, *req))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var errNilRequest = status.Error(codes.InvalidArgument, "request is required")

func actorFrom(ctx context.Context) (string, error) {
	id, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "no authenticated user")
	}
	return id, nil
}

func respond[T any](resp T, err error) (*T, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

// toStatus maps ledger error kinds onto gRPC codes. Persistence failures
// are reported as Unavailable so clients know the call may be retried.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, model.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, model.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, model.ErrState):
		code = codes.FailedPrecondition
	case errors.Is(err, model.ErrIntegrity):
		code = codes.DataLoss
	case errors.Is(err, model.ErrPersistence):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
