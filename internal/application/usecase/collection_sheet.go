package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/valueobject"
)

// addSheetLoans puts each loan on the sheet with its current paid-to-date.
// Any refused loan fails the whole call.
func addSheetLoans(ctx context.Context, s port.Store, sheet model.CollectionSheet, loanIDs []string, clock port.Clock) (model.CollectionSheet, error) {
	for _, id := range loanIDs {
		loan, err := s.Loans().Get(ctx, id)
		if err != nil {
			return sheet, fmt.Errorf("find loan: %w", err)
		}
		payments, err := s.Loans().ListPayments(ctx, loan.ID())
		if err != nil {
			return sheet, fmt.Errorf("list payments: %w", err)
		}
		if sheet, err = sheet.AddLoan(loan, model.TotalPaid(payments), clock.Now()); err != nil {
			return sheet, err
		}
	}
	return sheet, nil
}

// ---------------------------------------------------------------------------
// CreateSheetUseCase
// ---------------------------------------------------------------------------

// CreateSheetUseCase opens a field officer's collection sheet for a day,
// optionally with its first loans.
type CreateSheetUseCase struct {
	tx     port.TxManager
	clock  port.Clock
	logger *slog.Logger
}

// NewCreateSheetUseCase wires dependencies.
func NewCreateSheetUseCase(tx port.TxManager, clock port.Clock, logger *slog.Logger) *CreateSheetUseCase {
	return &CreateSheetUseCase{tx: tx, clock: clock, logger: logger}
}

// Execute fails with model.ErrState when the officer already has a sheet for
// the day.
func (uc *CreateSheetUseCase) Execute(ctx context.Context, req dto.CreateSheetRequest) (dto.SheetResponse, error) {
	today := uc.clock.Today()
	date, err := parseDateOr(req.Date, today)
	if err != nil {
		return dto.SheetResponse{}, err
	}
	actor := model.Actor(req.Actor)
	officer := actor
	if req.OfficerID != "" {
		officer = model.Actor(req.OfficerID)
	}

	sheet, err := model.NewCollectionSheet(officer, date, today, actor, uc.clock.Now())
	if err != nil {
		return dto.SheetResponse{}, err
	}

	err = uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		var err error
		if sheet, err = addSheetLoans(ctx, s, sheet, req.LoanIDs, uc.clock); err != nil {
			return err
		}
		created, err := s.CollectionSheets().Create(ctx, sheet)
		if err != nil {
			return fmt.Errorf("create sheet: %w", err)
		}
		if !created {
			return fmt.Errorf("%w: %s already has a collection sheet for %s", model.ErrState, officer, date)
		}
		return recordEvents(ctx, s, sheet.DomainEvents()...)
	})
	if err != nil {
		return dto.SheetResponse{}, err
	}

	uc.logger.InfoContext(ctx, "collection sheet created",
		"sheet_id", sheet.ID(),
		"officer", officer.String(),
		"date", date.String(),
		"loans", len(sheet.Items()),
	)
	return toSheetDTO(sheet), nil
}

// ---------------------------------------------------------------------------
// AddSheetLoansUseCase
// ---------------------------------------------------------------------------

// AddSheetLoansUseCase puts more loans on a Draft sheet.
type AddSheetLoansUseCase struct {
	tx    port.TxManager
	clock port.Clock
}

// NewAddSheetLoansUseCase wires dependencies.
func NewAddSheetLoansUseCase(tx port.TxManager, clock port.Clock) *AddSheetLoansUseCase {
	return &AddSheetLoansUseCase{tx: tx, clock: clock}
}

// Execute adds every loan or none.
func (uc *AddSheetLoansUseCase) Execute(ctx context.Context, req dto.AddSheetLoansRequest) (dto.SheetResponse, error) {
	if err := model.Actor(req.Actor).Validate(); err != nil {
		return dto.SheetResponse{}, err
	}
	if len(req.LoanIDs) == 0 {
		return dto.SheetResponse{}, fmt.Errorf("%w: at least one loan is required", model.ErrValidation)
	}

	var out model.CollectionSheet
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		sheet, err := s.CollectionSheets().GetForUpdate(ctx, req.SheetID)
		if err != nil {
			return fmt.Errorf("find sheet: %w", err)
		}
		if sheet, err = addSheetLoans(ctx, s, sheet, req.LoanIDs, uc.clock); err != nil {
			return err
		}
		if err := s.CollectionSheets().Save(ctx, sheet); err != nil {
			return fmt.Errorf("save sheet: %w", err)
		}
		out = sheet
		return nil
	})
	if err != nil {
		return dto.SheetResponse{}, err
	}
	return toSheetDTO(out), nil
}

// ---------------------------------------------------------------------------
// RecordCollectionUseCase
// ---------------------------------------------------------------------------

// RecordCollectionUseCase collects one loan on a sheet. The payment goes
// through the ledger's posting steps and the sheet line is marked in the
// same unit, so either both are written or neither is.
type RecordCollectionUseCase struct {
	tx      port.TxManager
	clock   port.Clock
	posting *PostPaymentUseCase
}

// NewRecordCollectionUseCase wires dependencies.
func NewRecordCollectionUseCase(tx port.TxManager, clock port.Clock, posting *PostPaymentUseCase) *RecordCollectionUseCase {
	return &RecordCollectionUseCase{tx: tx, clock: clock, posting: posting}
}

// Execute fails with model.ErrState when the sheet is not Draft, is for
// another day or already has the loan collected.
func (uc *RecordCollectionUseCase) Execute(ctx context.Context, req dto.RecordCollectionRequest) (resp dto.RecordCollectionResponse, err error) {
	ctx, span := tracer.Start(ctx, "RecordCollection", trace.WithAttributes(
		attribute.String("sheet_id", req.SheetID),
		attribute.String("loan_id", req.LoanID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	actor := model.Actor(req.Actor)
	if err := model.ValidateAmount(req.Amount); err != nil {
		return dto.RecordCollectionResponse{}, err
	}
	if err := actor.Validate(); err != nil {
		return dto.RecordCollectionResponse{}, err
	}

	var (
		sheet  model.CollectionSheet
		posted posting
	)
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		var err error
		if sheet, err = s.CollectionSheets().GetForUpdate(ctx, req.SheetID); err != nil {
			return fmt.Errorf("find sheet: %w", err)
		}
		if err := sheet.CheckCollectable(req.LoanID, uc.clock.Today()); err != nil {
			return err
		}
		if posted, err = uc.posting.post(ctx, s, req.LoanID, req.Amount, actor); err != nil {
			return err
		}
		if sheet, err = sheet.RecordCollection(posted.payment, uc.clock.Now()); err != nil {
			return err
		}
		if err := s.CollectionSheets().Save(ctx, sheet); err != nil {
			return fmt.Errorf("save sheet: %w", err)
		}
		return recordEvents(ctx, s, sheet.DomainEvents()...)
	})
	if err != nil {
		return dto.RecordCollectionResponse{}, err
	}

	uc.posting.report(ctx, posted)
	return dto.RecordCollectionResponse{
		Sheet:   toSheetDTO(sheet),
		Posting: toPostPaymentDTO(posted),
	}, nil
}

// ---------------------------------------------------------------------------
// SubmitSheetUseCase / ApproveSheetUseCase
// ---------------------------------------------------------------------------

// SubmitSheetUseCase hands a Draft sheet over for approval.
type SubmitSheetUseCase struct {
	tx     port.TxManager
	clock  port.Clock
	logger *slog.Logger
}

// NewSubmitSheetUseCase wires dependencies.
func NewSubmitSheetUseCase(tx port.TxManager, clock port.Clock, logger *slog.Logger) *SubmitSheetUseCase {
	return &SubmitSheetUseCase{tx: tx, clock: clock, logger: logger}
}

// Execute fails with model.ErrValidation for an empty sheet.
func (uc *SubmitSheetUseCase) Execute(ctx context.Context, req dto.SheetActionRequest) (dto.SheetResponse, error) {
	out, err := transitionSheet(ctx, uc.tx, req, func(s model.CollectionSheet, by model.Actor) (model.CollectionSheet, error) {
		return s.Submit(by, uc.clock.Now())
	})
	if err != nil {
		return dto.SheetResponse{}, err
	}
	uc.logger.InfoContext(ctx, "collection sheet submitted",
		"sheet_id", out.ID(),
		"expected", out.TotalExpected().String(),
		"collected", out.TotalCollected().String(),
	)
	return toSheetDTO(out), nil
}

// ApproveSheetUseCase signs off a Submitted sheet.
type ApproveSheetUseCase struct {
	tx     port.TxManager
	clock  port.Clock
	logger *slog.Logger
}

// NewApproveSheetUseCase wires dependencies.
func NewApproveSheetUseCase(tx port.TxManager, clock port.Clock, logger *slog.Logger) *ApproveSheetUseCase {
	return &ApproveSheetUseCase{tx: tx, clock: clock, logger: logger}
}

// Execute fails with model.ErrState unless the sheet is Submitted.
func (uc *ApproveSheetUseCase) Execute(ctx context.Context, req dto.SheetActionRequest) (dto.SheetResponse, error) {
	out, err := transitionSheet(ctx, uc.tx, req, func(s model.CollectionSheet, by model.Actor) (model.CollectionSheet, error) {
		return s.Approve(by, uc.clock.Now())
	})
	if err != nil {
		return dto.SheetResponse{}, err
	}
	uc.logger.InfoContext(ctx, "collection sheet approved", "sheet_id", out.ID(), "by", req.Actor)
	return toSheetDTO(out), nil
}

func transitionSheet(
	ctx context.Context,
	tx port.TxManager,
	req dto.SheetActionRequest,
	apply func(model.CollectionSheet, model.Actor) (model.CollectionSheet, error),
) (model.CollectionSheet, error) {
	actor := model.Actor(req.Actor)
	if err := actor.Validate(); err != nil {
		return model.CollectionSheet{}, err
	}

	var out model.CollectionSheet
	err := tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		sheet, err := s.CollectionSheets().GetForUpdate(ctx, req.SheetID)
		if err != nil {
			return fmt.Errorf("find sheet: %w", err)
		}
		if sheet, err = apply(sheet, actor); err != nil {
			return err
		}
		if err := s.CollectionSheets().Save(ctx, sheet); err != nil {
			return fmt.Errorf("save sheet: %w", err)
		}
		out = sheet
		return recordEvents(ctx, s, sheet.DomainEvents()...)
	})
	return out, err
}

// ---------------------------------------------------------------------------
// GetSheetUseCase / ListSheetsUseCase
// ---------------------------------------------------------------------------

// GetSheetUseCase returns one sheet.
type GetSheetUseCase struct {
	sheets port.CollectionSheetRepository
}

// NewGetSheetUseCase wires dependencies.
func NewGetSheetUseCase(sheets port.CollectionSheetRepository) *GetSheetUseCase {
	return &GetSheetUseCase{sheets: sheets}
}

func (uc *GetSheetUseCase) Execute(ctx context.Context, req dto.GetSheetRequest) (dto.SheetResponse, error) {
	sheet, err := uc.sheets.Get(ctx, req.SheetID)
	if err != nil {
		return dto.SheetResponse{}, fmt.Errorf("find sheet: %w", err)
	}
	return toSheetDTO(sheet), nil
}

// ListSheetsUseCase lists sheets newest day first.
type ListSheetsUseCase struct {
	sheets port.CollectionSheetRepository
}

// NewListSheetsUseCase wires dependencies.
func NewListSheetsUseCase(sheets port.CollectionSheetRepository) *ListSheetsUseCase {
	return &ListSheetsUseCase{sheets: sheets}
}

func (uc *ListSheetsUseCase) Execute(ctx context.Context, req dto.ListSheetsRequest) (dto.ListSheetsResponse, error) {
	f := port.CollectionSheetFilter{Officer: model.Actor(req.OfficerID)}
	if req.Status != "" {
		status, err := valueobject.NewSheetStatus(req.Status)
		if err != nil {
			return dto.ListSheetsResponse{}, fmt.Errorf("%w: %w", model.ErrValidation, err)
		}
		f.Status = status
	}
	var err error
	if f.From, err = parseDateOr(req.From, valueobject.BusinessDate{}); err != nil {
		return dto.ListSheetsResponse{}, err
	}
	if f.To, err = parseDateOr(req.To, valueobject.BusinessDate{}); err != nil {
		return dto.ListSheetsResponse{}, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return dto.ListSheetsResponse{}, fmt.Errorf("%w: from %s is after to %s", model.ErrValidation, f.From, f.To)
	}

	sheets, err := uc.sheets.List(ctx, f)
	if err != nil {
		return dto.ListSheetsResponse{}, fmt.Errorf("list sheets: %w", err)
	}
	out := dto.ListSheetsResponse{Sheets: make([]dto.SheetResponse, 0, len(sheets))}
	for _, sh := range sheets {
		out.Sheets = append(out.Sheets, toSheetDTO(sh))
	}
	return out, nil
}
