package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/valueobject"
)

// QuoteLoanUseCase previews the schedule for a prospective loan.
type QuoteLoanUseCase struct {
	calc   *model.AmortizationCalculator
	cache  port.QuoteCache
	logger *slog.Logger
}

// NewQuoteLoanUseCase wires dependencies. cache may be nil.
func NewQuoteLoanUseCase(calc *model.AmortizationCalculator, cache port.QuoteCache, logger *slog.Logger) *QuoteLoanUseCase {
	return &QuoteLoanUseCase{calc: calc, cache: cache, logger: logger}
}

// Execute computes (or fetches a cached) schedule. Input is validated before
// the cache is consulted. Cache failures are logged and never fail the quote.
func (uc *QuoteLoanUseCase) Execute(ctx context.Context, req dto.QuoteLoanRequest) (dto.QuoteResponse, error) {
	weeks, months := resolveTerm(uc.calc.Terms(), req.TermWeeks, req.TermMonths)
	if err := uc.calc.Validate(req.Principal, weeks, months); err != nil {
		return dto.QuoteResponse{}, fmt.Errorf("compute schedule: %w", err)
	}

	if uc.cache != nil {
		res, ok, err := uc.cache.Get(ctx, req.Principal, weeks, months)
		if err != nil {
			uc.logger.WarnContext(ctx, "quote cache read failed", "error", err)
		} else if ok {
			return toQuoteDTO(res), nil
		}
	}

	res, err := uc.calc.Compute(req.Principal, weeks, months)
	if err != nil {
		return dto.QuoteResponse{}, fmt.Errorf("compute schedule: %w", err)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, res); err != nil {
			uc.logger.WarnContext(ctx, "quote cache write failed", "error", err)
		}
	}
	return toQuoteDTO(res), nil
}

// resolveTerm fills unset term fields from the configured defaults.
func resolveTerm(terms model.LoanTerms, weeks, months int) (int, int) {
	if weeks == 0 {
		weeks = terms.DefaultTermWeeks
	}
	if months == 0 {
		if weeks == terms.DefaultTermWeeks {
			months = terms.DefaultTermMonths
		} else {
			months = valueobject.MonthsForWeeks(weeks)
		}
	}
	return weeks, months
}

// ---------------------------------------------------------------------------
// GetLoanConfigUseCase
// ---------------------------------------------------------------------------

// GetLoanConfigUseCase exposes the lending constants and term picker.
type GetLoanConfigUseCase struct {
	terms model.LoanTerms
}

// NewGetLoanConfigUseCase wires dependencies.
func NewGetLoanConfigUseCase(terms model.LoanTerms) *GetLoanConfigUseCase {
	return &GetLoanConfigUseCase{terms: terms}
}

// Execute returns the active configuration.
func (uc *GetLoanConfigUseCase) Execute(_ context.Context) dto.LoanConfigResponse {
	t := uc.terms
	options := valueobject.CommonTermOptions(t.DefaultTermWeeks)
	opts := make([]dto.TermOptionResponse, 0, len(options))
	for _, o := range options {
		if o.Weeks < t.MinTermWeeks || o.Weeks > t.MaxTermWeeks {
			continue
		}
		opts = append(opts, dto.TermOptionResponse{Weeks: o.Weeks, Label: o.Label, Standard: o.Standard})
	}
	return dto.LoanConfigResponse{
		InterestRate:          t.InterestRate,
		InsuranceFee:          t.InsuranceFee,
		SavingsRate:           t.SavingsRate,
		MinPrincipal:          t.MinPrincipal,
		MaxPrincipal:          t.MaxPrincipal,
		MinTermWeeks:          t.MinTermWeeks,
		MaxTermWeeks:          t.MaxTermWeeks,
		DefaultTermWeeks:      t.DefaultTermWeeks,
		DefaultTermMonths:     t.DefaultTermMonths,
		LatePenaltyRatePerDay: t.LatePenaltyRatePerDay,
		TermOptions:           opts,
	}
}
