package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/valueobject"
)

const maxExpenseDescription = 255

// Expense is one cash outflow line behind a blotter's total_expenses.
type Expense struct {
	id          string
	date        valueobject.BusinessDate
	amount      decimal.Decimal
	description string
	recordedBy  Actor
	createdAt   time.Time
}

// NewExpense validates and creates an expense line.
func NewExpense(on valueobject.BusinessDate, amount decimal.Decimal, description string, by Actor, now time.Time) (Expense, error) {
	if on.IsZero() {
		return Expense{}, fmt.Errorf("%w: expense date is required", ErrValidation)
	}
	if err := ValidateAmount(amount); err != nil {
		return Expense{}, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return Expense{}, fmt.Errorf("%w: expense description is required", ErrValidation)
	}
	if len(description) > maxExpenseDescription {
		return Expense{}, fmt.Errorf("%w: expense description exceeds %d characters", ErrValidation, maxExpenseDescription)
	}
	if err := by.Validate(); err != nil {
		return Expense{}, err
	}
	return Expense{
		id:          uuid.New().String(),
		date:        on,
		amount:      amount,
		description: description,
		recordedBy:  by,
		createdAt:   now,
	}, nil
}

// ReconstructExpense rebuilds an Expense from persistence.
func ReconstructExpense(id string, on valueobject.BusinessDate, amount decimal.Decimal, description string, by Actor, createdAt time.Time) Expense {
	return Expense{id: id, date: on, amount: amount, description: description, recordedBy: by, createdAt: createdAt}
}

func (e Expense) ID() string                     { return e.id }
func (e Expense) Date() valueobject.BusinessDate { return e.date }
func (e Expense) Amount() decimal.Decimal        { return e.amount }
func (e Expense) Description() string            { return e.description }
func (e Expense) RecordedBy() Actor              { return e.recordedBy }
func (e Expense) CreatedAt() time.Time           { return e.createdAt }
