package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/pkg/money"
)

// CashFlowSummary totals blotters over a period.
type CashFlowSummary struct {
	Days         int
	TotalInflow  decimal.Decimal
	TotalOutflow decimal.Decimal
	NetFlow      decimal.Decimal
}

// SummarizeCashFlow treats collections as inflow and releases plus expenses
// as outflow.
func SummarizeCashFlow(blotters []model.CashBlotter) CashFlowSummary {
	s := CashFlowSummary{
		Days:         len(blotters),
		TotalInflow:  decimal.Zero,
		TotalOutflow: decimal.Zero,
	}
	for _, b := range blotters {
		s.TotalInflow = s.TotalInflow.Add(b.TotalCollections())
		s.TotalOutflow = s.TotalOutflow.Add(b.TotalReleases()).Add(b.TotalExpenses())
	}
	s.NetFlow = s.TotalInflow.Sub(s.TotalOutflow)
	return s
}

// AlertKind classifies a cash alert.
type AlertKind string

const (
	AlertLowBalance      AlertKind = "low_balance"
	AlertNegativeBalance AlertKind = "negative_balance"
)

// CashAlert is one warning about the drawer balance.
type CashAlert struct {
	Kind     AlertKind
	Severity string
	Message  string
}

// CashAlerts checks balance against threshold. A negative balance raises
// both the low and the negative alert.
func CashAlerts(balance, threshold decimal.Decimal) []CashAlert {
	var alerts []CashAlert
	if balance.LessThan(threshold) {
		alerts = append(alerts, CashAlert{
			Kind:     AlertLowBalance,
			Severity: "warning",
			Message: fmt.Sprintf("Current cash balance (%s) is below threshold (%s)",
				money.Format(balance), money.Format(threshold)),
		})
	}
	if balance.IsNegative() {
		alerts = append(alerts, CashAlert{
			Kind:     AlertNegativeBalance,
			Severity: "critical",
			Message:  fmt.Sprintf("Cash balance is negative (%s)", money.Format(balance)),
		})
	}
	return alerts
}
