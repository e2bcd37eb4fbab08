package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/money"
)

// ---------------------------------------------------------------------------
// OverdueAnalyzer – domain service for collections follow-up
// ---------------------------------------------------------------------------

// Severity ranks how urgently an overdue loan needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Label is the officer-facing description of s.
func (s Severity) Label() string {
	switch s {
	case SeverityCritical:
		return "Critical - Immediate Action Required"
	case SeverityHigh:
		return "High Priority - Contact Client"
	case SeverityMedium:
		return "Moderate - Follow Up Soon"
	case SeverityLow:
		return "Recently Overdue - Monitor"
	default:
		return "Unknown"
	}
}

// LoanPosition is an Active loan together with its payment history summary.
type LoanPosition struct {
	Loan            model.Loan
	TotalPaid       decimal.Decimal
	PaymentsMade    int
	LastPaymentDate valueobject.BusinessDate
}

// OverdueLoan is the analysis of one loan that is behind schedule.
type OverdueLoan struct {
	LoanID                 string
	ClientID               string
	DisbursementDate       valueobject.BusinessDate
	NextExpectedPayment    valueobject.BusinessDate
	ExpectedWeeklyPayment  decimal.Decimal
	ExpectedAmountPaid     decimal.Decimal
	TotalPaid              decimal.Decimal
	PaymentShortfall       decimal.Decimal
	RemainingBalance       decimal.Decimal
	PercentagePaid         decimal.Decimal
	Severity               Severity
	WeeksSinceDisbursement int
	ExpectedPaymentsMade   int
	PaymentsMade           int
	WeeksBehind            int
	DaysOverdue            int
	// DaysSinceLastPayment is -1 when nothing has been paid yet.
	DaysSinceLastPayment int
}

// OverdueFilter narrows an analysis. Zero values disable a criterion.
type OverdueFilter struct {
	ClientID       string
	MinRemaining   decimal.Decimal
	MinDaysOverdue int
	Severity       Severity
}

// OverdueStatistics summarises a set of overdue loans.
type OverdueStatistics struct {
	TotalOverdue          int
	TotalOverdueAmount    decimal.Decimal
	TotalRemainingBalance decimal.Decimal
	AverageDaysOverdue    decimal.Decimal
	BySeverity            map[Severity]int
	// CollectionRate is actual over expected payments as a percentage.
	CollectionRate        decimal.Decimal
	TotalExpectedPayments decimal.Decimal
	TotalActualPayments   decimal.Decimal
}

// OverdueAnalyzer compares what Active loans have paid against the straight
// weekly schedule.
type OverdueAnalyzer struct {
	graceDays int
	// tolerance is the share of one weekly payment a loan may be short
	// before it counts as overdue.
	tolerance decimal.Decimal
}

// NewOverdueAnalyzer returns an analyzer with a 7-day grace period and a
// 10% shortfall tolerance.
func NewOverdueAnalyzer() *OverdueAnalyzer {
	return &OverdueAnalyzer{
		graceDays: 7,
		tolerance: decimal.RequireFromString("0.1"),
	}
}

// Analyze returns the overdue loans among positions as of today, most
// severe first and, within a severity, the longest overdue first.
func (a *OverdueAnalyzer) Analyze(positions []LoanPosition, today valueobject.BusinessDate, f OverdueFilter) []OverdueLoan {
	var out []OverdueLoan
	for _, p := range positions {
		if f.ClientID != "" && p.Loan.ClientID() != f.ClientID {
			continue
		}
		remaining := p.Loan.RemainingBalance(p.TotalPaid)
		if !remaining.IsPositive() || remaining.LessThan(f.MinRemaining) {
			continue
		}
		o, overdue := a.analyzeOne(p, today)
		if !overdue {
			continue
		}
		if f.MinDaysOverdue > 0 && o.DaysOverdue < f.MinDaysOverdue {
			continue
		}
		if f.Severity != "" && o.Severity != f.Severity {
			continue
		}
		out = append(out, o)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := severityRank[out[i].Severity], severityRank[out[j].Severity]
		if ri != rj {
			return ri > rj
		}
		return out[i].DaysOverdue > out[j].DaysOverdue
	})
	return out
}

func (a *OverdueAnalyzer) analyzeOne(p LoanPosition, today valueobject.BusinessDate) (OverdueLoan, bool) {
	loan := p.Loan
	if !loan.Status().Equal(valueobject.LoanStatusActive) || loan.DisbursementDate().IsZero() || loan.TermWeeks() <= 0 {
		return OverdueLoan{}, false
	}

	disbursed := loan.DisbursementDate()
	daysSince := disbursed.DaysUntil(today)
	if daysSince < 0 {
		daysSince = 0
	}
	weeksSince := daysSince / 7
	expectedPayments := min(weeksSince, loan.TermWeeks())

	weekly := loan.TotalLoanAmount().Div(decimal.NewFromInt(int64(loan.TermWeeks())))
	expectedPaid := weekly.Mul(decimal.NewFromInt(int64(expectedPayments)))
	shortfall := decimal.Max(decimal.Zero, expectedPaid.Sub(p.TotalPaid))
	paymentsShort := max(0, expectedPayments-p.PaymentsMade)

	overdue := shortfall.GreaterThan(weekly.Mul(a.tolerance)) && weeksSince > 0 && daysSince > a.graceDays

	o := OverdueLoan{
		LoanID:                 loan.ID(),
		ClientID:               loan.ClientID(),
		DisbursementDate:       disbursed,
		NextExpectedPayment:    disbursed.AddDays(7 * p.PaymentsMade),
		ExpectedWeeklyPayment:  money.Round(weekly),
		ExpectedAmountPaid:     money.Round(expectedPaid),
		TotalPaid:              p.TotalPaid,
		PaymentShortfall:       money.Round(shortfall),
		RemainingBalance:       loan.RemainingBalance(p.TotalPaid),
		PercentagePaid:         percentage(p.TotalPaid, loan.TotalLoanAmount()),
		WeeksSinceDisbursement: weeksSince,
		ExpectedPaymentsMade:   expectedPayments,
		PaymentsMade:           p.PaymentsMade,
		WeeksBehind:            paymentsShort,
		DaysSinceLastPayment:   -1,
	}
	if !p.LastPaymentDate.IsZero() {
		o.DaysSinceLastPayment = p.LastPaymentDate.DaysUntil(today)
	}
	if overdue {
		due := disbursed.AddDays(7 * expectedPayments)
		o.DaysOverdue = max(0, due.DaysUntil(today))
	}
	o.Severity = severity(o.DaysOverdue, paymentsShort, shortfall, loan.TotalLoanAmount())
	return o, overdue
}

func severity(daysOverdue, paymentsShort int, shortfall, total decimal.Decimal) Severity {
	half := total.Mul(decimal.RequireFromString("0.5"))
	quarter := total.Mul(decimal.RequireFromString("0.25"))
	switch {
	case daysOverdue > 60 || shortfall.GreaterThan(half):
		return SeverityCritical
	case daysOverdue > 30 || paymentsShort > 4 || shortfall.GreaterThan(quarter):
		return SeverityHigh
	case daysOverdue > 14 || paymentsShort > 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Statistics aggregates an analysis result.
func (a *OverdueAnalyzer) Statistics(loans []OverdueLoan) OverdueStatistics {
	stats := OverdueStatistics{
		TotalOverdue:          len(loans),
		TotalOverdueAmount:    decimal.Zero,
		TotalRemainingBalance: decimal.Zero,
		AverageDaysOverdue:    decimal.Zero,
		BySeverity: map[Severity]int{
			SeverityCritical: 0,
			SeverityHigh:     0,
			SeverityMedium:   0,
			SeverityLow:      0,
		},
		CollectionRate:        decimal.NewFromInt(100),
		TotalExpectedPayments: decimal.Zero,
		TotalActualPayments:   decimal.Zero,
	}
	if len(loans) == 0 {
		return stats
	}

	days := 0
	for _, l := range loans {
		stats.TotalOverdueAmount = stats.TotalOverdueAmount.Add(l.PaymentShortfall)
		stats.TotalRemainingBalance = stats.TotalRemainingBalance.Add(l.RemainingBalance)
		stats.TotalExpectedPayments = stats.TotalExpectedPayments.Add(l.ExpectedAmountPaid)
		stats.TotalActualPayments = stats.TotalActualPayments.Add(l.TotalPaid)
		stats.BySeverity[l.Severity]++
		days += l.DaysOverdue
	}
	stats.AverageDaysOverdue = decimal.NewFromInt(int64(days)).
		Div(decimal.NewFromInt(int64(len(loans)))).Round(1)
	if stats.TotalExpectedPayments.IsPositive() {
		stats.CollectionRate = percentage(stats.TotalActualPayments, stats.TotalExpectedPayments)
	}
	return stats
}

// percentage returns part/whole*100 to one decimal place.
func percentage(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(money.Hundred).Round(1)
}
