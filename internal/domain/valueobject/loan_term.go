package valueobject

import (
	"fmt"
	"math"
	"strconv"
)

// weeksPerMonth is the conversion used when a term is only given in weeks.
const weeksPerMonth = 4.33

var conversationalTerms = map[int]string{
	4:  "1 month",
	8:  "2 months",
	12: "3 months",
	16: "4 months",
	17: "4+ months (17 weeks)",
	20: "5 months",
	24: "6 months",
	26: "6+ months (26 weeks)",
	52: "1 year",
}

// TermLabel renders a week count the way loan officers quote it to clients.
func TermLabel(weeks int) string {
	if label, ok := conversationalTerms[weeks]; ok {
		return label
	}

	months := math.Round(float64(weeks)/weeksPerMonth*10) / 10
	switch {
	case months < 1:
		return fmt.Sprintf("%d weeks", weeks)
	case months == 1:
		return fmt.Sprintf("1 month (%d weeks)", weeks)
	case months == math.Round(months):
		return fmt.Sprintf("%d months (%d weeks)", int(months), weeks)
	default:
		return fmt.Sprintf("%s months (%d weeks)", strconv.FormatFloat(months, 'f', 1, 64), weeks)
	}
}

// MonthsForWeeks approximates a month count for a week-only term. It never
// returns less than one.
func MonthsForWeeks(weeks int) int {
	m := int(math.Round(float64(weeks) / weeksPerMonth))
	if m < 1 {
		return 1
	}
	return m
}

// TermOption is one entry of the term picker offered at application time.
type TermOption struct {
	Weeks    int    `json:"weeks"`
	Label    string `json:"label"`
	Standard bool   `json:"standard,omitempty"`
}

// CommonTermOptions lists the usual terms, flagging standardWeeks.
func CommonTermOptions(standardWeeks int) []TermOption {
	weeks := []int{4, 8, 12, 16, 17, 20, 24, 26, 52}
	out := make([]TermOption, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, TermOption{
			Weeks:    w,
			Label:    TermLabel(w),
			Standard: w == standardWeeks,
		})
	}
	return out
}
