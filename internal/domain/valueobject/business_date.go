package valueobject

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// BusinessDate is a calendar day with no time-of-day component. The cash
// blotter is keyed by it and payments are bucketed into it.
type BusinessDate struct {
	t time.Time
}

// NewBusinessDate builds a BusinessDate from its calendar parts.
func NewBusinessDate(year int, month time.Month, day int) BusinessDate {
	return BusinessDate{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// BusinessDateOf takes the calendar day of t in t's own location.
func BusinessDateOf(t time.Time) BusinessDate {
	y, m, d := t.Date()
	return NewBusinessDate(y, m, d)
}

// ParseBusinessDate parses "YYYY-MM-DD".
func ParseBusinessDate(s string) (BusinessDate, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return BusinessDate{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return BusinessDate{t: t}, nil
}

// Time returns midnight UTC of the day.
func (d BusinessDate) Time() time.Time { return d.t }

func (d BusinessDate) String() string { return d.t.Format(dateLayout) }

func (d BusinessDate) IsZero() bool { return d.t.IsZero() }

// AddDays returns the date n days later (earlier when n < 0).
func (d BusinessDate) AddDays(n int) BusinessDate {
	return BusinessDate{t: d.t.AddDate(0, 0, n)}
}

// Prev is the preceding calendar day.
func (d BusinessDate) Prev() BusinessDate { return d.AddDays(-1) }

func (d BusinessDate) Equal(o BusinessDate) bool  { return d.t.Equal(o.t) }
func (d BusinessDate) Before(o BusinessDate) bool { return d.t.Before(o.t) }
func (d BusinessDate) After(o BusinessDate) bool  { return d.t.After(o.t) }

// DaysUntil counts whole days from d to o; negative when o is earlier.
func (d BusinessDate) DaysUntil(o BusinessDate) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}
