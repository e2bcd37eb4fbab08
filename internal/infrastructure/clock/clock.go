// Package clock provides port.Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/valueobject"
)

var (
	_ port.Clock = System{}
	_ port.Clock = (*Fixed)(nil)
)

// System reads the wall clock. The business day is the calendar day in loc.
type System struct {
	loc *time.Location
}

// NewSystem returns a wall clock for the named IANA zone. An empty name
// means UTC.
func NewSystem(zone string) (System, error) {
	if zone == "" {
		return System{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return System{}, err
	}
	return System{loc: loc}, nil
}

func (c System) Now() time.Time { return time.Now().In(c.location()).Truncate(time.Microsecond) }

func (c System) Today() valueobject.BusinessDate { return valueobject.BusinessDateOf(c.Now()) }

func (c System) location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Fixed is a settable clock for tests and replays.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock stopped at now.
func NewFixed(now time.Time) *Fixed { return &Fixed{now: now} }

func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fixed) Today() valueobject.BusinessDate { return valueobject.BusinessDateOf(c.Now()) }

// Set moves the clock to now.
func (c *Fixed) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// AdvanceDays moves the clock n calendar days forward.
func (c *Fixed) AdvanceDays(n int) {
	c.mu.Lock()
	c.now = c.now.AddDate(0, 0, n)
	c.mu.Unlock()
}
