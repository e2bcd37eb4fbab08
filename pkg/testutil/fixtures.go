package testutil

import "time"

// Deterministic identities and dates shared by ledger tests.
const (
	CashierID = "user-cashier-1"
	ManagerID = "user-manager-1"
	OfficerID = "user-officer-1"
	ClientID  = "client-0001"
)

// BusinessDay is a fixed Monday used as "today" in tests.
var BusinessDay = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

// Day returns BusinessDay shifted by n days.
func Day(n int) time.Time {
	return BusinessDay.AddDate(0, 0, n)
}
