package valueobject

import "fmt"

// SheetStatus is the approval stage of a field officer's collection sheet.
// Sheets move Draft -> Submitted -> Approved and never back.
type SheetStatus struct {
	value string
}

const (
	sheetStatusDraft     = "draft"
	sheetStatusSubmitted = "submitted"
	sheetStatusApproved  = "approved"
)

var (
	SheetStatusDraft     = SheetStatus{value: sheetStatusDraft}
	SheetStatusSubmitted = SheetStatus{value: sheetStatusSubmitted}
	SheetStatusApproved  = SheetStatus{value: sheetStatusApproved}
)

// NewSheetStatus creates a SheetStatus from a raw string.
func NewSheetStatus(s string) (SheetStatus, error) {
	switch s {
	case sheetStatusDraft:
		return SheetStatusDraft, nil
	case sheetStatusSubmitted:
		return SheetStatusSubmitted, nil
	case sheetStatusApproved:
		return SheetStatusApproved, nil
	default:
		return SheetStatus{}, fmt.Errorf("invalid collection sheet status: %q", s)
	}
}

func (s SheetStatus) String() string               { return s.value }
func (s SheetStatus) IsZero() bool                 { return s.value == "" }
func (s SheetStatus) Equal(other SheetStatus) bool { return s.value == other.value }
