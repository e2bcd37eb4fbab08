package valueobject

import "fmt"

// BlotterStatus represents whether a day's cash blotter may still change.
type BlotterStatus struct {
	value string
}

const (
	blotterStatusDraft     = "draft"
	blotterStatusFinalized = "finalized"
)

var (
	BlotterStatusDraft     = BlotterStatus{value: blotterStatusDraft}
	BlotterStatusFinalized = BlotterStatus{value: blotterStatusFinalized}
)

// NewBlotterStatus creates a BlotterStatus from a raw string.
func NewBlotterStatus(s string) (BlotterStatus, error) {
	switch s {
	case blotterStatusDraft:
		return BlotterStatusDraft, nil
	case blotterStatusFinalized:
		return BlotterStatusFinalized, nil
	default:
		return BlotterStatus{}, fmt.Errorf("invalid blotter status: %q", s)
	}
}

func (s BlotterStatus) String() string                 { return s.value }
func (s BlotterStatus) IsZero() bool                   { return s.value == "" }
func (s BlotterStatus) Equal(other BlotterStatus) bool { return s.value == other.value }
