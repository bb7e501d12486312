package enums

import "fmt"

// LineKind distinguishes ordinary catalog lines from the special lines whose
// price is computed upstream and trusted as-is.
type LineKind string

const (
	// LineKindItem is an ordinary catalog line; its price is resolved from
	// the catalog at validation time.
	LineKindItem LineKind = "item"
	// LineKindUpgrade is a pledge upgrade differential with a precomputed price.
	LineKindUpgrade LineKind = "upgrade"
	// LineKindCarryover is a carried-over unpaid original pledge or addon
	// with a precomputed price.
	LineKindCarryover LineKind = "carryover"
)

var validLineKinds = []LineKind{
	LineKindItem,
	LineKindUpgrade,
	LineKindCarryover,
}

// String implements fmt.Stringer.
func (k LineKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known LineKind.
func (k LineKind) IsValid() bool {
	for _, candidate := range validLineKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// Special reports whether the line carries a trusted upstream price.
func (k LineKind) Special() bool {
	return k == LineKindUpgrade || k == LineKindCarryover
}

// ParseLineKind converts raw input into a LineKind.
func ParseLineKind(value string) (LineKind, error) {
	for _, candidate := range validLineKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line kind %q", value)
}
