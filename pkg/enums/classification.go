package enums

import "fmt"

// Classification is the closed set of account categories that drive pricing
// and payment behavior.
type Classification string

const (
	ClassificationGuest      Classification = "guest"
	ClassificationCollected  Classification = "collected"
	ClassificationPOT        Classification = "pot"
	ClassificationDropped    Classification = "dropped"
	ClassificationCanceled   Classification = "canceled"
	ClassificationLatePledge Classification = "late_pledge"
)

var validClassifications = []Classification{
	ClassificationGuest,
	ClassificationCollected,
	ClassificationPOT,
	ClassificationDropped,
	ClassificationCanceled,
	ClassificationLatePledge,
}

// String implements fmt.Stringer.
func (c Classification) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Classification.
func (c Classification) IsValid() bool {
	for _, candidate := range validClassifications {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseClassification converts raw input into a Classification.
func ParseClassification(value string) (Classification, error) {
	for _, candidate := range validClassifications {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid classification %q", value)
}

// Classifications returns the closed set in precedence-independent order.
func Classifications() []Classification {
	out := make([]Classification, len(validClassifications))
	copy(out, validClassifications)
	return out
}
