package enums

import "fmt"

// AccountStatus mirrors the pledge status imported from the crowdfunding
// platform. It is set by import/admin processes, never by checkout.
type AccountStatus string

const (
	AccountStatusCollected AccountStatus = "collected"
	AccountStatusDropped   AccountStatus = "dropped"
	AccountStatusCanceled  AccountStatus = "canceled"
)

var validAccountStatuses = []AccountStatus{
	AccountStatusCollected,
	AccountStatusDropped,
	AccountStatusCanceled,
}

// String implements fmt.Stringer.
func (s AccountStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AccountStatus.
func (s AccountStatus) IsValid() bool {
	for _, candidate := range validAccountStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAccountStatus converts raw input into an AccountStatus.
func ParseAccountStatus(value string) (AccountStatus, error) {
	for _, candidate := range validAccountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account status %q", value)
}
