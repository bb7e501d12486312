package enums

import "fmt"

// PaymentMode decides how funds are collected: charged at checkout or
// authorized now and captured later by the bulk-capture run.
type PaymentMode string

const (
	PaymentModeImmediate PaymentMode = "immediate"
	PaymentModeDeferred  PaymentMode = "deferred"
)

var validPaymentModes = []PaymentMode{
	PaymentModeImmediate,
	PaymentModeDeferred,
}

// String implements fmt.Stringer.
func (m PaymentMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PaymentMode.
func (m PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePaymentMode converts raw input into a PaymentMode.
func ParsePaymentMode(value string) (PaymentMode, error) {
	for _, candidate := range validPaymentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
