package enums

import "fmt"

// PaymentStatus tracks the payment lifecycle of an order. Transitions only
// move forward through the table below; nothing ever reverts to an earlier
// non-terminal state.
type PaymentStatus string

const (
	PaymentStatusPending      PaymentStatus = "pending"
	PaymentStatusSucceeded    PaymentStatus = "succeeded"
	PaymentStatusCardSaved    PaymentStatus = "card_saved"
	PaymentStatusFailed       PaymentStatus = "failed"
	PaymentStatusCharged      PaymentStatus = "charged"
	PaymentStatusChargeFailed PaymentStatus = "charge_failed"
	PaymentStatusRefunded     PaymentStatus = "refunded"
	PaymentStatusDisputed     PaymentStatus = "disputed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusSucceeded,
	PaymentStatusCardSaved,
	PaymentStatusFailed,
	PaymentStatusCharged,
	PaymentStatusChargeFailed,
	PaymentStatusRefunded,
	PaymentStatusDisputed,
}

// paymentTransitions is the exhaustive forward-only state machine. A status
// missing from the map accepts no further transitions.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusSucceeded, PaymentStatusCardSaved, PaymentStatusFailed},
	PaymentStatusCardSaved: {PaymentStatusCharged, PaymentStatusChargeFailed},
	PaymentStatusSucceeded: {PaymentStatusRefunded, PaymentStatusDisputed},
	PaymentStatusCharged:   {PaymentStatusRefunded, PaymentStatusDisputed},
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving from p to next.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range paymentTransitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from p.
func (p PaymentStatus) IsTerminal() bool {
	return len(paymentTransitions[p]) == 0
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
