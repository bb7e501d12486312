package enums

import "fmt"

// NotificationKind labels the backer-facing emails this core fires.
type NotificationKind string

const (
	NotificationKindPaymentSucceeded NotificationKind = "payment_succeeded"
	NotificationKindPaymentFailed    NotificationKind = "payment_failed"
	NotificationKindCardSaved        NotificationKind = "card_saved"
	NotificationKindCaptureSucceeded NotificationKind = "capture_succeeded"
	NotificationKindCaptureFailed    NotificationKind = "capture_failed"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindPaymentSucceeded,
	NotificationKindPaymentFailed,
	NotificationKindCardSaved,
	NotificationKindCaptureSucceeded,
	NotificationKindCaptureFailed,
}

// String implements fmt.Stringer.
func (k NotificationKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known NotificationKind.
func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
