package enums

import "slices"

// PaymentStatus tracks whether the declared delivery charge of a parcel was paid.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
}

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	return slices.Contains(validPaymentStatuses, p)
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parseOneOf("payment status", value, validPaymentStatuses)
}
