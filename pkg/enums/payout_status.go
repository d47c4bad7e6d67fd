package enums

import "slices"

// PayoutStatus maps to the payout_status enum in Postgres.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusFailed     PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusPaid,
	PayoutStatusFailed,
}

func (p PayoutStatus) IsValid() bool {
	return slices.Contains(validPayoutStatuses, p)
}

func ParsePayoutStatus(value string) (PayoutStatus, error) {
	return parseOneOf("payout status", value, validPayoutStatuses)
}

// PayoutMethodBankTransfer is the only payout method recorded today.
const PayoutMethodBankTransfer = "bank-transfer"
