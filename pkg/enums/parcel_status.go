package enums

import (
	"fmt"
	"strings"
)

// ParcelStatus maps to the parcel_status enum in Postgres. It is the single canonical
// lifecycle; legacy labels are normalized by ParseParcelStatus.
type ParcelStatus string

const (
	ParcelStatusUnpaid               ParcelStatus = "unpaid"
	ParcelStatusPaid                 ParcelStatus = "paid"
	ParcelStatusReadyToPickup        ParcelStatus = "ready-to-pickup"
	ParcelStatusInTransit            ParcelStatus = "in-transit"
	ParcelStatusReachedServiceCenter ParcelStatus = "reached-service-center"
	ParcelStatusReadyForDelivery     ParcelStatus = "ready-for-delivery"
	ParcelStatusDelivered            ParcelStatus = "delivered"
	ParcelStatusCancelled            ParcelStatus = "cancelled"
)

// ParcelStatusShipped is accepted on input as a synonym of reached-service-center.
const ParcelStatusShipped ParcelStatus = "shipped"

var validParcelStatuses = []ParcelStatus{
	ParcelStatusUnpaid,
	ParcelStatusPaid,
	ParcelStatusReadyToPickup,
	ParcelStatusInTransit,
	ParcelStatusReachedServiceCenter,
	ParcelStatusReadyForDelivery,
	ParcelStatusDelivered,
	ParcelStatusCancelled,
}

// legacy vocabularies seen in older clients.
var parcelStatusAliases = map[string]ParcelStatus{
	"pending":          ParcelStatusUnpaid,
	"assigned":         ParcelStatusReadyToPickup,
	"picked":           ParcelStatusInTransit,
	"on the way":       ParcelStatusInTransit,
	"on-the-way":       ParcelStatusInTransit,
	"shipped":          ParcelStatusReachedServiceCenter,
	"out-for-delivery": ParcelStatusReadyForDelivery,
}

// ParcelStatuses returns the canonical statuses in lifecycle order.
func ParcelStatuses() []ParcelStatus {
	out := make([]ParcelStatus, len(validParcelStatuses))
	copy(out, validParcelStatuses)
	return out
}

// String implements fmt.Stringer.
func (s ParcelStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a canonical ParcelStatus.
func (s ParcelStatus) IsValid() bool {
	for _, candidate := range validParcelStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ParcelStatus) IsTerminal() bool {
	return s == ParcelStatusDelivered || s == ParcelStatusCancelled
}

// ParseParcelStatus converts raw input into a canonical ParcelStatus.
func ParseParcelStatus(value string) (ParcelStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validParcelStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	if alias, ok := parcelStatusAliases[normalized]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid parcel status %q", value)
}
