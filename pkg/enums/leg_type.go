package enums

import "slices"

// LegType names one of the two separately assignable segments of a parcel's journey.
type LegType string

const (
	LegTypePickup   LegType = "pickup"
	LegTypeDelivery LegType = "delivery"
)

var validLegTypes = []LegType{LegTypePickup, LegTypeDelivery}

func (l LegType) String() string {
	return string(l)
}

func (l LegType) IsValid() bool {
	return slices.Contains(validLegTypes, l)
}

// BoundStatus is the status a parcel enters once a rider is bound to the leg.
func (l LegType) BoundStatus() ParcelStatus {
	if l == LegTypeDelivery {
		return ParcelStatusReadyForDelivery
	}
	return ParcelStatusReadyToPickup
}

// RiderColumn is the parcels column holding the leg's rider reference.
func (l LegType) RiderColumn() string {
	if l == LegTypeDelivery {
		return "delivery_rider_id"
	}
	return "pickup_rider_id"
}

// CreditedColumn is the parcels column holding the leg's earnings marker.
func (l LegType) CreditedColumn() string {
	if l == LegTypeDelivery {
		return "delivery_credited"
	}
	return "pickup_credited"
}

func ParseLegType(value string) (LegType, error) {
	return parseOneOf("leg type", value, validLegTypes)
}
