package enums

import "slices"

// ParcelType distinguishes paper documents from goods.
type ParcelType string

const (
	ParcelTypeDocument    ParcelType = "document"
	ParcelTypeNonDocument ParcelType = "non-document"
)

var validParcelTypes = []ParcelType{ParcelTypeDocument, ParcelTypeNonDocument}

func (p ParcelType) IsValid() bool {
	return slices.Contains(validParcelTypes, p)
}

func ParseParcelType(value string) (ParcelType, error) {
	return parseOneOf("parcel type", value, validParcelTypes)
}

// VehicleType is the rider's registered vehicle class.
type VehicleType string

const (
	VehicleTypeBike VehicleType = "bike"
	VehicleTypeCar  VehicleType = "car"
	VehicleTypeVan  VehicleType = "van"
)

var validVehicleTypes = []VehicleType{VehicleTypeBike, VehicleTypeCar, VehicleTypeVan}

func (v VehicleType) IsValid() bool {
	return slices.Contains(validVehicleTypes, v)
}

func ParseVehicleType(value string) (VehicleType, error) {
	return parseOneOf("vehicle type", value, validVehicleTypes)
}
