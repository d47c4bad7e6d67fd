package parcels

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/api/middleware"
	internalparcels "github.com/angelmondragon/zipshift-backend/internal/parcels"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

type contactPayload struct {
	Name          string `json:"name" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"required,max=32"`
	Address       string `json:"address" validate:"required,max=500"`
	Region        string `json:"region,omitempty" validate:"max=120"`
	ServiceCenter string `json:"serviceCenter,omitempty" validate:"max=120"`
	Instruction   string `json:"instruction,omitempty" validate:"max=500"`
}

func (c contactPayload) toModel() models.Contact {
	return models.Contact{
		Name:          c.Name,
		Phone:         c.Phone,
		Address:       c.Address,
		Region:        c.Region,
		ServiceCenter: c.ServiceCenter,
		Instruction:   c.Instruction,
	}
}

func contactFromModel(c models.Contact) contactPayload {
	return contactPayload{
		Name:          c.Name,
		Phone:         c.Phone,
		Address:       c.Address,
		Region:        c.Region,
		ServiceCenter: c.ServiceCenter,
		Instruction:   c.Instruction,
	}
}

// ParcelResponse is the API view of a parcel. Money is rendered as decimal strings.
type ParcelResponse struct {
	ID                   uuid.UUID           `json:"id"`
	TrackingNumber       string              `json:"trackingNumber"`
	MerchantID           uuid.UUID           `json:"merchantId"`
	PickupRiderID        *uuid.UUID          `json:"pickupRiderId,omitempty"`
	DeliveryRiderID      *uuid.UUID          `json:"deliveryRiderId,omitempty"`
	ParcelType           enums.ParcelType    `json:"parcelType"`
	WeightKg             float64             `json:"weightKg"`
	Cost                 string              `json:"cost"`
	CodAmount            string              `json:"codAmount"`
	Status               enums.ParcelStatus  `json:"status"`
	PaymentStatus        enums.PaymentStatus `json:"paymentStatus"`
	PaymentTransactionID *string             `json:"paymentTransactionId,omitempty"`
	Sender               contactPayload      `json:"sender"`
	Receiver             contactPayload      `json:"receiver"`
	DeliveredAt          *time.Time          `json:"deliveredAt,omitempty"`
	CancelledAt          *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

func toParcelResponse(p *models.Parcel) ParcelResponse {
	return ParcelResponse{
		ID:                   p.ID,
		TrackingNumber:       p.TrackingNumber,
		MerchantID:           p.MerchantID,
		PickupRiderID:        p.PickupRiderID,
		DeliveryRiderID:      p.DeliveryRiderID,
		ParcelType:           p.ParcelType,
		WeightKg:             p.WeightKg,
		Cost:                 formatCents(p.CostCents),
		CodAmount:            formatCents(p.CodCents),
		Status:               p.Status,
		PaymentStatus:        p.PaymentStatus,
		PaymentTransactionID: p.PaymentTransactionID,
		Sender:               contactFromModel(p.Sender),
		Receiver:             contactFromModel(p.Receiver),
		DeliveredAt:          p.DeliveredAt,
		CancelledAt:          p.CancelledAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

type listResponse struct {
	Items  []ParcelResponse `json:"items"`
	Cursor string           `json:"cursor"`
}

type historyEntry struct {
	ID         uuid.UUID          `json:"id"`
	Status     enums.ParcelStatus `json:"status"`
	Message    string             `json:"message"`
	Location   string             `json:"location,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

func actorFromRequest(r *http.Request) internalparcels.Actor {
	return internalparcels.Actor{
		AccountID: middleware.AccountIDFromContext(r.Context()),
		Role:      middleware.RoleFromContext(r.Context()),
	}
}
