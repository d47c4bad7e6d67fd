package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/trackingnumber"
)

// Service exposes the tracking history log.
type Service interface {
	AppendEvent(ctx context.Context, parcelID uuid.UUID, status enums.ParcelStatus, message, location string) (*models.TrackingEvent, error)
	AppendWithTx(ctx context.Context, tx *gorm.DB, event *models.TrackingEvent) error
	GetHistory(ctx context.Context, parcelID uuid.UUID) ([]models.TrackingEvent, error)
	GetPublicTracking(ctx context.Context, trackingNumber string) (*PublicTracking, error)
}

// RiderContact is the only rider data exposed on the public tracking page.
type RiderContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// TimelineEntry is one public history line.
type TimelineEntry struct {
	Status     enums.ParcelStatus `json:"status"`
	Message    string             `json:"message"`
	Location   string             `json:"location,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// PublicTracking is the unauthenticated view of a parcel.
type PublicTracking struct {
	TrackingNumber string             `json:"trackingNumber"`
	Status         enums.ParcelStatus `json:"status"`
	LatestLocation string             `json:"latestLocation,omitempty"`
	Rider          *RiderContact      `json:"rider,omitempty"`
	Timeline       []TimelineEntry    `json:"timeline"`
	CreatedAt      time.Time          `json:"createdAt"`
	DeliveredAt    *time.Time         `json:"deliveredAt,omitempty"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires the tracking log.
func NewService(repo Repository, clock func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tracking repository required")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: repo, now: clock}, nil
}

func (s *service) AppendEvent(ctx context.Context, parcelID uuid.UUID, status enums.ParcelStatus, message, location string) (*models.TrackingEvent, error) {
	if parcelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parcel id required")
	}
	exists, err := s.repo.ParcelExists(ctx, parcelID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parcel")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "parcel not found")
	}

	event := &models.TrackingEvent{
		ParcelID: parcelID,
		Status:   status,
		Message:  message,
		Location: location,
	}
	if err := s.append(ctx, s.repo, event); err != nil {
		return nil, err
	}
	return event, nil
}

// AppendWithTx appends within the caller's transaction so the event commits or rolls
// back together with the status change it records.
func (s *service) AppendWithTx(ctx context.Context, tx *gorm.DB, event *models.TrackingEvent) error {
	return s.append(ctx, s.repo.WithTx(tx), event)
}

func (s *service) append(ctx context.Context, repo Repository, event *models.TrackingEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking event required")
	}
	if event.Status == enums.ParcelStatusShipped {
		event.Status = enums.ParcelStatusReachedServiceCenter
	}
	if !event.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", event.Status))
	}
	if event.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate event id")
		}
		event.ID = id
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	event.Message = strings.TrimSpace(event.Message)
	if event.Message == "" {
		event.Message = DefaultMessage(event.Status)
	}
	event.Location = strings.TrimSpace(event.Location)

	if err := repo.Create(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking event")
	}
	return nil
}

func (s *service) GetHistory(ctx context.Context, parcelID uuid.UUID) ([]models.TrackingEvent, error) {
	exists, err := s.repo.ParcelExists(ctx, parcelID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parcel")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "parcel not found")
	}
	events, err := s.repo.ListByParcel(ctx, parcelID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tracking events")
	}
	return events, nil
}

func (s *service) GetPublicTracking(ctx context.Context, trackingNumber string) (*PublicTracking, error) {
	normalized := trackingnumber.Normalize(trackingNumber)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}

	parcel, err := s.repo.FindParcelByTrackingNumber(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parcel")
	}
	if parcel == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tracking number not found")
	}

	events, err := s.repo.ListByParcel(ctx, parcel.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tracking events")
	}

	view := &PublicTracking{
		TrackingNumber: parcel.TrackingNumber,
		Status:         parcel.Status,
		Timeline:       make([]TimelineEntry, 0, len(events)),
		CreatedAt:      parcel.CreatedAt,
		DeliveredAt:    parcel.DeliveredAt,
	}
	for _, event := range events {
		if view.LatestLocation == "" && event.Location != "" {
			view.LatestLocation = event.Location
		}
		view.Timeline = append(view.Timeline, TimelineEntry{
			Status:     event.Status,
			Message:    event.Message,
			Location:   event.Location,
			OccurredAt: event.OccurredAt,
		})
	}

	riderID := parcel.DeliveryRiderID
	if riderID == nil {
		riderID = parcel.PickupRiderID
	}
	if riderID != nil {
		rider, err := s.repo.FindRider(ctx, *riderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rider")
		}
		if rider != nil {
			view.Rider = &RiderContact{Name: rider.Name, Phone: rider.Phone}
		}
	}

	return view, nil
}

// DefaultMessage is the history line used when a caller supplies none.
func DefaultMessage(status enums.ParcelStatus) string {
	switch status {
	case enums.ParcelStatusUnpaid:
		return "Parcel created"
	case enums.ParcelStatusPaid:
		return "Payment received"
	case enums.ParcelStatusReadyToPickup:
		return "Pickup rider assigned"
	case enums.ParcelStatusInTransit:
		return "Parcel picked up"
	case enums.ParcelStatusReachedServiceCenter:
		return "Parcel reached the service center"
	case enums.ParcelStatusReadyForDelivery:
		return "Delivery rider assigned"
	case enums.ParcelStatusDelivered:
		return "Parcel delivered"
	case enums.ParcelStatusCancelled:
		return "Parcel cancelled"
	default:
		return fmt.Sprintf("Status changed to %s", status)
	}
}
