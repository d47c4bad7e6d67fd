package riders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/db"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/pagination"
)

// Service manages the rider roster.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Rider, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Rider, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*models.Rider, error)
}

// RegisterInput is an operator's request to onboard a rider.
type RegisterInput struct {
	Name          string
	Email         string
	Phone         string
	VehicleType   enums.VehicleType
	VehicleNumber string
	LicenseNumber string
}

// ListParams filters the roster.
type ListParams struct {
	AvailableOnly bool
	Limit         int
	Cursor        string
}

// ListResult is one page of riders.
type ListResult struct {
	Riders     []models.Rider
	NextCursor string
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the rider service.
func NewService(repo Repository, logg *logger.Logger, clock func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rider repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: repo, logg: logg, now: clock}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Rider, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	if input.Name == "" || input.Email == "" || input.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name, email and phone are required")
	}
	if !input.VehicleType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid vehicle type")
	}

	now := s.now()
	rider := &models.Rider{
		ID:            uuid.New(),
		Name:          input.Name,
		Email:         input.Email,
		Phone:         input.Phone,
		VehicleType:   input.VehicleType,
		VehicleNumber: strings.TrimSpace(input.VehicleNumber),
		LicenseNumber: strings.TrimSpace(input.LicenseNumber),
		IsAvailable:   true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, rider); err != nil {
		if db.IsUniqueViolation(err, "email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "rider email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rider")
	}
	s.logg.Info(s.logg.WithField(ctx, "rider_id", rider.ID.String()), "rider.registered")
	return rider, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Rider, error) {
	rider, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rider")
	}
	if rider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
	}
	return rider, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, listQuery{AvailableOnly: params.AvailableOnly, Limit: params.Limit, Cursor: cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list riders")
	}
	result := &ListResult{Riders: rows}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*models.Rider, error) {
	ok, err := s.repo.SetAvailability(ctx, id, available, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update availability")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
	}
	return s.Get(ctx, id)
}
