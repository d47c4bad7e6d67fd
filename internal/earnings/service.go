package earnings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/pkg/config"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/metrics"
)

// Result reports whether the call booked a credit. Replays return Credited=false.
type Result struct {
	Credited    bool
	AmountCents int64
}

// Service credits riders once per completed leg.
type Service interface {
	Accrue(ctx context.Context, riderID, parcelID uuid.UUID, leg enums.LegType) (Result, error)
	AccrueWithTx(ctx context.Context, tx *gorm.DB, riderID, parcelID uuid.UUID, leg enums.LegType) (Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the earnings service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Config            config.EarningsConfig
	Metrics           *metrics.Lifecycle
	Logger            *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	perLeg  int64
	metrics *metrics.Lifecycle
	logg    *logger.Logger
}

// NewService builds the earnings accrual service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "earnings repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Config.PerLegCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "per-leg earning must be non-negative")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    params.Repo,
		tx:      params.TransactionRunner,
		perLeg:  params.Config.PerLegCents,
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

func (s *service) Accrue(ctx context.Context, riderID, parcelID uuid.UUID, leg enums.LegType) (Result, error) {
	var result Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.AccrueWithTx(ctx, tx, riderID, parcelID, leg)
		return err
	})
	return result, err
}

// AccrueWithTx guards the rider increment behind the per-leg credited marker, both in the
// caller's transaction, so a leg is never credited twice.
func (s *service) AccrueWithTx(ctx context.Context, tx *gorm.DB, riderID, parcelID uuid.UUID, leg enums.LegType) (Result, error) {
	if !leg.IsValid() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid leg")
	}
	if riderID == uuid.Nil || parcelID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "rider and parcel ids required")
	}
	repo := s.repo.WithTx(tx)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"rider_id":  riderID.String(),
		"parcel_id": parcelID.String(),
		"leg":       string(leg),
	})

	marked, err := repo.MarkCredited(ctx, parcelID, riderID, leg)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark leg credited")
	}
	if !marked {
		parcel, err := repo.FindParcel(ctx, parcelID)
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parcel")
		}
		if parcel == nil {
			return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "parcel not found")
		}
		if !parcel.IsBoundTo(leg, riderID) {
			return Result{}, pkgerrors.New(pkgerrors.CodeConflict, "rider is not bound to this leg").
				WithDetails(pkgerrors.StateDetails{Leg: string(leg), Current: string(parcel.Status)})
		}
		s.metrics.IncEarningsCredit(string(leg), "replay")
		s.logg.Debug(logCtx, "earnings.replay")
		return Result{Credited: false}, nil
	}

	updated, err := repo.AddEarnings(ctx, riderID, s.perLeg)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit rider")
	}
	if !updated {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
	}

	s.metrics.IncEarningsCredit(string(leg), "credited")
	s.logg.Info(logCtx, "earnings.credited")
	return Result{Credited: true, AmountCents: s.perLeg}, nil
}
