package billing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/api/middleware"
	"github.com/angelmondragon/zipshift-backend/api/responses"
	"github.com/angelmondragon/zipshift-backend/api/validators"
	billingsvc "github.com/angelmondragon/zipshift-backend/internal/billing"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/money"
)

// LedgerService is the billing surface the controllers need.
type LedgerService interface {
	GetOverview(ctx context.Context, merchantID uuid.UUID) (*billingsvc.Overview, error)
	RecordPayout(ctx context.Context, merchantID uuid.UUID, input billingsvc.RecordPayoutInput) (*models.Payout, error)
}

type payoutRequest struct {
	Amount    string `json:"amount" validate:"required,amount"`
	Reference string `json:"reference" validate:"max=64"`
	Method    string `json:"method" validate:"max=32"`
}

type payoutResponse struct {
	ID          uuid.UUID          `json:"id"`
	Amount      string             `json:"amount"`
	Reference   string             `json:"reference"`
	Status      enums.PayoutStatus `json:"status"`
	Method      string             `json:"method"`
	InitiatedAt time.Time          `json:"initiatedAt"`
}

type lastPayoutResponse struct {
	Amount    string    `json:"amount"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

type overviewResponse struct {
	MerchantID    uuid.UUID           `json:"merchantId"`
	WalletBalance string              `json:"walletBalance"`
	PendingCod    string              `json:"pendingCod"`
	LastPayout    *lastPayoutResponse `json:"lastPayout,omitempty"`
	Payouts       []payoutResponse    `json:"payouts"`
}

func toPayoutResponse(p *models.Payout) payoutResponse {
	return payoutResponse{
		ID:          p.ID,
		Amount:      money.Format(p.AmountCents),
		Reference:   p.Reference,
		Status:      p.Status,
		Method:      p.Method,
		InitiatedAt: p.InitiatedAt,
	}
}

func toOverviewResponse(o *billingsvc.Overview) overviewResponse {
	resp := overviewResponse{
		MerchantID:    o.MerchantID,
		WalletBalance: money.Format(o.WalletBalanceCents),
		PendingCod:    money.Format(o.PendingCodCents),
		Payouts:       make([]payoutResponse, 0, len(o.Payouts)),
	}
	if o.LastPayout != nil {
		resp.LastPayout = &lastPayoutResponse{
			Amount:    money.Format(o.LastPayout.AmountCents),
			Reference: o.LastPayout.Reference,
			At:        o.LastPayout.At,
		}
	}
	for i := range o.Payouts {
		resp.Payouts = append(resp.Payouts, toPayoutResponse(&o.Payouts[i]))
	}
	return resp
}

// MerchantOverview returns the authenticated merchant's ledger.
func MerchantOverview(svc LedgerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		writeOverview(w, r, svc, middleware.AccountIDFromContext(ctx), logg)
	}
}

// OperatorOverview returns any merchant's ledger.
func OperatorOverview(svc LedgerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, err := validators.ParseUUIDParam(r, "merchantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOverview(w, r, svc, merchantID, logg)
	}
}

func writeOverview(w http.ResponseWriter, r *http.Request, svc LedgerService, merchantID uuid.UUID, logg *logger.Logger) {
	ctx := r.Context()
	if svc == nil {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
		return
	}
	overview, err := svc.GetOverview(ctx, merchantID)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	responses.WriteSuccess(w, toOverviewResponse(overview))
}

// RecordPayout books a wallet withdrawal that was initiated outside the platform.
func RecordPayout(svc LedgerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		merchantID, err := validators.ParseUUIDParam(r, "merchantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req payoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		amount, err := money.ParseCents(strings.TrimSpace(req.Amount))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		payout, err := svc.RecordPayout(ctx, merchantID, billingsvc.RecordPayoutInput{
			AmountCents: amount,
			Reference:   req.Reference,
			Method:      req.Method,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toPayoutResponse(payout))
	}
}
