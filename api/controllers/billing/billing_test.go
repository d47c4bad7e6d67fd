package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/zipshift-backend/api/middleware"
	billingsvc "github.com/angelmondragon/zipshift-backend/internal/billing"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

type fakeLedger struct {
	overviewFor uuid.UUID
	payoutFor   uuid.UUID
	payoutInput billingsvc.RecordPayoutInput
	payoutErr   error
}

func (f *fakeLedger) GetOverview(_ context.Context, merchantID uuid.UUID) (*billingsvc.Overview, error) {
	f.overviewFor = merchantID
	return &billingsvc.Overview{
		MerchantID:         merchantID,
		WalletBalanceCents: 50000,
		PendingCodCents:    12345,
		LastPayout:         &billingsvc.LastPayout{AmountCents: 2000, Reference: "PO-1", At: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func (f *fakeLedger) RecordPayout(_ context.Context, merchantID uuid.UUID, input billingsvc.RecordPayoutInput) (*models.Payout, error) {
	f.payoutFor = merchantID
	f.payoutInput = input
	if f.payoutErr != nil {
		return nil, f.payoutErr
	}
	return &models.Payout{ID: uuid.New(), MerchantID: merchantID, AmountCents: input.AmountCents, Reference: "PO-2", Status: enums.PayoutStatusPending, Method: enums.PayoutMethodBankTransfer}, nil
}

func TestMerchantOverviewUsesAuthenticatedAccount(t *testing.T) {
	ledger := &fakeLedger{}
	merchantID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/billing", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), merchantID, enums.AccountRoleMerchant))
	rec := httptest.NewRecorder()
	MerchantOverview(ledger, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, merchantID, ledger.overviewFor)

	var envelope struct {
		Data overviewResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "500.00", envelope.Data.WalletBalance)
	assert.Equal(t, "123.45", envelope.Data.PendingCod)
	require.NotNil(t, envelope.Data.LastPayout)
	assert.Equal(t, "20.00", envelope.Data.LastPayout.Amount)
}

func TestRecordPayout(t *testing.T) {
	r := chi.NewRouter()
	ledger := &fakeLedger{}
	r.Post("/billing/{merchantId}/payouts", RecordPayout(ledger, nil))
	merchantID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/billing/"+merchantID.String()+"/payouts", strings.NewReader(`{"amount":"250.75"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, merchantID, ledger.payoutFor)
	assert.Equal(t, int64(25075), ledger.payoutInput.AmountCents)

	ledger.payoutErr = pkgerrors.New(pkgerrors.CodeConflict, "insufficient wallet balance")
	req = httptest.NewRequest(http.MethodPost, "/billing/"+merchantID.String()+"/payouts", strings.NewReader(`{"amount":"999999.00"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/billing/"+merchantID.String()+"/payouts", strings.NewReader(`{"amount":"ten"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
