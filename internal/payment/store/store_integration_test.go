//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/momopay/internal/database"
	"github.com/MrJamesThe3rd/momopay/internal/payment"
	"github.com/MrJamesThe3rd/momopay/internal/payment/store"
)

// Run with: MOMOPAY_TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/payment/store
func newStore(t *testing.T) *store.Store {
	t.Helper()

	connStr := os.Getenv("MOMOPAY_TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("MOMOPAY_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	db, err := database.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db))

	return store.New(db)
}

func createPending(t *testing.T, s *store.Store) *payment.Transaction {
	t.Helper()

	tx := &payment.Transaction{
		Amount:       decimal.RequireFromString("1000.50"),
		PhoneNumber:  "+22890000000",
		Method:       payment.MethodTMoney,
		OrderSummary: json.RawMessage(`{"items":[]}`),
	}
	require.NoError(t, s.CreateTransaction(context.Background(), tx))
	require.NotEqual(t, uuid.Nil, tx.ID)
	require.Equal(t, payment.StatusPending, tx.Status)

	return tx
}

func TestStore_UpdateTransaction_TerminalGuard(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tx := createPending(t, s)

	processing := payment.StatusProcessing
	upstreamID := "UP-" + tx.ID.String()[:8]

	got, err := s.UpdateTransaction(ctx, tx.ID, payment.Patch{
		Status:                &processing,
		UpstreamTransactionID: &upstreamID,
		UpstreamResponse:      json.RawMessage(`{"status":"pending"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusProcessing, got.Status)
	assert.True(t, decimal.RequireFromString("1000.50").Equal(got.Amount))

	completed := payment.StatusCompleted
	got, err = s.UpdateTransaction(ctx, tx.ID, payment.Patch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got.Status)
	assert.JSONEq(t, `{"status":"pending"}`, string(got.UpstreamResponse))

	failed := payment.StatusFailed
	_, err = s.UpdateTransaction(ctx, tx.ID, payment.Patch{Status: &failed})
	require.ErrorIs(t, err, payment.ErrTerminal)

	stored, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, stored.Status)

	byUpstream, err := s.GetByUpstreamID(ctx, upstreamID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, byUpstream.ID)
}

func TestStore_UpdateTransaction_Missing(t *testing.T) {
	s := newStore(t)

	failed := payment.StatusFailed
	_, err := s.UpdateTransaction(context.Background(), uuid.New(), payment.Patch{Status: &failed})
	require.ErrorIs(t, err, payment.ErrNotFound)
}

func TestStore_AppendLog(t *testing.T) {
	s := newStore(t)
	tx := createPending(t, s)

	entry := &payment.APILogEntry{
		TransactionID: &tx.ID,
		Endpoint:      "/payment/mobile-money",
		RequestData:   json.RawMessage(`{"amount":1000.5}`),
		ResponseData:  json.RawMessage(`{"message":"Numéro invalide"}`),
		StatusCode:    422,
	}
	require.NoError(t, s.AppendLog(context.Background(), entry))
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}
