package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MrJamesThe3rd/momopay/cmd/tui/internal/client"
)

type fakeAPI struct {
	statuses []string
	calls    int
}

func (f *fakeAPI) Initiate(context.Context, client.InitiateRequest) (*client.Envelope, error) {
	return nil, errors.New("not used")
}

func (f *fakeAPI) CheckStatus(_ context.Context, id string) (*client.Envelope, error) {
	status := f.statuses[min(f.calls, len(f.statuses)-1)]
	f.calls++

	return &client.Envelope{Success: true, Transaction: &client.Transaction{ID: id, Status: status}}, nil
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func submittingModel(api PaymentAPI, c *clock) CheckoutModel {
	m := NewCheckoutModel(api, "XOF", time.Second, time.Minute)
	m.now = c.now
	m.state = checkoutStateSubmitting

	return m
}

func processing(id string) initiatedMsg {
	return initiatedMsg{env: &client.Envelope{
		Success:     true,
		Transaction: &client.Transaction{ID: id, Status: "processing"},
	}}
}

func TestCheckoutModel_PollsUntilTerminal(t *testing.T) {
	api := &fakeAPI{statuses: []string{"processing", "completed"}}
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	model, cmd := submittingModel(api, c).Update(processing("tx-1"))
	m := model.(CheckoutModel)
	require.Equal(t, checkoutStatePolling, m.state)
	require.NotNil(t, cmd)

	for i := range 2 {
		model, cmd = m.Update(pollTickMsg{transactionID: "tx-1"})
		m = model.(CheckoutModel)
		require.NotNil(t, cmd, "poll %d", i)

		model, _ = m.Update(cmd())
		m = model.(CheckoutModel)
	}

	assert.Equal(t, checkoutStateResult, m.state)
	assert.Equal(t, "completed", m.tx.Status)
	assert.False(t, m.timedOut)
	assert.Equal(t, 2, api.calls)
}

func TestCheckoutModel_WindowElapsed(t *testing.T) {
	api := &fakeAPI{statuses: []string{"processing"}}
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	model, _ := submittingModel(api, c).Update(processing("tx-1"))
	m := model.(CheckoutModel)

	c.t = c.t.Add(time.Minute)

	model, cmd := m.Update(pollTickMsg{transactionID: "tx-1"})
	m = model.(CheckoutModel)

	assert.Nil(t, cmd)
	assert.Equal(t, checkoutStateResult, m.state)
	assert.True(t, m.timedOut)
	assert.Equal(t, "processing", m.tx.Status)
	assert.Zero(t, api.calls)
}

func TestCheckoutModel_IgnoresStaleMessages(t *testing.T) {
	api := &fakeAPI{statuses: []string{"completed"}}
	c := &clock{t: time.Now()}

	model, _ := submittingModel(api, c).Update(processing("tx-1"))
	m := model.(CheckoutModel)

	model, cmd := m.Update(pollTickMsg{transactionID: "tx-old"})
	m = model.(CheckoutModel)
	assert.Nil(t, cmd)

	model, _ = m.Update(statusMsg{
		transactionID: "tx-old",
		env:           &client.Envelope{Success: true, Transaction: &client.Transaction{ID: "tx-old", Status: "completed"}},
	})
	m = model.(CheckoutModel)

	assert.Equal(t, checkoutStatePolling, m.state)
	assert.Equal(t, "tx-1", m.tx.ID)
}

func TestCheckoutModel_InitiateOutcome(t *testing.T) {
	type testCase struct {
		name        string
		msg         initiatedMsg
		wantErr     bool
		wantFailure bool
	}

	tests := []testCase{
		{
			name:    "TransportError",
			msg:     initiatedMsg{err: errors.New("connection refused")},
			wantErr: true,
		},
		{
			name: "GatewayRejected",
			msg: initiatedMsg{env: &client.Envelope{
				Error:       "gateway rejected the payment",
				Code:        "GATEWAY_ERROR",
				Transaction: &client.Transaction{ID: "tx-1", Status: "failed"},
			}},
			wantFailure: true,
		},
		{
			name:    "MissingTransaction",
			msg:     initiatedMsg{env: &client.Envelope{Success: true}},
			wantErr: true,
		},
		{
			name: "AlreadyTerminal",
			msg: initiatedMsg{env: &client.Envelope{
				Success:     true,
				Transaction: &client.Transaction{ID: "tx-1", Status: "completed"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, cmd := submittingModel(&fakeAPI{}, &clock{}).Update(tt.msg)
			m := model.(CheckoutModel)

			assert.Nil(t, cmd)
			assert.Equal(t, checkoutStateResult, m.state)
			assert.Equal(t, tt.wantErr, m.err != nil)
			assert.Equal(t, tt.wantFailure, m.failure != nil)
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, validateAmount("1000"))
	assert.NoError(t, validateAmount(" 12.50 "))
	assert.Error(t, validateAmount("0"))
	assert.Error(t, validateAmount("-5"))
	assert.Error(t, validateAmount("ten"))
	assert.Error(t, validateAmount("1000.555"))
}

func TestFormatAmount(t *testing.T) {
	type testCase struct {
		amount   string
		currency string
		want     string
	}

	tests := []testCase{
		{amount: "1000", currency: "XOF", want: "1,000 XOF"},
		{amount: "1234567", currency: "XOF", want: "1,234,567 XOF"},
		{amount: "12.5", currency: "EUR", want: "12.50 EUR"},
		{amount: "500", currency: "", want: "500"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := FormatAmount(language.English, decimal.RequireFromString(tt.amount), tt.currency)
			assert.Equal(t, tt.want, got)
		})
	}
}
