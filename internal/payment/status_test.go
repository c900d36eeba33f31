package payment_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/momopay/internal/payment"
)

func TestParseUpstreamStatus(t *testing.T) {
	type testCase struct {
		raw    string
		want   payment.Status
		wantOK bool
	}

	tests := []testCase{
		{raw: "pending", want: payment.StatusPending, wantOK: true},
		{raw: "PROCESSING", want: payment.StatusProcessing, wantOK: true},
		{raw: "completed", want: payment.StatusCompleted, wantOK: true},
		{raw: " Success ", want: payment.StatusCompleted, wantOK: true},
		{raw: "failed", want: payment.StatusFailed, wantOK: true},
		{raw: "canceled", want: payment.StatusCancelled, wantOK: true},
		{raw: "cancelled", want: payment.StatusCancelled, wantOK: true},
		{raw: "timeout", want: payment.StatusTimeout, wantOK: true},
		{raw: "", wantOK: false},
		{raw: "AWAITING_PIN", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := payment.ParseUpstreamStatus(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallbackStatus(t *testing.T) {
	type testCase struct {
		name string
		body string
		want payment.Status
	}

	tests := []testCase{
		{name: "Completed", body: `{"status":"completed"}`, want: payment.StatusCompleted},
		{name: "SuccessUppercase", body: `{"status":"SUCCESS"}`, want: payment.StatusCompleted},
		{name: "State4", body: `{"state":4}`, want: payment.StatusCompleted},
		{name: "State4AsString", body: `{"state":"4"}`, want: payment.StatusCompleted},
		{name: "Failed", body: `{"status":"failed"}`, want: payment.StatusFailed},
		{name: "Cancelled", body: `{"status":"cancelled"}`, want: payment.StatusFailed},
		{name: "State5", body: `{"state":5}`, want: payment.StatusFailed},
		{name: "StateWinsOverUnknownStatus", body: `{"status":"done","state":4}`, want: payment.StatusCompleted},
		{name: "OtherState", body: `{"state":2}`, want: payment.StatusProcessing},
		{name: "Empty", body: `{}`, want: payment.StatusProcessing},
		{name: "Timeout", body: `{"status":"timeout"}`, want: payment.StatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			require.NoError(t, json.Unmarshal([]byte(tt.body), &body))

			assert.Equal(t, tt.want, payment.CallbackStatus(body))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, payment.StatusPending.Terminal())
	assert.False(t, payment.StatusProcessing.Terminal())

	for _, s := range payment.TerminalStatuses {
		assert.True(t, s.Terminal(), s)
	}
}
