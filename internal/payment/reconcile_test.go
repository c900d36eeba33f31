package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/momopay/internal/payment"
)

func processing() *payment.Transaction {
	return &payment.Transaction{
		ID:                    txID,
		Status:                payment.StatusProcessing,
		UpstreamTransactionID: new("UP123"),
		UpstreamResponse:      json.RawMessage(`{"transaction_id":"UP123","status":"pending","fee":10}`),
	}
}

func TestService_CheckStatus(t *testing.T) {
	type testCase struct {
		name       string
		setupMock  func(m mocks)
		wantStatus payment.Status
		wantErr    error
	}

	tests := []testCase{
		{
			name: "NotFound",
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(nil, payment.ErrNotFound)
			},
			wantErr: payment.ErrNotFound,
		},
		{
			name: "ReadFails",
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(nil, errors.New("connection reset"))
			},
			wantErr: payment.ErrPersistence,
		},
		{
			name: "TerminalIsNotRefreshed",
			setupMock: func(m mocks) {
				tx := processing()
				tx.Status = payment.StatusCompleted
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(tx, nil)
			},
			wantStatus: payment.StatusCompleted,
		},
		{
			name: "NoUpstreamIDIsNotRefreshed",
			setupMock: func(m mocks) {
				tx := processing()
				tx.Status = payment.StatusPending
				tx.UpstreamTransactionID = nil
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(tx, nil)
			},
			wantStatus: payment.StatusPending,
		},
		{
			name: "UnchangedStatusIsNotWritten",
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				m.tokens.EXPECT().Token(gomock.Any()).Return("tok", nil)
				m.gateway.EXPECT().QueryStatus(gomock.Any(), "tok", "UP123").Return(json.RawMessage(`{"status":"processing"}`), nil)
			},
			wantStatus: payment.StatusProcessing,
		},
		{
			name: "BackwardStatusIsNotWritten",
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				m.tokens.EXPECT().Token(gomock.Any()).Return("tok", nil)
				m.gateway.EXPECT().QueryStatus(gomock.Any(), "tok", "UP123").Return(json.RawMessage(`{"status":"pending"}`), nil)
			},
			wantStatus: payment.StatusProcessing,
		},
		{
			name: "UnknownStatusIsNotWritten",
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				m.tokens.EXPECT().Token(gomock.Any()).Return("tok", nil)
				m.gateway.EXPECT().QueryStatus(gomock.Any(), "tok", "UP123").Return(json.RawMessage(`{"status":"AWAITING_PIN"}`), nil)
			},
			wantStatus: payment.StatusProcessing,
		},
		{
			name: "CompletedIsStoredWithMergedResponse",
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				m.tokens.EXPECT().Token(gomock.Any()).Return("tok", nil)
				m.gateway.EXPECT().QueryStatus(gomock.Any(), "tok", "UP123").Return(json.RawMessage(`{"status":"completed","paid_at":"2024-03-01T12:00:00Z"}`), nil)
				expectUpdate(m, *processing(), func(p payment.Patch) {
					require.NotNil(t, p.Status)
					assert.Equal(t, payment.StatusCompleted, *p.Status)
					assert.Nil(t, p.UpstreamTransactionID)
					assert.JSONEq(t,
						`{"transaction_id":"UP123","status":"completed","fee":10,"paid_at":"2024-03-01T12:00:00Z"}`,
						string(p.UpstreamResponse))
				})
			},
			wantStatus: payment.StatusCompleted,
		},
		{
			name: "GatewayErrorReturnsStoredRow",
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				m.tokens.EXPECT().Token(gomock.Any()).Return("tok", nil)
				m.gateway.EXPECT().QueryStatus(gomock.Any(), "tok", "UP123").Return(nil, payment.ErrGateway)
			},
			wantStatus: payment.StatusProcessing,
		},
		{
			name: "GatewayUnauthorizedDropsToken",
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				m.tokens.EXPECT().Token(gomock.Any()).Return("tok", nil)
				m.gateway.EXPECT().QueryStatus(gomock.Any(), "tok", "UP123").Return(nil, errors.Join(payment.ErrGateway, payment.ErrAuth))
				m.tokens.EXPECT().Invalidate()
			},
			wantStatus: payment.StatusProcessing,
		},
		{
			name: "TokenErrorReturnsStoredRow",
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				m.tokens.EXPECT().Token(gomock.Any()).Return("", payment.ErrAuth)
			},
			wantStatus: payment.StatusProcessing,
		},
		{
			name: "CallbackWinsRace",
			setupMock: func(m mocks) {
				settled := processing()
				settled.Status = payment.StatusFailed

				gomock.InOrder(
					m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil),
					m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(settled, nil),
				)
				m.tokens.EXPECT().Token(gomock.Any()).Return("tok", nil)
				m.gateway.EXPECT().QueryStatus(gomock.Any(), "tok", "UP123").Return(json.RawMessage(`{"status":"completed"}`), nil)
				m.repo.EXPECT().UpdateTransaction(gomock.Any(), txID, gomock.Any()).Return(nil, payment.ErrTerminal)
			},
			wantStatus: payment.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			got, err := svc.CheckStatus(context.Background(), txID)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestService_CheckStatus_Idempotent(t *testing.T) {
	svc, m := newService(t)

	settled := processing()
	settled.Status = payment.StatusCompleted

	m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(settled, nil).Times(3)

	for range 3 {
		got, err := svc.CheckStatus(context.Background(), txID)
		require.NoError(t, err)
		assert.Equal(t, settled, got)
	}
}

func TestService_HandleCallback(t *testing.T) {
	type testCase struct {
		name       string
		payload    string
		setupMock  func(m mocks)
		wantStatus payment.Status
		wantErr    error
	}

	tests := []testCase{
		{
			name:    "ReferenceIsPrimaryKey",
			payload: `{"reference":"` + txID.String() + `","status":"success"}`,
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				expectUpdate(m, *processing(), func(p payment.Patch) {
					assert.Equal(t, payment.StatusCompleted, *p.Status)
				})
			},
			wantStatus: payment.StatusCompleted,
		},
		{
			name:    "OnlyUpstreamTransactionID",
			payload: `{"transaction_id":"UP123","status":"completed"}`,
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetByUpstreamID(gomock.Any(), "UP123").Return(processing(), nil)
				expectUpdate(m, *processing(), nil)
			},
			wantStatus: payment.StatusCompleted,
		},
		{
			name:    "NumericFailedState",
			payload: `{"id":"UP123","state":5}`,
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetByUpstreamID(gomock.Any(), "UP123").Return(processing(), nil)
				expectUpdate(m, *processing(), nil)
			},
			wantStatus: payment.StatusFailed,
		},
		{
			name:    "CancelledMapsToFailed",
			payload: `{"reference":"` + txID.String() + `","status":"cancelled"}`,
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				expectUpdate(m, *processing(), nil)
			},
			wantStatus: payment.StatusFailed,
		},
		{
			name:    "UnknownStatusStaysProcessing",
			payload: `{"reference":"` + txID.String() + `","status":"initiated"}`,
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil)
				expectUpdate(m, *processing(), func(p payment.Patch) {
					assert.JSONEq(t, `{"reference":"`+txID.String()+`","status":"initiated"}`, string(p.UpstreamResponse))
				})
			},
			wantStatus: payment.StatusProcessing,
		},
		{
			name:    "UUIDNotStoredFallsBackToUpstreamID",
			payload: `{"reference":"` + txID.String() + `","status":"success"}`,
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(nil, payment.ErrNotFound)
				m.repo.EXPECT().GetByUpstreamID(gomock.Any(), txID.String()).Return(processing(), nil)
				expectUpdate(m, *processing(), nil)
			},
			wantStatus: payment.StatusCompleted,
		},
		{
			name:    "TerminalIsNotOverwritten",
			payload: `{"reference":"` + txID.String() + `","status":"failed"}`,
			setupMock: func(m mocks) {
				settled := processing()
				settled.Status = payment.StatusCompleted
				m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(settled, nil)
			},
			wantStatus: payment.StatusCompleted,
		},
		{
			name:    "ConcurrentTerminalWrite",
			payload: `{"reference":"` + txID.String() + `","status":"failed"}`,
			setupMock: func(m mocks) {
				settled := processing()
				settled.Status = payment.StatusCompleted

				gomock.InOrder(
					m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(processing(), nil),
					m.repo.EXPECT().GetTransaction(gomock.Any(), txID).Return(settled, nil),
				)
				m.repo.EXPECT().UpdateTransaction(gomock.Any(), txID, gomock.Any()).Return(nil, payment.ErrTerminal)
			},
			wantStatus: payment.StatusCompleted,
		},
		{
			name:    "Unmatched",
			payload: `{"reference":"nope","transaction_id":"UP999"}`,
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetByUpstreamID(gomock.Any(), "nope").Return(nil, payment.ErrNotFound)
				m.repo.EXPECT().GetByUpstreamID(gomock.Any(), "UP999").Return(nil, payment.ErrNotFound)
			},
			wantErr: payment.ErrNotFound,
		},
		{
			name:      "NoReference",
			payload:   `{"status":"success"}`,
			setupMock: func(mocks) {},
			wantErr:   payment.ErrNotFound,
		},
		{
			name:    "LookupFails",
			payload: `{"transaction_id":"UP123"}`,
			setupMock: func(m mocks) {
				m.repo.EXPECT().GetByUpstreamID(gomock.Any(), "UP123").Return(nil, errors.New("connection reset"))
			},
			wantErr: payment.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)

			m.repo.EXPECT().
				AppendLog(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, e *payment.APILogEntry) error {
					assert.Equal(t, payment.CallbackEndpoint, e.Endpoint)
					assert.JSONEq(t, tt.payload, string(e.RequestData))
					assert.Equal(t, 200, e.StatusCode)
					assert.Nil(t, e.TransactionID)

					return nil
				})
			tt.setupMock(m)

			got, err := svc.HandleCallback(context.Background(), json.RawMessage(tt.payload))

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestService_HandleCallback_InvalidJSON(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.HandleCallback(context.Background(), json.RawMessage(`not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, payment.ErrNotFound)
}

func TestService_HandleCallback_AuditLogFailureIsIgnored(t *testing.T) {
	svc, m := newService(t)

	m.repo.EXPECT().AppendLog(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	m.repo.EXPECT().GetByUpstreamID(gomock.Any(), "UP123").Return(processing(), nil)
	expectUpdate(m, *processing(), nil)

	got, err := svc.HandleCallback(context.Background(), json.RawMessage(`{"transaction_id":"UP123","state":4}`))
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got.Status)
}
