package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/momopay/internal/metrics"
)

// CallbackEndpoint is the audit-log endpoint name of inbound gateway callbacks.
const CallbackEndpoint = "/callback"

var callbackAck = json.RawMessage(`{"received":true}`)

// CheckStatus returns the stored transaction. When the gateway id is known and
// the transaction is not settled, the status is refreshed from the gateway on a
// best-effort basis: any refresh error is logged and the stored row returned.
func (s *Service) CheckStatus(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, wrapRead(err)
	}

	if tx.Status.Terminal() || tx.UpstreamTransactionID == nil || *tx.UpstreamTransactionID == "" {
		return tx, nil
	}

	refreshed, err := s.refresh(ctx, tx)
	if err != nil {
		slog.Warn("status refresh failed", "transaction_id", tx.ID, "error", err)

		if errors.Is(err, ErrTerminal) {
			return s.current(ctx, tx), nil
		}

		return tx, nil
	}

	return refreshed, nil
}

func (s *Service) refresh(ctx context.Context, tx *Transaction) (*Transaction, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}

	raw, err := s.gateway.QueryStatus(ctx, token, *tx.UpstreamTransactionID)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			s.tokens.Invalidate()
		}

		return nil, fmt.Errorf("querying gateway: %w", err)
	}

	reported, ok := ParseUpstreamStatus(lookupString(decodeObject(raw), s.opts.StatusFields))
	if !ok || !advances(tx.Status, reported) {
		return tx, nil
	}

	updated, err := s.repo.UpdateTransaction(ctx, tx.ID, Patch{
		Status:           &reported,
		UpstreamResponse: mergeObjects(tx.UpstreamResponse, raw),
	})
	if err != nil {
		return nil, fmt.Errorf("storing refreshed status: %w", err)
	}

	metrics.StatusTransitions.WithLabelValues(string(updated.Status), "poll").Inc()

	return updated, nil
}

// HandleCallback records an inbound gateway notification and applies it to the
// transaction it references. ErrNotFound means no transaction matched.
func (s *Service) HandleCallback(ctx context.Context, payload json.RawMessage) (*Transaction, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decoding callback: %w", err)
	}

	if body == nil {
		body = map[string]any{}
	}

	s.appendLog(ctx, &APILogEntry{
		Endpoint:     CallbackEndpoint,
		RequestData:  payload,
		ResponseData: callbackAck,
		StatusCode:   http.StatusOK,
	})

	tx, err := s.resolveCallback(ctx, body)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.Callbacks.WithLabelValues("false").Inc()
		}

		return nil, err
	}

	metrics.Callbacks.WithLabelValues("true").Inc()

	if tx.Status.Terminal() {
		slog.Info("callback ignored for settled transaction", "transaction_id", tx.ID, "status", tx.Status)
		return tx, nil
	}

	status := CallbackStatus(body)

	updated, err := s.repo.UpdateTransaction(ctx, tx.ID, Patch{Status: &status, UpstreamResponse: payload})
	if errors.Is(err, ErrTerminal) {
		return s.current(ctx, tx), nil
	}

	if err != nil {
		return nil, fmt.Errorf("applying callback: %w: %w", ErrPersistence, err)
	}

	if updated.Status != tx.Status {
		metrics.StatusTransitions.WithLabelValues(string(updated.Status), "callback").Inc()
	}

	slog.Info("callback applied", "transaction_id", tx.ID, "status", updated.Status)

	return updated, nil
}

// resolveCallback tries each reference field in order. A value is matched
// against the primary key first, then against the gateway's own id.
func (s *Service) resolveCallback(ctx context.Context, body map[string]any) (*Transaction, error) {
	for _, field := range callbackReferenceFields {
		ref := lookupString(body, []string{field})
		if ref == "" {
			continue
		}

		tx, err := s.lookupReference(ctx, ref)
		if err == nil {
			return tx, nil
		}

		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return nil, ErrNotFound
}

func (s *Service) lookupReference(ctx context.Context, ref string) (*Transaction, error) {
	if id, err := uuid.Parse(ref); err == nil {
		tx, err := s.repo.GetTransaction(ctx, id)
		if !errors.Is(err, ErrNotFound) {
			return tx, wrapRead(err)
		}
	}

	tx, err := s.repo.GetByUpstreamID(ctx, ref)
	if err != nil {
		return nil, wrapRead(err)
	}

	return tx, nil
}
