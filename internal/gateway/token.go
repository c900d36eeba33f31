package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrJamesThe3rd/momopay/internal/metrics"
	"github.com/MrJamesThe3rd/momopay/internal/payment"
)

//go:generate mockgen -source=token.go -destination=token_mock.go -package=gateway
type TokenFetcher interface {
	FetchToken(ctx context.Context) (*Token, error)
}

// TokenCache holds one access token and refreshes it when it expires.
// Concurrent refreshes collapse into a single upstream call.
type TokenCache struct {
	fetcher    TokenFetcher
	margin     time.Duration
	defaultTTL time.Duration
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewTokenCache caches tokens for their advertised lifetime minus margin.
// defaultTTL applies when the provider does not say how long a token lives.
func NewTokenCache(fetcher TokenFetcher, margin, defaultTTL time.Duration) *TokenCache {
	return &TokenCache{
		fetcher:    fetcher,
		margin:     margin,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Token returns the cached token, fetching a new one when absent or expired.
// Errors wrap payment.ErrAuth.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		if tok, ok := c.cached(); ok {
			return tok, nil
		}

		// Shared by every waiter, so one caller giving up must not fail the rest.
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", payment.ErrAuth, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.expiresAt = time.Time{}
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}

	return c.token, true
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	tok, err := c.fetcher.FetchToken(ctx)
	if err != nil {
		metrics.TokenFetches.WithLabelValues("error").Inc()

		if !errors.Is(err, payment.ErrAuth) {
			err = fmt.Errorf("%w: %w", payment.ErrAuth, err)
		}

		return "", err
	}

	metrics.TokenFetches.WithLabelValues("success").Inc()

	ttl := tok.ExpiresIn
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = tok.AccessToken
	c.expiresAt = c.now().Add(ttl - c.margin)

	return tok.AccessToken, nil
}
