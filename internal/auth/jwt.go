package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier checks buyer tokens issued by the storefront's identity provider.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier accepts HS256 tokens signed with secret. An empty issuer is not checked.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Subject validates tokenStr and returns its subject claim.
func (v *Verifier) Subject(tokenStr string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims.Subject, nil
}

// Issue signs a token for subject. The payment service only verifies tokens;
// this exists for local tooling.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	signed, err := tok.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

type buyerKey struct{}

func WithBuyer(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, buyerKey{}, userID)
}

// BuyerID returns the authenticated buyer, if any.
func BuyerID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(buyerKey{}).(string)
	return v, ok && v != ""
}
