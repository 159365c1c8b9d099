// Package auth hashes passwords and issues and validates the bearer tokens that
// carry a caller's household binding.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"menu-planner/internal/domain"
)

// TokenTTL is the lifetime of issued tokens.
const TokenTTL = 48 * time.Hour

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// KeyProvider supplies the HMAC signing key.
type KeyProvider interface {
	Value(ctx context.Context) (string, error)
}

// StaticKey is a KeyProvider for a key known at startup.
type StaticKey string

func (k StaticKey) Value(context.Context) (string, error) {
	if k == "" {
		return "", errors.New("auth: static key is empty")
	}
	return string(k), nil
}

// Claims are the JWT claims issued to authenticated users.
type Claims struct {
	jwt.RegisteredClaims
	Email        string `json:"email,omitempty"`
	Household    string `json:"household,omitempty"`
	HouseholdKey string `json:"household_key"`
}

type Issuer struct {
	keys     KeyProvider
	issuer   string
	audience string
	ttl      time.Duration
}

var now = time.Now

func NewIssuer(keys KeyProvider, issuer, audience string) (*Issuer, error) {
	if keys == nil {
		return nil, errors.New("auth: key provider must not be nil")
	}
	issuer = strings.TrimSpace(issuer)
	audience = strings.TrimSpace(audience)
	if issuer == "" || audience == "" {
		return nil, errors.New("auth: issuer and audience must not be empty")
	}
	return &Issuer{keys: keys, issuer: issuer, audience: audience, ttl: TokenTTL}, nil
}

// Issue signs an HS256 token for id.
func (i *Issuer) Issue(ctx context.Context, id domain.Identity) (string, error) {
	if id.Username == "" || id.HouseholdKey == "" {
		return "", errors.New("auth: identity requires username and household key")
	}
	key, err := i.keys.Value(ctx)
	if err != nil {
		return "", fmt.Errorf("auth: load signing key: %w", err)
	}

	issuedAt := now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.ttl)),
		},
		Email:        id.Email,
		Household:    id.Household,
		HouseholdKey: id.HouseholdKey,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, issuer, audience and expiry, and requires the
// subject and household key claims.
func (i *Issuer) Validate(ctx context.Context, token string) (domain.Identity, error) {
	key, err := i.keys.Value(ctx)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("auth: load signing key: %w", err)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(key), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	if claims.HouseholdKey == "" {
		return domain.Identity{}, fmt.Errorf("%w: household binding is required", ErrInvalidToken)
	}

	return domain.Identity{
		Username:     claims.Subject,
		Email:        claims.Email,
		Household:    claims.Household,
		HouseholdKey: claims.HouseholdKey,
	}, nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	if !ok || id.HouseholdKey == "" {
		return domain.Identity{}, false
	}
	return id, true
}
