package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"menu-planner/internal/domain"
)

type countingKeys struct {
	key   string
	err   error
	calls int
}

func (c *countingKeys) Value(context.Context) (string, error) {
	c.calls++
	return c.key, c.err
}

var alice = domain.Identity{
	Username:     "alice",
	Email:        "alice@example.com",
	Household:    "Meier",
	HouseholdKey: "h1",
}

func newTestIssuer(t *testing.T, key string) *Issuer {
	t.Helper()
	i, err := NewIssuer(StaticKey(key), "menu-planner", "menu-planner-web")
	require.NoError(t, err)
	return i
}

func fixNow(t *testing.T, ts time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = prev })
}

func TestNewIssuer_Validation(t *testing.T) {
	_, err := NewIssuer(nil, "i", "a")
	require.Error(t, err)
	_, err = NewIssuer(StaticKey("k"), " ", "a")
	require.Error(t, err)
	_, err = NewIssuer(StaticKey("k"), "i", "")
	require.Error(t, err)
}

func TestIssueValidate_RoundTrip(t *testing.T) {
	i := newTestIssuer(t, "test-signing-key")

	token, err := i.Issue(context.Background(), alice)
	require.NoError(t, err)

	got, err := i.Validate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, alice, got)
}

func TestIssue_ClaimsShape(t *testing.T) {
	fixNow(t, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	i := newTestIssuer(t, "test-signing-key")
	token, err := i.Issue(context.Background(), alice)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	require.Equal(t, "alice", claims["sub"])
	require.Equal(t, "h1", claims["household_key"])
	require.Equal(t, "Meier", claims["household"])
	require.Equal(t, "menu-planner", claims["iss"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), exp.UTC())
}

func TestIssue_RequiresHouseholdKey(t *testing.T) {
	i := newTestIssuer(t, "k")
	_, err := i.Issue(context.Background(), domain.Identity{Username: "alice"})
	require.Error(t, err)
}

func TestIssue_KeyProviderError(t *testing.T) {
	i, err := NewIssuer(&countingKeys{err: errors.New("ssm down")}, "i", "a")
	require.NoError(t, err)
	_, err = i.Issue(context.Background(), alice)
	require.ErrorContains(t, err, "ssm down")
}

func TestValidate_Rejects(t *testing.T) {
	i := newTestIssuer(t, "right-key")
	other := newTestIssuer(t, "wrong-key")
	foreignAudience, err := NewIssuer(StaticKey("right-key"), "menu-planner", "someone-else")
	require.NoError(t, err)

	wrongKey, err := other.Issue(context.Background(), alice)
	require.NoError(t, err)
	wrongAud, err := foreignAudience.Issue(context.Background(), alice)
	require.NoError(t, err)

	noHousehold, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "menu-planner",
			Audience:  jwt.ClaimStrings{"menu-planner-web"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("right-key"))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{HouseholdKey: "h1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":        "not-a-token",
		"wrong key":      wrongKey,
		"wrong audience": wrongAud,
		"no household":   noHousehold,
		"alg none":       noneAlg,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := i.Validate(context.Background(), token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestValidate_Expired(t *testing.T) {
	i := newTestIssuer(t, "k")
	fixNow(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	token, err := i.Issue(context.Background(), alice)
	require.NoError(t, err)

	fixNow(t, time.Date(2026, 10, 3, 0, 0, 1, 0, time.UTC))
	_, err = i.Validate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	require.False(t, ok)

	ctx := WithIdentity(context.Background(), alice)
	got, ok := IdentityFrom(ctx)
	require.True(t, ok)
	require.Equal(t, alice, got)

	_, ok = IdentityFrom(WithIdentity(context.Background(), domain.Identity{Username: "x"}))
	require.False(t, ok)
}

func TestStaticKey(t *testing.T) {
	_, err := StaticKey("").Value(context.Background())
	require.Error(t, err)
	v, err := StaticKey("k").Value(context.Background())
	require.NoError(t, err)
	require.Equal(t, "k", v)
}
