package security

import (
	"regexp"
	"testing"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"

	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	req := require.New(t)
	ti := NewTokenIssuer(secret, "foodfortalk", "talk", time.Hour, 0)

	tok, err := ti.Issue("u1", time.Now())
	req.NoError(err)

	id, err := ti.Verify(tok)
	req.NoError(err)
	req.Equal("u1", id)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	ti := NewTokenIssuer(secret, "foodfortalk", "talk", time.Hour, 0)
	expired, err := ti.Issue("u1", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	otherKey, err := NewTokenIssuer("ffffffffffffffffffffffffffffffff", "foodfortalk", "talk", time.Hour, 0).
		Issue("u1", time.Now())
	require.NoError(t, err)

	otherIssuer, err := NewTokenIssuer(secret, "someone-else", "talk", time.Hour, 0).Issue("u1", time.Now())
	require.NoError(t, err)

	badSubject, err := ti.Issue("has-dash", time.Now())
	require.NoError(t, err)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"bad subject":  badSubject,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ti.Verify(tok)
			require.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestNewPasskey(t *testing.T) {
	req := require.New(t)
	plain, hash, err := NewPasskey()
	req.NoError(err)
	req.Regexp(regexp.MustCompile(`^[A-Z2-9]{5}-[A-Z2-9]{5}$`), plain)
	req.NotContains(hash, plain)

	req.True(ComparePasskey(hash, plain))
	req.True(ComparePasskey(hash, " "+plain+" "))
	req.False(ComparePasskey(hash, "AAAAA-AAAAA"))

	other, _, err := NewPasskey()
	req.NoError(err)
	req.NotEqual(plain, other)
}

func TestEqualSecret(t *testing.T) {
	require.True(t, EqualSecret("admin", "admin"))
	require.False(t, EqualSecret("admin", "admin2"))
	require.False(t, EqualSecret("admin", ""))
}
