package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"io"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// passkeyAlphabet leaves out look-alike characters (0/O, 1/I/L).
const (
	passkeyAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	passkeyGroup    = 5
	passkeyGroups   = 2
)

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	return b, err
}

// NewPasskey returns a check-in passkey such as "K7QXM-3RTPA" and its bcrypt
// hash. Only the hash is meant to be stored.
func NewPasskey() (plain, hash string, err error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(passkeyAlphabet)))
	for g := 0; g < passkeyGroups; g++ {
		if g > 0 {
			sb.WriteByte('-')
		}
		for i := 0; i < passkeyGroup; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", "", err
			}
			sb.WriteByte(passkeyAlphabet[n.Int64()])
		}
	}
	plain = sb.String()
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return plain, string(h), nil
}

// ComparePasskey reports whether plain matches hash. Input is normalized to
// upper case so attendees can type it either way.
func ComparePasskey(hash, plain string) bool {
	plain = strings.ToUpper(strings.TrimSpace(plain))
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// EqualSecret compares two secrets in constant time.
func EqualSecret(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
