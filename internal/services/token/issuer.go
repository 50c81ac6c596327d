package token

import (
	"crypto/sha256"
	"fmt"
	"net/netip"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer signs new game-server bearer tokens. Used by the keygen CLI and by
// tests; the server itself only validates.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
}

// NewIssuer creates an Issuer with the given signing secret and claim values
func NewIssuer(secret []byte, issuer, audience string) *Issuer {
	return &Issuer{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
	}
}

// Issue signs a token for the given game server and returns the token string
// together with its SHA-256 digest. The digest is what gets provisioned into
// the credential store; the raw token is only ever printed once.
func (i *Issuer) Issue(addr netip.Addr, port int, issuedAt, expiresAt time.Time) (string, [sha256.Size]byte, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Audience:  jwt.ClaimStrings{i.audience},
		Subject:   fmt.Sprintf("%s:%d", addr, port),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", [sha256.Size]byte{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, Digest(signed), nil
}

// Digest returns the SHA-256 digest of a raw token string, the format stored
// in the credential store
func Digest(tokenString string) [sha256.Size]byte {
	return sha256.Sum256([]byte(tokenString))
}
