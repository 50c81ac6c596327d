package token

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avikko/gsproxy/internal/dependencies/clock"
	"github.com/avikko/gsproxy/internal/model"
)

// Validator decodes and structurally validates bearer tokens. It performs no
// I/O; everything it needs arrives at construction.
type Validator struct {
	secret   []byte
	issuer   string
	audience string
	clock    clock.Clock
}

// NewValidator creates a Validator for the given signing secret and expected
// issuer/audience
func NewValidator(secret []byte, issuer, audience string, clk clock.Clock) *Validator {
	return &Validator{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		clock:    clk,
	}
}

// Validate checks the token's signature, required claims and subject format,
// and returns the claimed identity. Every failure mode returns
// model.ErrUnauthenticated so callers cannot tell the reasons apart.
func (v *Validator) Validate(tokenString string) (model.Identity, error) {
	if tokenString == "" {
		return model.Identity{}, model.ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return model.Identity{}, model.ErrUnauthenticated
	}

	id, ok := parseSubject(claims.Subject)
	if !ok {
		return model.Identity{}, model.ErrUnauthenticated
	}
	return id, nil
}

func (v *Validator) keyFunc(_ *jwt.Token) (any, error) {
	return v.secret, nil
}

// parseSubject parses a token subject of the form "<IPv4 address>:<port>".
// Anything else, including IPv6 addresses and out-of-range ports, is
// rejected.
func parseSubject(sub string) (model.Identity, bool) {
	parts := strings.Split(sub, ":")
	if len(parts) != 2 {
		return model.Identity{}, false
	}

	addr, err := netip.ParseAddr(parts[0])
	if err != nil || !addr.Is4() {
		return model.Identity{}, false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return model.Identity{}, false
	}

	return model.Identity{Address: addr, Port: port}, true
}
