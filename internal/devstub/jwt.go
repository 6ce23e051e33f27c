package devstub

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aromahaus/storefront-client/pkg/config"
	pkgerrors "github.com/aromahaus/storefront-client/pkg/errors"
)

type tokenMinter struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func newTokenMinter(cfg config.StubConfig) *tokenMinter {
	ttl := cfg.TokenTTL()
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &tokenMinter{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    ttl,
	}
}

func (m *tokenMinter) mint(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// subjectOf verifies the token and returns its subject.
func (m *tokenMinter) subjectOf(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no subject")
	}
	return claims.Subject, nil
}
