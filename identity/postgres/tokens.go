package postgres

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "alo-secondary"

// tokenSigner issues and verifies the HS256 session tokens of the secondary provider.
type tokenSigner struct {
	secret  []byte
	expiry  time.Duration
	nowTime func() time.Time
}

func (s tokenSigner) create(identityID, email string) (string, error) {
	now := s.nowTime()
	claims := jwtlib.MapClaims{
		"iss":   tokenIssuer,
		"sub":   identityID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.expiry).Unix(),
		"jti":   uuid.New().String(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// subject validates token and returns the identity id it was issued for.
func (s tokenSigner) subject(token string) (string, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.nowTime),
	)
	if err != nil {
		return "", err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("session token has no subject")
	}
	return sub, nil
}
