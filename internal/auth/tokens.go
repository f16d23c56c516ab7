package auth

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/debemdeboas/war-room/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "war-room"

type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies EdDSA access tokens. The jti claim names the backing session.
type TokenIssuer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	now  func() time.Time
}

func NewTokenIssuer(priv ed25519.PrivateKey, pub ed25519.PublicKey) *TokenIssuer {
	return &TokenIssuer{priv: priv, pub: pub, now: time.Now}
}

func (t *TokenIssuer) Issue(userID model.UserID, sessionID string, expiresAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   string(userID),
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(t.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(t.priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return t.pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
