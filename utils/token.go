package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// PrincipalKind discriminates the three token namespaces. The kind is
// embedded in the token itself so a doctor token presented on a user
// route is rejected even though all kinds share one signing key.
type PrincipalKind string

const (
	KindUser   PrincipalKind = "user"
	KindDoctor PrincipalKind = "doctor"
	KindAdmin  PrincipalKind = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer issues and verifies HS256 tokens carrying a principal id
// and a kind discriminator. Tokens carry no expiry; revocation is out
// of scope.
type TokenIssuer struct {
	secretKey []byte
}

func NewTokenIssuer(secretKey string) *TokenIssuer {
	return &TokenIssuer{secretKey: []byte(secretKey)}
}

// Issue creates a signed token for the given principal.
func (g *TokenIssuer) Issue(kind PrincipalKind, principalID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  principalID,
		"kind": string(kind),
		"iat":  time.Now().Unix(),
		"jti":  uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(g.secretKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signedToken, nil
}

// Verify parses the token, checks the signature and the kind
// discriminator, and returns the principal id.
func (g *TokenIssuer) Verify(tokenString string, expected PrincipalKind) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return g.secretKey, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	kind, ok := claims["kind"].(string)
	if !ok || kind != string(expected) {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}

	return sub, nil
}
