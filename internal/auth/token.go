// Package auth issues and verifies the HS256 access tokens the API expects
// in the Authorization header. Users are authenticated elsewhere; the token
// only carries who they are.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"frameline/api/internal/util"
)

type Claims struct {
	Sub  string
	Name string
	JTI  string
	Exp  time.Time
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// IssueToken signs a token for sub valid for ttl.
func IssueToken(secret []byte, sub, name string, ttl time.Duration) (string, Claims, error) {
	if len(secret) == 0 {
		return "", Claims{}, errors.New("jwt secret not configured")
	}
	if strings.TrimSpace(sub) == "" {
		return "", Claims{}, fmt.Errorf("%w: subject required", ErrInvalidToken)
	}
	now := time.Now()
	claims := Claims{Sub: sub, Name: name, JTI: util.NewID("tok"), Exp: now.Add(ttl).Truncate(time.Second)}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Sub,
			ID:        claims.JTI,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(claims.Exp),
		},
		Name: name,
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

func ParseToken(secret []byte, raw string) (Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	parsed := &tokenClaims{}
	token, err := parser.ParseWithClaims(raw, parsed, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Claims{}, ErrExpiredToken
	}
	if err != nil || !token.Valid || parsed.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{
		Sub:  parsed.Subject,
		Name: parsed.Name,
		JTI:  parsed.ID,
		Exp:  parsed.ExpiresAt.Time,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
