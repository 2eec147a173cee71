package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vetclinic/sitemedia/pkg/middleware"
)

// ErrMissingSubject is returned for tokens that carry no subject.
var ErrMissingSubject = errors.New("token has no subject")

// Claims represents the JWT claims of a staff access token.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator verifies HS256 access tokens issued by the clinic's
// account service.
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator creates a validator for tokens signed with secret.
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// Validate parses and validates a token string. It satisfies
// middleware.TokenValidator.
func (v *TokenValidator) Validate(tokenString string) (*middleware.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return &middleware.Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Role:    claims.Role,
	}, nil
}

// Sign issues a token for subject. It is used by tooling and tests that
// need a token the validator accepts.
func (v *TokenValidator) Sign(subject, email, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
