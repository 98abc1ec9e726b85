// Package jwttoken validates access tokens issued by the external identity
// service. Issuance and role administration live outside this process; the
// core only needs to know who is calling and in what role.
package jwttoken

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	dErrors "timeclock/pkg/errors"
)

// Claims are the token claims the attendance core consumes.
type Claims struct {
	SubjectID int64  `json:"subject_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Validator parses and verifies HMAC-signed access tokens.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
