package auth

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"rehla/internal/platform/middleware"
	dErrors "rehla/pkg/domainerrors"
)

// Claims are the claims the CMS puts in its user tokens.
type Claims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

var errNoSigningKey = errors.New("no signing key configured")

// Validator verifies CMS-issued HS256 tokens with the shared JWT secret.
type Validator struct {
	signingKey []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{signingKey: []byte(secret)}
}

// Parse returns the verified claims of tokenString.
func (v *Validator) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if len(v.signingKey) == 0 {
			return nil, errNoSigningKey
		}
		return v.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidateToken implements middleware.TokenValidator.
func (v *Validator) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := v.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{UserID: strconv.FormatInt(claims.UserID, 10)}, nil
}
