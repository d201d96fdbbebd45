package security

import (
	"errors"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
)

// Claims defines the JWT claims for an authenticated principal.
//
// FranchiseeID/MerchantID carry the scope the principal operates under and
// are zero for roles that have no such scope.
type Claims struct {
	UserID       uint64      `json:"user_id"`
	Username     string      `json:"username"`
	Role         models.Role `json:"role"`
	FranchiseeID uint64      `json:"franchisee_id,omitempty"`
	MerchantID   uint64      `json:"merchant_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a principal JWT with the configured expiry.
func GenerateToken(secret string, user models.User, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	if user.FranchiseeID != nil {
		claims.FranchiseeID = *user.FranchiseeID
	}
	if user.MerchantID != nil {
		claims.MerchantID = *user.MerchantID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a principal JWT and returns its claims.
func ParseToken(secret string, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
