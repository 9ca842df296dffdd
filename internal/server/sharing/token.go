// Package sharing issues signed links that let a viewer read newsletters
// at one visibility tier.
package sharing

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the owner of the timeline and the tier the holder views
// it with.
type Claims struct {
	jwt.RegisteredClaims
	UserID string          `json:"uid"`
	Tier   visibility.Tier `json:"tier"`
}

func IssueToken(userID string, tier visibility.Tier, secretKey []byte, validity time.Duration) (string, error) {
	tier, err := visibility.ParseTier(string(tier))
	if err != nil {
		return "", err
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		UserID: userID,
		Tier:   tier,
	})
	return token.SignedString(secretKey)
}

// ParseToken verifies tokenString. Expiry maps to common.ErrTokenExpired,
// every other failure to common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// Category is the single-tier audience a token grants.
func (c *Claims) Category() visibility.Category {
	return visibility.Category{Tier: c.Tier}
}
