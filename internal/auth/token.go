package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rookgm/kopisort/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

const defaultTokenTTL = 24 * time.Hour

type claims struct {
	jwt.RegisteredClaims
	UserID   uint64      `json:"user_id"`
	UserName string      `json:"user_name"`
	Role     models.Role `json:"role"`
}

// AuthToken signs and verifies HS256 bearer tokens
type AuthToken struct {
	key []byte
	ttl time.Duration
}

// NewAuthToken creates new AuthToken instance
func NewAuthToken(key []byte) *AuthToken {
	return &AuthToken{
		key: key,
		ttl: defaultTokenTTL,
	}
}

// CreateToken issues token for principal
func (at *AuthToken) CreateToken(payload *models.TokenPayload) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(payload.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(at.ttl)),
		},
		UserID:   payload.UserID,
		UserName: payload.UserName,
		Role:     payload.Role,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(at.key)
}

// VerifyToken parses token string and returns its payload
func (at *AuthToken) VerifyToken(tokenString string) (*models.TokenPayload, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return at.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	role := c.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, ErrInvalidToken
	}

	return &models.TokenPayload{
		UserID:   c.UserID,
		UserName: c.UserName,
		Role:     role,
	}, nil
}
