package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthToken_VerifyToken(t *testing.T) {
	key := []byte("f53ac685bbceebd75043e6be2e06ee07")
	at := NewAuthToken(key)

	valid, err := at.CreateToken(&models.TokenPayload{UserID: 7, UserName: "budi", Role: models.RoleAdmin})
	require.NoError(t, err)

	expired := &AuthToken{key: key, ttl: -time.Minute}
	expiredToken, err := expired.CreateToken(&models.TokenPayload{UserID: 7})
	require.NoError(t, err)

	otherKey, err := NewAuthToken([]byte("another")).CreateToken(&models.TokenPayload{UserID: 7})
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{UserID: 7, Role: "root"}).SignedString(key)
	require.NoError(t, err)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{UserID: 9}).SignedString(key)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    *models.TokenPayload
		wantErr bool
	}{
		{
			name:  "valid_token",
			token: valid,
			want:  &models.TokenPayload{UserID: 7, UserName: "budi", Role: models.RoleAdmin},
		},
		{
			name:  "missing_role_defaults_to_user",
			token: noRole,
			want:  &models.TokenPayload{UserID: 9, Role: models.RoleUser},
		},
		{
			name:    "expired_token",
			token:   expiredToken,
			wantErr: true,
		},
		{
			name:    "wrong_key",
			token:   otherKey,
			wantErr: true,
		},
		{
			name:    "unknown_role",
			token:   badRole,
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not.a.token",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := at.VerifyToken(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
