// Package auth issues and validates device tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid device token")

// Claims identify a device; the device id is the token subject.
type Claims struct {
	DeviceID string `json:"deviceId"`
	jwt.RegisteredClaims
}

type DeviceAuth struct {
	secret []byte
}

// NewDeviceAuth returns nil for an empty secret, meaning auth is disabled.
func NewDeviceAuth(secret string) *DeviceAuth {
	if secret == "" {
		return nil
	}
	return &DeviceAuth{secret: []byte(secret)}
}

// Issue signs an HS256 token for deviceID. ttl <= 0 issues a token that never
// expires.
func (a *DeviceAuth) Issue(deviceID string, ttl time.Duration) (string, error) {
	if deviceID == "" {
		return "", errors.New("device id required")
	}
	now := time.Now()
	claims := &Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Subject:  deviceID,
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *DeviceAuth) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
