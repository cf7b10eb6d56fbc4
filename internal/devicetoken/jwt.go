// Package devicetoken issues and validates the JWTs kiosk devices present on
// every call. Tokens are obtained once through enrollment and renewed before
// expiry; the signing key never leaves the server.
package devicetoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
)

// Claims represents the JWT claims for device access tokens.
type Claims struct {
	DeviceID string `json:"device_id"`
	Clinic   string `json:"clinic,omitempty"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewService(signingKey, issuer, audience string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateDeviceToken signs a token binding the device ID for expiresIn.
func (s *Service) GenerateDeviceToken(deviceID id.DeviceID, clinic string, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DeviceID: deviceID.String(),
		Clinic:   clinic,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateToken parses and verifies a device token, returning the device ID.
func (s *Service) ValidateToken(tokenString string) (id.DeviceID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.DeviceID{}, dErrors.New(dErrors.CodeUnauthorized, "device token expired")
		}
		return id.DeviceID{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid device token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.DeviceID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid device token claims")
	}

	deviceID, err := id.ParseDeviceID(claims.DeviceID)
	if err != nil {
		return id.DeviceID{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "malformed device id in token")
	}
	return deviceID, nil
}
