package devicetoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
)

func TestDeviceTokenRoundTrip(t *testing.T) {
	svc := NewService("test-signing-key", "medkiosk", "kiosk")
	deviceID := id.NewDeviceID()

	token, err := svc.GenerateDeviceToken(deviceID, "downtown", time.Hour)
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, deviceID, got)
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := NewService("test-signing-key", "medkiosk", "kiosk")

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.GenerateDeviceToken(id.NewDeviceID(), "", -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewService("other-key", "medkiosk", "kiosk")
		token, err := other.GenerateDeviceToken(id.NewDeviceID(), "", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.jwt")
		require.Error(t, err)
	})
}

func TestEnrollmentSecret(t *testing.T) {
	hash, err := HashEnrollmentSecret("front-desk-secret")
	require.NoError(t, err)

	assert.NoError(t, VerifyEnrollmentSecret("front-desk-secret", hash))

	err = VerifyEnrollmentSecret("wrong", hash)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
