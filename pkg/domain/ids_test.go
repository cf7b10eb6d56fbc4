package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "medkiosk/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePatientID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParsePatientID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParsePatientID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParsePatientID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, PatientID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
func TestTypeDistinction(t *testing.T) {
	patientID := PatientID(uuid.New())
	appointmentID := AppointmentID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ PatientID = appointmentID   // compile error
	// var _ AppointmentID = patientID   // compile error

	assert.NotEqual(t, uuid.UUID(patientID), uuid.UUID(appointmentID))
}

func TestIsNil(t *testing.T) {
	assert.True(t, PatientID(uuid.Nil).IsNil())
	assert.False(t, NewPatientID().IsNil())
}

// TestJSONRoundTrip verifies IDs encode as UUID strings, not byte arrays.
func TestJSONRoundTrip(t *testing.T) {
	original := NewDeviceID()

	encoded, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"`+original.String()+`"`, string(encoded))

	var decoded DeviceID
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, original, decoded)
}
