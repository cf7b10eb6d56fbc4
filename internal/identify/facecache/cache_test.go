package facecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medkiosk/internal/identify/models"
	id "medkiosk/pkg/domain"
)

func sampleMatches() []models.PatientMatch {
	return []models.PatientMatch{{PatientID: id.NewPatientID(), FullName: "Test Patient", Confidence: 0.92}}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(10, time.Minute)
	now := time.Now()

	c.Put("k1", sampleMatches(), now)

	_, ok := c.Get("k1", now.Add(30*time.Second))
	assert.True(t, ok)

	_, ok = c.Get("k1", now.Add(2*time.Minute))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry removed on read")
}

func TestCache_BoundedSize(t *testing.T) {
	c := New(2, time.Hour)
	now := time.Now()

	c.Put("a", sampleMatches(), now)
	c.Put("b", sampleMatches(), now.Add(time.Second))
	c.Put("c", sampleMatches(), now.Add(2*time.Second))

	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("a", now.Add(3*time.Second))
	assert.False(t, ok, "oldest entry evicted at capacity")

	_, ok = c.Get("c", now.Add(3*time.Second))
	assert.True(t, ok)
}

func TestKey_Deterministic(t *testing.T) {
	s := models.BiometricSample{Data: []byte{1, 2, 3}}
	assert.Equal(t, Key(s), Key(s))
	assert.NotEqual(t, Key(s), Key(models.BiometricSample{Data: []byte{4, 5, 6}}))
}
