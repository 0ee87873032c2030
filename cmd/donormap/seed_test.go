package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/donormap/internal/domain"
)

func TestLoadFixtures(t *testing.T) {
	donors, err := loadFixtures(strings.NewReader(`
donors:
  - name: Asha
    bloodGroup: O+
    contact: 555-0101
    latitude: 12.97
    longitude: 77.59
    availability: available
    timestamp: 2025-03-01T10:00:00Z
  - name: Dev
    bloodGroup: B-
    contact: 555-0102
`))
	require.NoError(t, err)
	require.Len(t, donors, 2)

	assert.Equal(t, domain.OPos, donors[0].BloodGroup)
	require.True(t, donors[0].HasLocation())
	assert.InDelta(t, 77.59, *donors[0].Longitude, 1e-9)
	require.NotNil(t, donors[0].Timestamp)
	assert.True(t, donors[0].Timestamp.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))

	assert.False(t, donors[1].HasLocation())
	assert.Empty(t, donors[1].Availability)
}

func TestLoadFixturesRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"unknown field":   "donors:\n  - name: A\n    bloodGroup: O+\n    shoeSize: 9\n",
		"missing group":   "donors:\n  - name: A\n",
		"not yaml":        "donors: [",
		"null list entry": "donors:\n  -\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadFixtures(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, 5*time.Minute, sweepInterval(20*time.Minute))
	assert.Equal(t, time.Second, sweepInterval(2*time.Second))
}
