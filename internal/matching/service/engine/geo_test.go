package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	t.Run("one degree of longitude at the equator", func(t *testing.T) {
		got := haversineKm(0, 0, 0, 1)
		assert.InDelta(t, 111.19, got, 0.5)
	})

	t.Run("zero distance for identical points", func(t *testing.T) {
		got := haversineKm(12.9716, 77.5946, 12.9716, 77.5946)
		assert.InDelta(t, 0, got, 0.001)
	})
}

func TestDistanceKm(t *testing.T) {
	lat, lng := 0.0, 1.0

	t.Run("missing coordinates yield the sentinel", func(t *testing.T) {
		assert.EqualValues(t, unknownDistanceKm, distanceKm(nil, nil, &lat, &lng))
		assert.EqualValues(t, unknownDistanceKm, distanceKm(&lat, &lng, nil, nil))
		assert.EqualValues(t, unknownDistanceKm, distanceKm(&lat, nil, &lat, &lng))
	})

	t.Run("full coordinates compute haversine", func(t *testing.T) {
		zero := 0.0
		got := distanceKm(&zero, &zero, &lat, &lng)
		assert.InDelta(t, 111.19, got, 0.5)
	})
}
