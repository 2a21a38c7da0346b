package geo_test

import (
	"math"
	"sync"
	"testing"

	"travelmate/backend/internal/geo"

	"github.com/stretchr/testify/assert"
)

func TestComputeDistance_ZeroAndSymmetric(t *testing.T) {
	assert.Equal(t, 0.0, geo.ComputeDistance(50.45, 30.52, 50.45, 30.52))

	kyivToLviv := geo.ComputeDistance(50.4501, 30.5234, 49.8397, 24.0297)
	lvivToKyiv := geo.ComputeDistance(49.8397, 24.0297, 50.4501, 30.5234)

	assert.InDelta(t, kyivToLviv, lvivToKyiv, 1e-9)
	assert.InDelta(t, 468, kyivToLviv, 5)
}

func TestComputeDistance_OneDegreeOfLatitude(t *testing.T) {
	assert.InDelta(t, 111.19, geo.ComputeDistance(0, 0, 1, 0), 0.01)
}

func TestComputeDistance_AntipodalPointsAreHalfCircumference(t *testing.T) {
	half := math.Pi * 6371.0
	for lat := -89.5; lat <= 89.5; lat += 0.5 {
		for lng := -179.75; lng <= 0; lng += 0.25 {
			d := geo.ComputeDistance(lat, lng, -lat, lng+180)
			if !assert.False(t, math.IsNaN(d), "lat=%v lng=%v", lat, lng) {
				return
			}
			assert.InDelta(t, half, d, 1)
		}
	}
}

func TestAddDistanceError_Bounds(t *testing.T) {
	f := geo.NewSeededFuzzer(42)

	tests := []struct {
		name   string
		km     float64
		lo, hi float64
	}{
		{"sub kilometre", 0.8, 0.8 * 0.5, 0.8 * 1.5},
		{"one to five", 3, 2.7, 3.3},
		{"five to ten", 7, 6.5, 7.5},
		{"ten and above", 25, 24.2, 25.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 1000; i++ {
				got := f.AddDistanceError(tt.km)
				assert.GreaterOrEqual(t, got, tt.lo)
				assert.LessOrEqual(t, got, tt.hi)
			}
		})
	}
}

func TestAddDistanceError_SubKilometreErrorIsAtLeastThirtyPercent(t *testing.T) {
	f := geo.NewSeededFuzzer(7)
	for i := 0; i < 1000; i++ {
		got := f.AddDistanceError(0.9)
		assert.GreaterOrEqual(t, math.Abs(got-0.9), 0.9*0.3-1e-9)
	}
}

func TestAddDistanceError_FlooredAtMinimum(t *testing.T) {
	f := geo.NewSeededFuzzer(1)
	for _, km := range []float64{0, 0.05, -3} {
		assert.GreaterOrEqual(t, f.AddDistanceError(km), 0.1)
	}
	assert.Equal(t, 0.1, f.AddDistanceError(0))
}

func TestAddDistanceError_SeededIsDeterministic(t *testing.T) {
	a := geo.NewSeededFuzzer(99)
	b := geo.NewSeededFuzzer(99)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.AddDistanceError(4), b.AddDistanceError(4))
	}
}

func TestFuzzy_StaysWithinRadius(t *testing.T) {
	f := geo.NewSeededFuzzer(3)
	for i := 0; i < 1000; i++ {
		lat, lng := f.Fuzzy(48.1, 11.5)
		assert.LessOrEqual(t, math.Abs(lat-48.1), 0.003)
		assert.LessOrEqual(t, math.Abs(lng-11.5), 0.003)
	}
}

func TestFuzzy_ClampsAtPole(t *testing.T) {
	f := geo.NewSeededFuzzer(5)
	for i := 0; i < 100; i++ {
		lat, _ := f.Fuzzy(90, 0)
		assert.LessOrEqual(t, lat, 90.0)
	}
}

func TestFuzzer_ConcurrentUse(t *testing.T) {
	f := geo.NewFuzzer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.Fuzzy(10, 10)
				f.AddDistanceError(2)
			}
		}()
	}
	wg.Wait()
}
