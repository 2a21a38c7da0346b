// Package geo blurs traveler locations and distances before they are shown
// to other users.
package geo

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"travelmate/backend/internal/config"
)

// Fuzzer adds bounded random noise to coordinates and distances.
// It is safe for concurrent use.
type Fuzzer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewFuzzer() *Fuzzer {
	return NewSeededFuzzer(uint64(time.Now().UnixNano()))
}

// NewSeededFuzzer returns a Fuzzer with a deterministic random source.
func NewSeededFuzzer(seed uint64) *Fuzzer {
	return &Fuzzer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// uniform returns a value in [-spread, spread).
func (f *Fuzzer) uniform(spread float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (f.rng.Float64()*2 - 1) * spread
}

func (f *Fuzzer) float() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rng.Float64()
}

// Fuzzy shifts each axis by up to FuzzRadiusDegrees (about 330 m).
func (f *Fuzzer) Fuzzy(lat, lng float64) (float64, float64) {
	fLat := lat + f.uniform(config.FuzzRadiusDegrees)
	fLng := lng + f.uniform(config.FuzzRadiusDegrees)

	fLat = math.Max(-90, math.Min(90, fLat))
	if fLng > 180 {
		fLng -= 360
	} else if fLng < -180 {
		fLng += 360
	}
	return fLat, fLng
}

// AddDistanceError blurs a distance in km. Below 1 km the error is 30-50% of
// the distance in either direction; above that it is a fixed band that widens
// with distance. The result never drops below MinFuzzedDistance.
func (f *Fuzzer) AddDistanceError(km float64) float64 {
	if km < 0 || math.IsNaN(km) {
		km = 0
	}

	var fuzzed float64
	if km < 1 {
		pct := 0.3 + f.float()*0.2
		if f.float() < 0.5 {
			pct = -pct
		}
		fuzzed = km + km*pct
	} else {
		fuzzed = km + f.uniform(spreadFor(km))
	}

	if fuzzed < config.MinFuzzedDistance {
		return config.MinFuzzedDistance
	}
	return fuzzed
}

func spreadFor(km float64) float64 {
	for _, band := range config.DistanceErrorBands {
		if km < band.UpToKm {
			return band.Spread
		}
	}
	return config.FarDistanceSpread
}
