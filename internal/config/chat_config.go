package config

import "time"

const (
	// Requests
	MaxRequestMessageLength = 500

	// Messages
	DefaultMaxMessageLength = 2000
	DefaultPageSize         = 20
	MinPageSize             = 1
	MaxPageSize             = 100
	LastMessagePreviewRunes = 120

	// Gatherings
	DefaultGatheringCapacity = 20
	MaxGatheringCapacity     = 500
	MaxRoomNameLength        = 80

	// Geo
	FuzzRadiusDegrees = 0.003
	MinFuzzedDistance = 0.1
	EarthRadiusKm     = 6371.0

	// Delivery
	CounterDefaultTTL    = 24 * time.Hour
	NotifyDefaultTimeout = 5 * time.Second
)

// Distance noise bands, in km, applied by AddDistanceError above one kilometre.
var DistanceErrorBands = []struct {
	UpToKm float64
	Spread float64
}{
	{UpToKm: 5, Spread: 0.3},
	{UpToKm: 10, Spread: 0.5},
}

const FarDistanceSpread = 0.8
