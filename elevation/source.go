// Package elevation provides the elevation sources used to correct track points: a remote point-query service backed
// by a persisted coordinate cache, and a local SRTM terrain model.
package elevation

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Source looks up the terrain elevation for a coordinate. Implementations never fail: anything that goes wrong is
// logged and reported as a Sample with no data.
type Source interface {
	Elevation(ctx context.Context, lat, lon float64) Sample
	Name() string
}

// Sample is the result of one lookup: either a finite elevation in meters or no data.
type Sample struct {
	Meters float64
	Valid  bool
}

// NoData is the empty sample.
func NoData() Sample {
	return Sample{}
}

// Meters returns a sample carrying v.
func Meters(v float64) Sample {
	return Sample{Meters: v, Valid: true}
}

func (s Sample) String() string {
	if !s.Valid {
		return "no data"
	}
	return fmt.Sprintf("%.1fm", s.Meters)
}

const (
	// NoDataSentinel is what the point-query service answers outside its coverage.
	NoDataSentinel = -1000000.0

	MinPlausible = -500.0
	MaxPlausible = 9000.0
)

var (
	ErrNoValue    = errors.New("no elevation value")
	ErrOutOfRange = errors.New("elevation out of plausible range")
)

// Validate rejects non-finite values, the service's no-data sentinel and anything outside the plausible terrestrial
// range. The sentinel is far below MinPlausible so the range check covers it.
func Validate(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrNoValue
	}
	if v == NoDataSentinel || v < MinPlausible || v > MaxPlausible {
		return fmt.Errorf("%w: %v", ErrOutOfRange, v)
	}
	return nil
}

// KeyPrecision is the number of decimal places coordinates are rounded to in cache keys (~0.11 m).
const KeyPrecision = 6

// CacheKey is the cache key for a coordinate, "<lat>,<lon>" each with KeyPrecision decimals.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.*f,%.*f", KeyPrecision, lat, KeyPrecision, lon)
}
