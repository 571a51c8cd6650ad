package geo

import (
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean earth radius used for all distances.
const EarthRadiusKm = 6371.0

type Line []Pos

// Length is the great-circle length of the line in km.
func (l Line) Length() float64 {
	var total float64
	for i, pos := range l {
		if i == 0 {
			continue
		}
		total += l[i-1].Distance(pos)
	}
	return total
}

// Cumulative returns the running distance in km at every position of the line. The first element is always 0 and the
// result has the same length as the line.
func (l Line) Cumulative() []float64 {
	if len(l) == 0 {
		return nil
	}
	out := make([]float64, len(l))
	for i := 1; i < len(l); i++ {
		out[i] = out[i-1] + l[i-1].Distance(l[i])
	}
	return out
}

type Pos struct {
	Lat, Lon float64
}

// Distance in km to another location, haversine on a sphere of radius EarthRadiusKm.
func (p1 Pos) Distance(p2 Pos) float64 {
	return HaversineKm(p1, p2)
}

// HaversineKm is the great-circle distance between two positions in km.
func HaversineKm(p1, p2 Pos) float64 {
	a := s2.LatLngFromDegrees(p1.Lat, p1.Lon)
	b := s2.LatLngFromDegrees(p2.Lat, p2.Lon)
	return a.Distance(b).Radians() * EarthRadiusKm
}

// CumulativeKm is Line(points).Cumulative().
func CumulativeKm(points []Pos) []float64 {
	return Line(points).Cumulative()
}

// GainLoss walks the elevations once and sums the rises into gain and the drops into loss (both positive meters). A
// flat step goes down the loss branch and adds nothing.
func GainLoss(elevations []float64) (gain, loss float64) {
	for i := 1; i < len(elevations); i++ {
		diff := elevations[i] - elevations[i-1]
		if diff > 0 {
			gain += diff
		} else {
			loss += -diff
		}
	}
	return gain, loss
}
