// Package track holds the track model the correction works on and reads and writes it as GPX or KML.
package track

import (
	"math"

	"github.com/dave/gpxele/geo"
)

// Point is a track point. Ele is nil when the file had no elevation for it.
type Point struct {
	Lat, Lon float64
	Ele      *float64

	original *float64
	recorded bool
}

func NewPoint(lat, lon float64, ele *float64) *Point {
	return &Point{Lat: lat, Lon: lon, Ele: ele}
}

// Elevation is the current elevation, if any.
func (p *Point) Elevation() (float64, bool) {
	if p.Ele == nil {
		return 0, false
	}
	return *p.Ele, true
}

func (p *Point) SetElevation(v float64) {
	p.Ele = &v
}

// RecordOriginal remembers the current elevation as the original one. Only the first call has any effect.
func (p *Point) RecordOriginal() {
	if p.recorded {
		return
	}
	p.recorded = true
	if p.Ele != nil {
		v := *p.Ele
		p.original = &v
	}
}

// Original is the elevation recorded by RecordOriginal. Before that it is the current elevation.
func (p *Point) Original() (float64, bool) {
	if !p.recorded {
		return p.Elevation()
	}
	if p.original == nil {
		return 0, false
	}
	return *p.original, true
}

func (p *Point) Pos() geo.Pos {
	return geo.Pos{Lat: p.Lat, Lon: p.Lon}
}

type Segment struct {
	Points []*Point
}

type Track struct {
	Name     string
	Segments []*Segment
}

// Points returns every point of every track in file order: tracks, then segments, then points.
func (f *File) Points() []*Point {
	var out []*Point
	for _, t := range f.Tracks {
		for _, s := range t.Segments {
			out = append(out, s.Points...)
		}
	}
	return out
}

// Line is the points as one contiguous path.
func (f *File) Line() geo.Line {
	points := f.Points()
	line := make(geo.Line, len(points))
	for i, p := range points {
		line[i] = p.Pos()
	}
	return line
}

// OriginalElevations and Elevations are the elevation series used for gain and loss. Points without a value are left
// out.
func (f *File) OriginalElevations() []float64 {
	return f.series((*Point).Original, false)
}

func (f *File) Elevations() []float64 {
	return f.series((*Point).Elevation, false)
}

// Profile returns distance (km), original and current elevation for every point, index aligned. Missing elevations
// are NaN.
func (f *File) Profile() (distances, original, corrected []float64) {
	return f.Line().Cumulative(), f.series((*Point).Original, true), f.series((*Point).Elevation, true)
}

func (f *File) series(get func(*Point) (float64, bool), gaps bool) []float64 {
	var out []float64
	for _, p := range f.Points() {
		v, ok := get(p)
		switch {
		case ok:
			out = append(out, v)
		case gaps:
			out = append(out, math.NaN())
		}
	}
	return out
}
