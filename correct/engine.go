// Package correct replaces the elevations of a track with values from an elevation source and summarizes how far the
// corrected profile moved from the original.
package correct

import (
	"context"
	"log/slog"
	"math"

	"github.com/dave/gpxele/elevation"
	"github.com/dave/gpxele/track"
	"golang.org/x/sync/errgroup"
)

// Delta is the change applied to one point. Only points that had an elevation and got a new one have a delta.
type Delta struct {
	Index     int // position of the point in file order
	Original  float64
	Corrected float64
	Change    float64 // |Corrected - Original|
}

// Result is the outcome of one correction run.
type Result struct {
	Points int     // points in the track
	Looked int     // points queried before the run ended
	Filled int     // points that had no elevation and got one
	Deltas []Delta // in point order
}

type Engine struct {
	source  elevation.Source
	workers int
	log     *slog.Logger
}

type Option func(*Engine)

// WithWorkers sets how many lookups may run at once. 1 (the default) queries point by point.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func NewEngine(source elevation.Source, opts ...Option) *Engine {
	e := &Engine{source: source, workers: 1, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Correct records the original elevation of every point of f, looks each one up in the source and applies the values
// it gets, in file order. Points the source has no data for keep their elevation.
//
// If ctx is cancelled no further lookups are started; the points already looked up are still applied and ctx's error
// is returned alongside the partial result.
func (e *Engine) Correct(ctx context.Context, f *track.File) (Result, error) {
	points := f.Points()
	for _, p := range points {
		p.RecordOriginal()
	}

	samples := make([]elevation.Sample, len(points))
	looked := make([]bool, len(points))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, p := range points {
		if ctx.Err() != nil {
			break
		}
		i, p := i, p
		g.Go(func() error {
			// the slot may have been waited for across a cancel
			if ctx.Err() != nil {
				return nil
			}
			samples[i] = e.source.Elevation(ctx, p.Lat, p.Lon)
			looked[i] = true
			return nil
		})
	}
	g.Wait()

	res := Result{Points: len(points)}
	for i, p := range points {
		if !looked[i] {
			continue
		}
		res.Looked++
		s := samples[i]
		if !s.Valid {
			continue
		}
		p.SetElevation(s.Meters)
		original, ok := p.Original()
		if !ok {
			res.Filled++
			e.log.Debug("filled missing elevation", "point", i, "corrected", s.Meters)
			continue
		}
		e.log.Debug("corrected elevation", "point", i, "original", original, "corrected", s.Meters)
		res.Deltas = append(res.Deltas, Delta{
			Index:     i,
			Original:  original,
			Corrected: s.Meters,
			Change:    math.Abs(s.Meters - original),
		})
	}
	return res, ctx.Err()
}
