package elevation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tkrajina/go-elevations/geoelevations"
)

// srtmVoid marks missing cells in SRTM tiles.
const srtmVoid = -32768

const rasterLabel = "srtm"

// DEM is a digital elevation model. *geoelevations.Srtm satisfies it.
type DEM interface {
	GetElevation(client *http.Client, latitude, longitude float64) (float64, error)
}

// RasterSource answers from a digital elevation model held in memory. Tiles are fetched by the model on first use and
// kept for the life of the process, so no separate cache is needed.
type RasterSource struct {
	// the srtm client lazily loads tiles into an unguarded map
	mu     sync.Mutex
	dem    DEM
	client *http.Client
	log    *slog.Logger
}

// NewSRTMSource creates the SRTM model. Do this once per run.
func NewSRTMSource(client *http.Client, log *slog.Logger) (*RasterSource, error) {
	if client == nil {
		client = http.DefaultClient
	}
	srtm, err := geoelevations.NewSrtm(client)
	if err != nil {
		return nil, fmt.Errorf("creating srtm client: %w", err)
	}
	return NewRasterSource(srtm, client, log), nil
}

func NewRasterSource(dem DEM, client *http.Client, log *slog.Logger) *RasterSource {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &RasterSource{dem: dem, client: client, log: log}
}

func (s *RasterSource) Name() string {
	return "SRTM"
}

func (s *RasterSource) Elevation(ctx context.Context, lat, lon float64) Sample {
	if ctx.Err() != nil {
		return observe(rasterLabel, NoData())
	}

	s.mu.Lock()
	v, err := s.dem.GetElevation(s.client, lat, lon)
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("srtm lookup failed", "key", CacheKey(lat, lon), "error", err)
		return observe(rasterLabel, NoData())
	}
	if v == srtmVoid {
		s.log.Debug("no srtm coverage", "key", CacheKey(lat, lon))
		return observe(rasterLabel, NoData())
	}
	if err := Validate(v); err != nil {
		s.log.Debug("rejected srtm elevation", "key", CacheKey(lat, lon), "error", err)
		return observe(rasterLabel, NoData())
	}
	return observe(rasterLabel, Meters(v))
}
