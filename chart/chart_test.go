package chart

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestRender(t *testing.T) {
	p := Profile{
		Distances: []float64{0, 0.5, 1.0, 1.5, 2.0},
		Original:  []float64{100, math.NaN(), 120, 110, 90},
		Corrected: []float64{105, 112, 118, 108, 95},
	}
	fpath := filepath.Join(t.TempDir(), "track_profile.png")
	if err := Render(fpath, "Elevation Profile: track.gpx", p); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	file, err := os.Open(fpath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Errorf("expected %dx%d, got %v", Width, Height, b)
	}
}

func TestDrawFlat(t *testing.T) {
	var buf bytes.Buffer
	p := Profile{
		Distances: []float64{0, 0},
		Original:  []float64{50, 50},
		Corrected: []float64{50, 50},
	}
	if err := Draw(&buf, "flat", p); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("output is not a png: %v", err)
	}
}

func TestDrawNoData(t *testing.T) {
	nan := math.NaN()
	p := Profile{Distances: []float64{0, 1}, Original: []float64{nan, nan}, Corrected: []float64{nan, nan}}
	if err := Draw(&bytes.Buffer{}, "empty", p); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if err := Draw(&bytes.Buffer{}, "short", Profile{Distances: []float64{0}}); err == nil {
		t.Errorf("expected error for misaligned series")
	}
}
