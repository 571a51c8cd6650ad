package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dave/gpxele/chart"
	"github.com/dave/gpxele/config"
	"github.com/dave/gpxele/correct"
	"github.com/dave/gpxele/elevation"
	"github.com/dave/gpxele/track"
)

// previewPoints is how many points of each segment the verbose overview prints.
const previewPoints = 5

type runner struct {
	cfg    *config.Config
	source elevation.Source
	engine *correct.Engine
	out    io.Writer
	log    *slog.Logger
}

func (r *runner) single(ctx context.Context) error {
	if _, err := os.Stat(r.cfg.Input); err != nil {
		return fmt.Errorf("%s not found: %w", r.cfg.Input, err)
	}
	return r.process(ctx, r.cfg.Input, outputPath(r.cfg.Input, r.cfg.Output, r.cfg.OutputDir))
}

// batch processes every track file in the input directory. A file that fails is logged and counted, and the rest are
// still processed.
func (r *runner) batch(ctx context.Context) error {
	info, err := os.Stat(r.cfg.Input)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", r.cfg.Input)
	}
	files, err := findTracks(r.cfg.Input)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no track files found in %s", r.cfg.Input)
	}

	fmt.Fprintf(r.out, "Found %d track files to process\n\n", len(files))

	var failed int
	for i, fpath := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintf(r.out, "[%d/%d] Processing %s...\n", i+1, len(files), filepath.Base(fpath))
		if err := r.process(ctx, fpath, outputPath(fpath, "", r.cfg.OutputDir)); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed++
			r.log.Error("processing failed", "file", fpath, "error", err)
		}
		fmt.Fprintln(r.out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// process corrects one file and writes it to output. If ctx is cancelled during correction, whatever was corrected is
// still saved and ctx's error is returned.
func (r *runner) process(ctx context.Context, input, output string) error {
	f, err := track.Load(input)
	if err != nil {
		return fmt.Errorf("loading track: %w", err)
	}

	r.overview(f)
	fmt.Fprintf(r.out, "Using elevation source: %s\n\n", r.source.Name())

	res, corrErr := r.engine.Correct(ctx, f)
	if corrErr != nil {
		r.log.Warn("correction interrupted", "file", input, "looked", res.Looked, "points", res.Points, "error", corrErr)
	}

	// the track is written even if reporting fails
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := f.Save(output); err != nil {
		return fmt.Errorf("saving track: %w", err)
	}

	if err := r.report(input, f, res); err != nil {
		return err
	}

	if !r.cfg.NoViz {
		viz := profilePath(output)
		distances, original, corrected := f.Profile()
		p := chart.Profile{Distances: distances, Original: original, Corrected: corrected}
		if err := chart.Render(viz, "Elevation Profile: "+filepath.Base(input), p); err != nil {
			r.log.Warn("rendering elevation profile", "file", viz, "error", err)
		} else if r.cfg.Verbose {
			fmt.Fprintf(r.out, "Elevation profile saved to %s\n", viz)
		}
	}

	if r.cfg.Verbose {
		fmt.Fprintf(r.out, "Corrected track saved to %s\n", output)
	}
	return corrErr
}

func (r *runner) overview(f *track.File) {
	fmt.Fprintf(r.out, "Number of tracks: %d\n\n", len(f.Tracks))
	for _, t := range f.Tracks {
		fmt.Fprintf(r.out, "Track name: %s\n", t.Name)
		for _, s := range t.Segments {
			fmt.Fprintf(r.out, "  Segment has %d points\n", len(s.Points))
			if !r.cfg.Verbose {
				continue
			}
			fmt.Fprintf(r.out, "  First %d points:\n", previewPoints)
			for i, p := range s.Points {
				if i == previewPoints {
					break
				}
				ele := "none"
				if v, ok := p.Elevation(); ok {
					ele = fmt.Sprintf("%.1fm", v)
				}
				fmt.Fprintf(r.out, "        Lat: %.6f, Lon: %.6f, Elevation: %s\n", p.Lat, p.Lon, ele)
			}
		}
	}
	fmt.Fprintln(r.out)
}

type report struct {
	File string `json:"file"`
	correct.Statistics
	PointsFilled int     `json:"points_filled"`
	LengthKm     float64 `json:"length_km"`
}

func (r *runner) report(input string, f *track.File, res correct.Result) error {
	length := f.Line().Length()

	st, err := correct.Summarize(res.Deltas, f.OriginalElevations(), f.Elevations())
	if errors.Is(err, correct.ErrEmptyStatistics) {
		fmt.Fprintf(r.out, "No points were corrected, nothing to summarize\n")
		if res.Filled > 0 {
			fmt.Fprintf(r.out, "Points filled: %d\n", res.Filled)
		}
		fmt.Fprintf(r.out, "Total length: %.2f km\n", length)
		return nil
	}
	if err != nil {
		return fmt.Errorf("summarizing: %w", err)
	}

	if r.cfg.StatsJSON {
		b, err := json.MarshalIndent(report{
			File:         filepath.Base(input),
			Statistics:   st,
			PointsFilled: res.Filled,
			LengthKm:     length,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding statistics: %w", err)
		}
		fmt.Fprintln(r.out, string(b))
		return nil
	}

	fmt.Fprintf(r.out, "=== Correction Summary ===\n")
	fmt.Fprintf(r.out, "Total points corrected: %d\n", st.PointsCorrected)
	if res.Filled > 0 {
		fmt.Fprintf(r.out, "Points filled: %d\n", res.Filled)
	}
	fmt.Fprintf(r.out, "Average elevation change: %.2fm\n", st.AverageChange)
	fmt.Fprintf(r.out, "Maximum elevation change: %.2fm\n", st.MaxChange)
	fmt.Fprintf(r.out, "Points with >%gm change: %d\n", correct.LargeChange, st.LargeChangeCount)

	fmt.Fprintf(r.out, "\n=== Elevation Gain/Loss ===\n")
	fmt.Fprintf(r.out, "Original - Gain: %.1fm, Loss: %.1fm\n", st.OriginalGain, st.OriginalLoss)
	fmt.Fprintf(r.out, "Corrected - Gain: %.1fm, Loss: %.1fm\n", st.CorrectedGain, st.CorrectedLoss)
	fmt.Fprintf(r.out, "Difference - Gain: %.1fm, Loss: %.1fm\n", st.GainDifference, st.LossDifference)

	fmt.Fprintf(r.out, "\nTotal length: %.2f km\n", length)
	return nil
}

// outputPath returns explicit if set, otherwise dir/corrected_<input name>.
func outputPath(input, explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(dir, "corrected_"+filepath.Base(input))
}

func profilePath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + "_profile.png"
}

// findTracks lists the track files directly inside dir, sorted by name.
func findTracks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := track.FormatOf(e.Name()); err != nil {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
