package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	return Load(fs)
}

// chdir moves into an empty directory so no stray gpxele.yaml is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestDefaults(t *testing.T) {
	chdir(t)
	cfg, err := load(t, "track.gpx")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source != SourceUSGS || cfg.Workers != 1 || cfg.OutputDir != "data/output" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.USGS.Timeout != 10*time.Second || cfg.USGS.CachePath != "cache/usgs_elevations.json" {
		t.Errorf("unexpected usgs defaults %+v", cfg.USGS)
	}
	if cfg.USGS.Endpoint != "https://epqs.nationalmap.gov/v1/json" {
		t.Errorf("unexpected endpoint %q", cfg.USGS.Endpoint)
	}
	if cfg.Input != "track.gpx" {
		t.Errorf("expected positional input, got %q", cfg.Input)
	}
}

func TestFlags(t *testing.T) {
	chdir(t)
	cfg, err := load(t, "-s", "srtm", "-o", "out.gpx", "--no-viz", "-v", "--workers", "4", "--cache", "c.db", "in.gpx")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source != SourceSRTM || cfg.Output != "out.gpx" || !cfg.NoViz || !cfg.Verbose || cfg.Workers != 4 {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.USGS.CachePath != "c.db" {
		t.Errorf("expected cache path from flag, got %q", cfg.USGS.CachePath)
	}
}

func TestEnvAndFile(t *testing.T) {
	dir := chdir(t)
	yaml := "source: srtm\nworkers: 3\nusgs:\n  timeout: 2s\n"
	if err := os.WriteFile(filepath.Join(dir, "gpxele.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GPXELE_WORKERS", "6")

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source != SourceSRTM {
		t.Errorf("expected source from file, got %q", cfg.Source)
	}
	if cfg.Workers != 6 {
		t.Errorf("env should override file, got %d workers", cfg.Workers)
	}
	if cfg.USGS.Timeout != 2*time.Second {
		t.Errorf("expected timeout from file, got %v", cfg.USGS.Timeout)
	}

	// flags beat env
	cfg, err = load(t, "--workers", "2")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 2 {
		t.Errorf("flag should override env, got %d workers", cfg.Workers)
	}
}

func TestExplicitConfigMissing(t *testing.T) {
	dir := chdir(t)
	if _, err := load(t, "--config", filepath.Join(dir, "nope.yaml")); err == nil {
		t.Errorf("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	chdir(t)
	_, err := load(t, "-s", "google", "--workers", "0")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"source must be", "workers must be"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}

	if _, err := load(t, "-b", "-o", "x.gpx", "dir"); err == nil {
		t.Errorf("expected error for output in batch mode")
	}
}
