package track

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dave/gpxele/kml"
	"github.com/tkrajina/gpxgo/gpx"
)

type Format string

const (
	GPX Format = "gpx"
	KML Format = "kml"
)

var ErrUnsupportedFormat = errors.New("unsupported track format")

// FormatOf picks the format from the file extension.
func FormatOf(fpath string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fpath)) {
	case ".gpx":
		return GPX, nil
	case ".kml":
		return KML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(fpath))
}

// File is a loaded track file. It keeps the decoded document so Save writes back what was read, with the point
// elevations replaced. KML elements without a matching type are kept as raw XML.
type File struct {
	Format Format
	Tracks []*Track

	gpx   *gpx.GPX
	kml   *kml.Root
	lines []*kml.Named
}

func Load(fpath string) (*File, error) {
	format, err := FormatOf(fpath)
	if err != nil {
		return nil, err
	}
	switch format {
	case KML:
		root, err := kml.Load(fpath)
		if err != nil {
			return nil, err
		}
		return fromKML(&root)
	default:
		g, err := gpx.ParseFile(fpath)
		if err != nil {
			return nil, fmt.Errorf("parsing gpx %q: %w", fpath, err)
		}
		return fromGPX(g), nil
	}
}

func Decode(r io.Reader, format Format) (*File, error) {
	switch format {
	case GPX:
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading gpx: %w", err)
		}
		g, err := gpx.ParseBytes(b)
		if err != nil {
			return nil, fmt.Errorf("parsing gpx: %w", err)
		}
		return fromGPX(g), nil
	case KML:
		root, err := kml.Decode(r)
		if err != nil {
			return nil, err
		}
		return fromKML(&root)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func (f *File) Save(fpath string) error {
	if f.Format == KML {
		f.syncKML()
		return f.kml.Save(fpath)
	}
	out, err := os.Create(fpath)
	if err != nil {
		return fmt.Errorf("creating %q: %w", fpath, err)
	}
	if err := f.Encode(out); err != nil {
		out.Close()
		return fmt.Errorf("writing %q: %w", fpath, err)
	}
	return out.Close()
}

func (f *File) Encode(w io.Writer) error {
	switch f.Format {
	case GPX:
		return f.encodeGPX(w)
	case KML:
		f.syncKML()
		return f.kml.Encode(w)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f.Format)
}

func fromGPX(g *gpx.GPX) *File {
	f := &File{Format: GPX, gpx: g}
	for _, trk := range g.Tracks {
		t := &Track{Name: trk.Name}
		for _, seg := range trk.Segments {
			s := &Segment{Points: make([]*Point, 0, len(seg.Points))}
			for _, pt := range seg.Points {
				var ele *float64
				if pt.Elevation.NotNull() {
					ele = finite(pt.Elevation.Value())
				}
				s.Points = append(s.Points, NewPoint(pt.Latitude, pt.Longitude, ele))
			}
			t.Segments = append(t.Segments, s)
		}
		f.Tracks = append(f.Tracks, t)
	}
	return f
}

func (f *File) encodeGPX(w io.Writer) error {
	for i := range f.gpx.Tracks {
		for j := range f.gpx.Tracks[i].Segments {
			points := f.gpx.Tracks[i].Segments[j].Points
			for k := range points {
				if v, ok := f.Tracks[i].Segments[j].Points[k].Elevation(); ok {
					points[k].Elevation.SetValue(v)
				}
			}
		}
	}
	version := f.gpx.Version
	if version == "" {
		version = "1.1"
	}
	b, err := f.gpx.ToXml(gpx.ToXmlParams{Version: version, Indent: true})
	if err != nil {
		return fmt.Errorf("encoding gpx: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// fromKML makes one track per LineString, each with a single segment.
func fromKML(root *kml.Root) (*File, error) {
	f := &File{Format: KML, kml: root, lines: root.LineStrings()}
	for i, line := range f.lines {
		coords, err := line.Coords()
		if err != nil {
			return nil, fmt.Errorf("line %d (%q): %w", i, line.Name, err)
		}
		s := &Segment{Points: make([]*Point, len(coords))}
		for j, c := range coords {
			var ele *float64
			if c.Alt != nil {
				ele = finite(*c.Alt)
			}
			s.Points[j] = NewPoint(c.Lat, c.Lon, ele)
		}
		f.Tracks = append(f.Tracks, &Track{Name: line.Name, Segments: []*Segment{s}})
	}
	return f, nil
}

// syncKML writes the point elevations back into the LineStrings of the decoded document.
func (f *File) syncKML() {
	for i, line := range f.lines {
		points := f.Tracks[i].Segments[0].Points
		coords := make([]kml.Coord, len(points))
		for j, p := range points {
			coords[j] = kml.Coord{Lon: p.Lon, Lat: p.Lat, Alt: p.Ele}
		}
		line.SetCoords(coords)
	}
}

// finite returns nil for NaN and infinities, which some writers put in place of a missing elevation.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
