package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func Load(fpath string) (Root, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return Root{}, fmt.Errorf("reading kml %q: %w", fpath, err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(reader io.Reader) (Root, error) {
	var r Root
	if err := xml.NewDecoder(reader).Decode(&r); err != nil {
		return Root{}, fmt.Errorf("decoding kml: %w", err)
	}
	return r, nil
}

// Namespace is the default KML 2.2 namespace.
const Namespace = "http://www.opengis.net/kml/2.2"

type Root struct {
	Xmlns    string     `xml:"xmlns,attr"`
	Attrs    []xml.Attr `xml:",any,attr"` // other namespace declarations, e.g. xmlns:gx
	Document Document   `xml:"Document"`
	Extra    []Raw      `xml:",any"`
}

func (r Root) Save(fpath string) error {
	f, err := os.Create(fpath)
	if err != nil {
		return fmt.Errorf("creating kml file %q: %w", fpath, err)
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("writing kml file %q: %w", fpath, err)
	}
	return f.Close()
}

func (r Root) Encode(w io.Writer) error {
	r.Attrs = rawAttrs(r.Attrs)
	wrapper := struct {
		Root
		XMLName struct{} `xml:"kml"`
	}{Root: r}
	bw, err := xml.MarshalIndent(wrapper, "", "\t")
	if err != nil {
		return fmt.Errorf("marshaling kml: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header+string(bw)+"\n"); err != nil {
		return err
	}
	return nil
}

// LineStrings returns every LineString in the document in document order: placemarks directly in the document first,
// then folders depth first.
func (r *Root) LineStrings() []*Named {
	var out []*Named
	for _, p := range r.Document.Placemarks {
		out = append(out, p.lineStrings()...)
	}
	for _, f := range r.Document.Folders {
		out = append(out, f.lineStrings()...)
	}
	return out
}

// Named is a LineString with the name of the placemark it belongs to.
type Named struct {
	Name string
	*LineString
}

// Raw keeps an element the codec has no type for, so it is written back as it was read.
type Raw struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// prefixes are the conventional prefixes of extension namespaces. Raw content inside such elements still uses the
// prefix, so the element itself has to keep it too.
var prefixes = map[string]string{
	"http://www.google.com/kml/ext/2.2": "gx",
	"http://www.w3.org/2005/Atom":       "atom",
}

func (r Raw) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = r.XMLName
	switch prefix, ok := prefixes[start.Name.Space]; {
	case start.Name.Space == Namespace:
		start.Name.Space = ""
	case ok:
		start.Name = xml.Name{Local: prefix + ":" + start.Name.Local}
	}
	start.Attr = rawAttrs(r.Attrs)
	return e.EncodeElement(struct {
		Inner string `xml:",innerxml"`
	}{r.Inner}, start)
}

// rawAttrs turns decoded namespace declarations back into plain attributes. encoding/xml would otherwise write
// xmlns:gx as an attribute in a made up "xmlns" namespace.
func rawAttrs(attrs []xml.Attr) []xml.Attr {
	var out []xml.Attr
	for _, a := range attrs {
		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			continue
		case a.Name.Space == "xmlns":
			a.Name = xml.Name{Local: "xmlns:" + a.Name.Local}
		}
		out = append(out, a)
	}
	return out
}

type Document struct {
	Name        string       `xml:"name,omitempty"`
	Description string       `xml:"description,omitempty"`
	Styles      []*Style     `xml:"Style"`
	Placemarks  []*Placemark `xml:"Placemark"`
	Folders     []*Folder    `xml:"Folder"`
	Extra       []Raw        `xml:",any"`
}

type Style struct {
	Id        string     `xml:"id,attr,omitempty"`
	LineStyle *LineStyle `xml:"LineStyle,omitempty"`
	Extra     []Raw      `xml:",any"`
}

type LineStyle struct {
	Color string  `xml:"color"`
	Width float64 `xml:"width,omitempty"`
}

type Folder struct {
	Name        string       `xml:"name,omitempty"`
	Description string       `xml:"description,omitempty"`
	Placemarks  []*Placemark `xml:"Placemark"`
	Folders     []*Folder    `xml:"Folder"`
	Extra       []Raw        `xml:",any"`
}

func (f *Folder) lineStrings() []*Named {
	var out []*Named
	for _, p := range f.Placemarks {
		out = append(out, p.lineStrings()...)
	}
	for _, inner := range f.Folders {
		out = append(out, inner.lineStrings()...)
	}
	return out
}

type Placemark struct {
	Name          string         `xml:"name,omitempty"`
	Description   string         `xml:"description,omitempty"`
	StyleUrl      string         `xml:"styleUrl,omitempty"`
	Point         *Point         `xml:"Point,omitempty"`
	LineString    *LineString    `xml:"LineString,omitempty"`
	MultiGeometry *MultiGeometry `xml:"MultiGeometry,omitempty"`
	Style         *Style         `xml:"Style,omitempty"`
	Extra         []Raw          `xml:",any"`
}

func (p *Placemark) lineStrings() []*Named {
	var out []*Named
	if p.LineString != nil {
		out = append(out, &Named{Name: p.Name, LineString: p.LineString})
	}
	if p.MultiGeometry != nil {
		for _, l := range p.MultiGeometry.LineStrings {
			out = append(out, &Named{Name: p.Name, LineString: l})
		}
	}
	return out
}

type MultiGeometry struct {
	LineStrings []*LineString `xml:"LineString"`
	Extra       []Raw         `xml:",any"`
}

// Point is a single placemark position. Points are waypoints, not track points, and are written back unchanged.
type Point struct {
	AltitudeMode string `xml:"altitudeMode,omitempty"`
	Coordinates  string `xml:"coordinates"`
	Extra        []Raw  `xml:",any"`
}

type LineString struct {
	Extrude      bool   `xml:"extrude,omitempty"`
	Tessellate   bool   `xml:"tessellate,omitempty"`
	AltitudeMode string `xml:"altitudeMode,omitempty"`
	Coordinates  string `xml:"coordinates"`
	Extra        []Raw  `xml:",any"`
}

// Coord is one "lon,lat[,alt]" tuple. Alt is nil when the tuple has no altitude.
type Coord struct {
	Lon, Lat float64
	Alt      *float64
}

// Coords parses the coordinates of the line. Tuples are separated by any whitespace.
func (l LineString) Coords() ([]Coord, error) {
	tuples := strings.Fields(l.Coordinates)
	out := make([]Coord, len(tuples))
	for i, tuple := range tuples {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("coordinate %d: malformed tuple %q", i, tuple)
		}
		var c Coord
		var err error
		if c.Lon, err = strconv.ParseFloat(parts[0], 64); err != nil {
			return nil, fmt.Errorf("coordinate %d: longitude: %w", i, err)
		}
		if c.Lat, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return nil, fmt.Errorf("coordinate %d: latitude: %w", i, err)
		}
		if len(parts) == 3 {
			alt, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				return nil, fmt.Errorf("coordinate %d: altitude: %w", i, err)
			}
			c.Alt = &alt
		}
		out[i] = c
	}
	return out, nil
}

// SetCoords replaces the coordinates of the line.
func (l *LineString) SetCoords(coords []Coord) {
	l.Coordinates = FormatCoords(coords)
}

func FormatCoords(coords []Coord) string {
	var sb strings.Builder
	for i, c := range coords {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(strconv.FormatFloat(c.Lon, 'f', -1, 64))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatFloat(c.Lat, 'f', -1, 64))
		if c.Alt != nil {
			sb.WriteString(",")
			sb.WriteString(strconv.FormatFloat(*c.Alt, 'f', -1, 64))
		}
	}
	return sb.String()
}
