package kml

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

const doc = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
	<Document>
		<name>Rides</name>
		<Placemark>
			<name>Loop</name>
			<LineString>
				<coordinates>
					7.0,46.0,1000 7.001,46.001,1005
				</coordinates>
			</LineString>
		</Placemark>
		<Folder>
			<name>Archive</name>
			<Folder>
				<Placemark>
					<name>Flat</name>
					<MultiGeometry>
						<LineString><coordinates>8,47 8.1,47.1</coordinates></LineString>
						<LineString><coordinates>9,48,200</coordinates></LineString>
					</MultiGeometry>
				</Placemark>
			</Folder>
		</Folder>
	</Document>
</kml>`

func TestDecodeLineStrings(t *testing.T) {
	root, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	lines := root.LineStrings()
	if len(lines) != 3 {
		t.Fatalf("expected 3 line strings, got %d", len(lines))
	}
	if lines[0].Name != "Loop" || lines[1].Name != "Flat" || lines[2].Name != "Flat" {
		t.Errorf("unexpected order: %q %q %q", lines[0].Name, lines[1].Name, lines[2].Name)
	}

	coords, err := lines[0].Coords()
	if err != nil {
		t.Fatalf("Coords failed: %v", err)
	}
	if len(coords) != 2 {
		t.Fatalf("expected 2 coords, got %d", len(coords))
	}
	if coords[1].Lat != 46.001 || coords[1].Lon != 7.001 || coords[1].Alt == nil || *coords[1].Alt != 1005 {
		t.Errorf("unexpected coord %+v", coords[1])
	}

	flat, err := lines[1].Coords()
	if err != nil {
		t.Fatalf("Coords failed: %v", err)
	}
	if flat[0].Alt != nil {
		t.Errorf("expected no altitude, got %v", *flat[0].Alt)
	}
}

func TestCoordsMalformed(t *testing.T) {
	for _, coords := range []string{"1", "1,2,3,4", "a,2", "1,b", "1,2,c"} {
		if _, err := (LineString{Coordinates: coords}).Coords(); err == nil {
			t.Errorf("expected error for %q", coords)
		}
	}
}

func TestSetCoordsRoundTrip(t *testing.T) {
	root, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	line := root.LineStrings()[0]
	coords, _ := line.Coords()
	alt := 1234.5
	coords[0].Alt = &alt
	line.SetCoords(coords)

	var buf strings.Builder
	if err := root.Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(buf.String(), "7,46,1234.5 7.001,46.001,1005") {
		t.Errorf("updated coordinates missing from output:\n%s", buf.String())
	}

	again, err := Decode(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if n := len(again.LineStrings()); n != 3 {
		t.Errorf("expected 3 line strings after round trip, got %d", n)
	}
	if again.Xmlns != "http://www.opengis.net/kml/2.2" {
		t.Errorf("namespace lost: %q", again.Xmlns)
	}
}

const extendedDoc = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2" xmlns:gx="http://www.google.com/kml/ext/2.2">
	<Document>
		<open>1</open>
		<Style id="pin"><IconStyle><scale>1.2</scale></IconStyle></Style>
		<Placemark>
			<name>Summit</name>
			<Point><coordinates>7.5,46.5,3000</coordinates></Point>
		</Placemark>
		<Placemark>
			<name>Climb</name>
			<TimeStamp><when>2025-01-01T10:00:00Z</when></TimeStamp>
			<ExtendedData><Data name="rider"><value>anna &amp; ben</value></Data></ExtendedData>
			<LineString><coordinates>7,46,1000 7.001,46.001,1005</coordinates></LineString>
			<gx:Track><when>2025-01-01T10:00:00Z</when><gx:coord>7 46 1000</gx:coord></gx:Track>
		</Placemark>
	</Document>
</kml>`

func TestUnknownElementsRoundTrip(t *testing.T) {
	root, err := Decode(strings.NewReader(extendedDoc))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if p := root.Document.Placemarks[0].Point; p == nil || p.Coordinates != "7.5,46.5,3000" {
		t.Fatalf("point placemark not decoded: %+v", p)
	}

	fpath := filepath.Join(t.TempDir(), "out.kml")
	if err := root.Save(fpath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	again, err := Load(fpath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var buf bytes.Buffer
	if err := again.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`xmlns:gx="http://www.google.com/kml/ext/2.2"`,
		`<open>1</open>`,
		`<IconStyle><scale>1.2</scale></IconStyle>`,
		`<coordinates>7.5,46.5,3000</coordinates>`,
		`<TimeStamp><when>2025-01-01T10:00:00Z</when></TimeStamp>`,
		`<value>anna &amp; ben</value>`,
		`<gx:Track><when>2025-01-01T10:00:00Z</when><gx:coord>7 46 1000</gx:coord></gx:Track>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("lost %q on save:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<LineStyle>") {
		t.Errorf("empty LineStyle written for an icon style:\n%s", out)
	}
	if n := len(again.LineStrings()); n != 1 {
		t.Errorf("expected 1 line string after round trip, got %d", n)
	}
}
