// Package chart draws the original and corrected elevation profiles of a track onto one PNG.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	Width  = 1200
	Height = 600

	marginLeft   = 80.0
	marginRight  = 30.0
	marginTop    = 50.0
	marginBottom = 60.0

	gridLines = 5
)

var (
	OriginalColor  = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	CorrectedColor = color.RGBA{R: 30, G: 90, B: 220, A: 255}
)

var ErrNoData = errors.New("no elevation data to plot")

// Profile holds aligned series: one distance in km and two elevations in meters per point. NaN elevations are gaps.
type Profile struct {
	Distances []float64
	Original  []float64
	Corrected []float64
}

// Render draws p and writes it as a PNG to fpath.
func Render(fpath, title string, p Profile) error {
	file, err := os.Create(fpath)
	if err != nil {
		return fmt.Errorf("creating %q: %w", fpath, err)
	}
	if err := Draw(file, title, p); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Draw draws p and encodes it as a PNG to w.
func Draw(w io.Writer, title string, p Profile) error {
	if len(p.Original) != len(p.Distances) || len(p.Corrected) != len(p.Distances) {
		return fmt.Errorf("profile series differ in length: %d distances, %d original, %d corrected",
			len(p.Distances), len(p.Original), len(p.Corrected))
	}
	minEle, maxEle, ok := bounds(p.Original, p.Corrected)
	if !ok {
		return ErrNoData
	}
	maxDist := 0.0
	if n := len(p.Distances); n > 0 {
		maxDist = p.Distances[n-1]
	}
	if maxDist <= 0 {
		maxDist = 1
	}
	// pad so flat tracks still get a visible band
	pad := math.Max((maxEle-minEle)*0.05, 1)
	minEle, maxEle = minEle-pad, maxEle+pad

	face, err := fontFace(12)
	if err != nil {
		return err
	}

	dc := gg.NewContext(Width, Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(face)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	plotW := Width - marginLeft - marginRight
	plotH := Height - marginTop - marginBottom
	x := func(d float64) float64 { return marginLeft + d/maxDist*plotW }
	y := func(e float64) float64 { return marginTop + (maxEle-e)/(maxEle-minEle)*plotH }

	// grid and tick labels
	dc.SetLineWidth(1)
	for i := 0; i <= gridLines; i++ {
		f := float64(i) / gridLines

		ele := minEle + f*(maxEle-minEle)
		dc.SetRGB(0.88, 0.88, 0.88)
		dc.DrawLine(marginLeft, y(ele), marginLeft+plotW, y(ele))
		dc.Stroke()
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", ele), marginLeft-8, y(ele), 1, 0.35)

		dist := f * maxDist
		dc.SetRGB(0.88, 0.88, 0.88)
		dc.DrawLine(x(dist), marginTop, x(dist), marginTop+plotH)
		dc.Stroke()
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(fmt.Sprintf("%.1f", dist), x(dist), marginTop+plotH+8, 0.5, 1)
	}

	// axes
	dc.SetRGB(0, 0, 0)
	dc.DrawLine(marginLeft, marginTop, marginLeft, marginTop+plotH)
	dc.DrawLine(marginLeft, marginTop+plotH, marginLeft+plotW, marginTop+plotH)
	dc.Stroke()
	dc.DrawStringAnchored("Distance (km)", marginLeft+plotW/2, Height-15, 0.5, 0)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 20, marginTop+plotH/2)
	dc.DrawStringAnchored("Elevation (m)", 20, marginTop+plotH/2, 0.5, 0.5)
	dc.Pop()
	dc.DrawStringAnchored(title, Width/2, marginTop/2, 0.5, 0.5)

	dc.SetLineWidth(1.5)
	plot(dc, p.Distances, p.Original, OriginalColor, x, y)
	dc.SetLineWidth(2)
	plot(dc, p.Distances, p.Corrected, CorrectedColor, x, y)

	legend(dc, marginLeft+plotW-150, marginTop+10)

	return dc.EncodePNG(w)
}

// plot draws one series as a polyline, broken wherever the series has a NaN.
func plot(dc *gg.Context, distances, values []float64, c color.Color, x, y func(float64) float64) {
	dc.SetColor(c)
	drawing := false
	for i, v := range values {
		if math.IsNaN(v) {
			drawing = false
			continue
		}
		if !drawing {
			dc.MoveTo(x(distances[i]), y(v))
			drawing = true
			continue
		}
		dc.LineTo(x(distances[i]), y(v))
	}
	dc.Stroke()
}

func legend(dc *gg.Context, left, top float64) {
	dc.SetRGBA(1, 1, 1, 0.85)
	dc.DrawRectangle(left, top, 140, 50)
	dc.Fill()
	for i, item := range []struct {
		label string
		c     color.Color
	}{
		{"Original", OriginalColor},
		{"Corrected", CorrectedColor},
	} {
		ly := top + 15 + float64(i)*20
		dc.SetColor(item.c)
		dc.SetLineWidth(2)
		dc.DrawLine(left+10, ly, left+40, ly)
		dc.Stroke()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(item.label, left+48, ly, 0, 0.35)
	}
}

func bounds(series ...[]float64) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			if math.IsNaN(v) {
				continue
			}
			min = math.Min(min, v)
			max = math.Max(max, v)
			ok = true
		}
	}
	return min, max, ok
}

func fontFace(points float64) (font.Face, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: points}), nil
}
