// Package hud renders a status overlay onto camera frames for post-flight
// review. It sits outside the control loop's failure path: rendering
// problems are reported to the caller and never reach flight control.
package hud

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"

	"github.com/MANTISS02/warehouse-drone/internal/nav"
	"github.com/MANTISS02/warehouse-drone/internal/vision"
)

const (
	dpi      float64 = 72
	size     float64 = 14
	spacing  float64 = 1.2
	leftPad          = 10
	topPad           = 22
)

// Annotator draws machine status text onto frame copies.
type Annotator struct {
	context *freetype.Context
}

// New creates an Annotator with the TrueType font at fontPath.
func New(fontPath string) (*Annotator, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(size)
	context.SetSrc(image.White)
	context.SetHinting(font.HintingFull)

	return &Annotator{context: context}, nil
}

var overlayGreen = color.RGBA{G: 200, A: 255}

// Render copies the frame into an RGBA image and draws the tracked marker
// outline and the status lines over it.
func (a *Annotator) Render(frame *image.Gray, status nav.Status) (*image.RGBA, error) {
	img := image.NewRGBA(frame.Bounds())
	draw.Draw(img, img.Bounds(), frame, frame.Bounds().Min, draw.Src)

	if status.Locked {
		drawQuad(img, status.TargetCorners)
	}

	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	pt := freetype.Pt(leftPad, topPad)
	for _, line := range a.statusLines(status) {
		if _, err := a.context.DrawString(line, pt); err != nil {
			return nil, fmt.Errorf("drawing status line: %w", err)
		}
		pt.Y += a.context.PointToFixed(size * spacing)
	}

	return img, nil
}

func (a *Annotator) statusLines(status nav.Status) []string {
	var lines []string

	switch status.Phase {
	case nav.PhaseScanningCode:
		lines = append(lines, fmt.Sprintf("Scanning code (height %s m)",
			humanize.FtoaWithDigits(status.ScanHeight, 2)))
	case nav.PhaseRetreating:
		lines = append(lines, fmt.Sprintf("Retreat: %s s",
			humanize.FtoaWithDigits(status.RetreatElapsed.Seconds(), 1)))
	default:
		mode := "Following"
		if status.YawSearching {
			mode += " (yaw search)"
		}
		lines = append(lines, mode)
	}

	if status.Locked {
		lines = append(lines, fmt.Sprintf("Marker %d  conf %s  dist %s m",
			status.LockedMarker,
			humanize.FtoaWithDigits(status.Confidence, 2),
			humanize.FtoaWithDigits(status.Distance, 2)))
	}

	if len(status.ScannedMarkers) > 0 {
		ids := make([]string, len(status.ScannedMarkers))
		for i, id := range status.ScannedMarkers {
			ids[i] = fmt.Sprintf("%d", id)
		}
		lines = append(lines, "Scanned: "+strings.Join(ids, ", "))
	}

	return lines
}

// drawQuad outlines the tracked marker and marks its centroid.
func drawQuad(img *image.RGBA, q vision.Quad) {
	for i := range q {
		drawSegment(img, q[i], q[(i+1)%4])
	}
	c := q.Centroid()
	fillDot(img, int(c.X), int(c.Y), 3)
}

func drawSegment(img *image.RGBA, a, b vision.Point) {
	steps := int(math.Hypot(b.X-a.X, b.Y-a.Y))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		img.Set(int(a.X+(b.X-a.X)*t), int(a.Y+(b.Y-a.Y)*t), overlayGreen)
	}
}

func fillDot(img *image.RGBA, cx, cy, r int) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				img.Set(cx+x, cy+y, overlayGreen)
			}
		}
	}
}
