package charts

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

const (
	chartWidth  = 640
	chartHeight = 400
	// Rendered at 2x and downscaled for smoother lines.
	superSample = 2
	margin      = 48 * superSample
)

var (
	chartBg   = color.RGBA{255, 255, 255, 255}
	axisColor = color.RGBA{60, 60, 60, 255}
	gridColor = color.RGBA{225, 225, 225, 255}
	lineColor = color.RGBA{31, 119, 180, 255}
)

// renderPNG rasterizes a line chart of the series and returns encoded PNG
// bytes.
func renderPNG(points []Point) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 points to chart, got %d", len(points))
	}

	w := chartWidth * superSample
	h := chartHeight * superSample
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{chartBg}, image.Point{}, draw.Src)

	minV, maxV := points[0].Value, points[0].Value
	for _, p := range points {
		minV = math.Min(minV, p.Value)
		maxV = math.Max(maxV, p.Value)
	}
	if minV == maxV {
		// Flat series still gets a visible centered line.
		minV -= 1
		maxV += 1
	}

	plotW := w - 2*margin
	plotH := h - 2*margin
	toXY := func(i int, v float64) (int, int) {
		x := margin + i*plotW/(len(points)-1)
		y := margin + plotH - int(float64(plotH)*(v-minV)/(maxV-minV))
		return x, y
	}

	// Horizontal gridlines at quartiles.
	for g := 0; g <= 4; g++ {
		y := margin + g*plotH/4
		drawLine(img, margin, y, margin+plotW, y, gridColor)
	}
	// Axes.
	drawLine(img, margin, margin, margin, margin+plotH, axisColor)
	drawLine(img, margin, margin+plotH, margin+plotW, margin+plotH, axisColor)

	for i := 1; i < len(points); i++ {
		x0, y0 := toXY(i-1, points[i-1].Value)
		x1, y1 := toXY(i, points[i].Value)
		drawThickLine(img, x0, y0, x1, y1, lineColor, superSample)
	}
	for i, p := range points {
		x, y := toXY(i, p.Value)
		drawMarker(img, x, y, 3*superSample, lineColor)
	}

	out := imaging.Resize(img, chartWidth, chartHeight, imaging.Lanczos)
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLine rasterizes a segment with the integer Bresenham walk.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.SetRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA, thickness int) {
	for ox := -thickness / 2; ox <= thickness/2; ox++ {
		for oy := -thickness / 2; oy <= thickness/2; oy++ {
			drawLine(img, x0+ox, y0+oy, x1+ox, y1+oy, c)
		}
	}
}

func drawMarker(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for x := cx - r; x <= cx+r; x++ {
		for y := cy - r; y <= cy+r; y++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
