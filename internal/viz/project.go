package viz

import (
	"fmt"
	"math"

	"github.com/san-kum/attractor/internal/dynamo"
)

type point struct{ X, Y float64 }

// Phase draws the (xIdx, yIdx) projection of states on a w by h cell canvas,
// joining consecutive states with lines. The view is fitted to the data.
func Phase(states []dynamo.State, xIdx, yIdx, w, h int) (string, error) {
	if w < 1 || h < 1 {
		return "", fmt.Errorf("canvas must be at least 1x1, got %dx%d", w, h)
	}
	pts := make([]point, 0, len(states))
	for i, s := range states {
		if xIdx < 0 || yIdx < 0 || xIdx >= len(s) || yIdx >= len(s) {
			return "", fmt.Errorf("state %d has %d components, cannot project (%d, %d)", i, len(s), xIdx, yIdx)
		}
		pts = append(pts, point{s[xIdx], s[yIdx]})
	}
	return plot(pts, w, h), nil
}

// Orbit rotates 3D states about their centroid by rotX around the x axis,
// then rotY around the y axis, and draws the orthographic view.
func Orbit(states []dynamo.State, rotX, rotY float64, w, h int) (string, error) {
	if w < 1 || h < 1 {
		return "", fmt.Errorf("canvas must be at least 1x1, got %dx%d", w, h)
	}
	if len(states) == 0 {
		return plot(nil, w, h), nil
	}

	var cx, cy, cz float64
	for i, s := range states {
		if len(s) != 3 {
			return "", fmt.Errorf("state %d has %d components, orbit view needs 3", i, len(s))
		}
		cx, cy, cz = cx+s[0], cy+s[1], cz+s[2]
	}
	n := float64(len(states))
	cx, cy, cz = cx/n, cy/n, cz/n

	ca, sa := math.Cos(rotX), math.Sin(rotX)
	cb, sb := math.Cos(rotY), math.Sin(rotY)
	pts := make([]point, len(states))
	for i, s := range states {
		x, y, z := s[0]-cx, s[1]-cy, s[2]-cz
		y, z = y*ca-z*sa, y*sa+z*ca
		x = x*cb + z*sb
		pts[i] = point{x, y}
	}
	return plot(pts, w, h), nil
}

func plot(pts []point, w, h int) string {
	c := NewCanvas(w, h)
	if len(pts) == 0 {
		return c.String()
	}

	minX, maxX, minY, maxY := bounds(pts)
	pw, ph := c.PixelSize()
	sx := scale(maxX-minX, pw)
	sy := scale(maxY-minY, ph)

	toPixel := func(p point) (int, int) {
		px := int(math.Round((p.X - minX) * sx))
		py := ph - 1 - int(math.Round((p.Y-minY)*sy))
		return px, py
	}

	started := false
	var prevX, prevY int
	for _, p := range pts {
		if !finite(p) {
			continue
		}
		x, y := toPixel(p)
		if started {
			c.DrawLine(prevX, prevY, x, y)
		} else {
			c.Set(x, y)
			started = true
		}
		prevX, prevY = x, y
	}
	return c.String()
}

func bounds(pts []point) (minX, maxX, minY, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		if !finite(p) {
			continue
		}
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	if math.IsInf(minX, 1) {
		return 0, 0, 0, 0
	}
	return minX, maxX, minY, maxY
}

func scale(span float64, pixels int) float64 {
	if span == 0 || pixels < 2 {
		return 0
	}
	return float64(pixels-1) / span
}

func finite(p point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
