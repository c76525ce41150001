package export

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/san-kum/attractor/internal/dynamo"
)

const DefaultStroke = "#00ccff"

// PhaseSVG writes the (xIdx, yIdx) projection of states as a single SVG path.
// Non-finite states break the path into separate segments.
func PhaseSVG(w io.Writer, states []dynamo.State, xIdx, yIdx, width, height int, stroke string) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("svg must be at least 1x1, got %dx%d", width, height)
	}
	if stroke == "" {
		stroke = DefaultStroke
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, s := range states {
		if xIdx < 0 || yIdx < 0 || xIdx >= len(s) || yIdx >= len(s) {
			return fmt.Errorf("state %d has %d components, cannot project (%d, %d)", i, len(s), xIdx, yIdx)
		}
		x, y := s[xIdx], s[yIdx]
		if !finite(x, y) {
			continue
		}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	if math.IsInf(minX, 1) {
		return fmt.Errorf("no finite states to draw")
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1" d="`,
		width, height, width, height, stroke)

	pen := "M"
	for _, s := range states {
		x, y := s[xIdx], s[yIdx]
		if !finite(x, y) {
			pen = " M"
			continue
		}
		px := (x - minX) / rangeX * float64(width)
		py := float64(height) - (y-minY)/rangeY*float64(height)
		fmt.Fprintf(bw, "%s%.1f,%.1f", pen, px, py)
		pen = " L"
	}

	bw.WriteString("\"/>\n</svg>\n")
	return bw.Flush()
}

func finite(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}
