package viz

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/san-kum/attractor/internal/dynamo"
)

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)

	want := string([]rune{0x2801, 0x2880}) + "\n"
	if got := c.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCanvasDrawLine(t *testing.T) {
	c := NewCanvas(2, 1)
	c.DrawLine(0, 0, 3, 0)

	// top row of both cells
	want := string([]rune{0x2809, 0x2809}) + "\n"
	if got := c.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPhaseDimensions(t *testing.T) {
	states := []dynamo.State{{0, 0, 0}, {1, 2, 3}, {-1, 5, 2}}
	out, err := Phase(states, 0, 2, 10, 4)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(lines))
	}
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n != 10 {
			t.Errorf("expected 10 cells, got %d", n)
		}
	}
	if !strings.ContainsFunc(out, func(r rune) bool { return r > brailleBlank && r <= 0x28ff }) {
		t.Error("nothing drawn")
	}
}

func TestPhaseCorners(t *testing.T) {
	states := []dynamo.State{{0, 0}, {1, 1}}
	out, err := Phase(states, 0, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	// (0,0) maps to bottom left, (1,1) to top right
	r, _ := utf8.DecodeRuneInString(out)
	if r&0x40 == 0 || r&0x08 == 0 {
		t.Errorf("expected bottom-left and top-right dots, got %U", r)
	}
}

func TestPhaseErrors(t *testing.T) {
	if _, err := Phase([]dynamo.State{{1, 2}}, 0, 2, 10, 4); err == nil {
		t.Error("expected error for missing component")
	}
	if _, err := Phase(nil, 0, 1, 0, 4); err == nil {
		t.Error("expected error for empty canvas")
	}
}

func TestPhaseSkipsNonFinite(t *testing.T) {
	states := []dynamo.State{{math.NaN(), 0}, {0, 0}, {math.Inf(1), 1}, {1, 1}}
	if _, err := Phase(states, 0, 1, 8, 4); err != nil {
		t.Fatal(err)
	}
}

func TestOrbit(t *testing.T) {
	states := []dynamo.State{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {-1, -1, -1}}
	for _, rot := range []float64{0, 0.5, math.Pi / 2} {
		out, err := Orbit(states, rot, rot, 12, 6)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Count(out, "\n") != 6 {
			t.Errorf("rot %v: expected 6 rows", rot)
		}
	}

	if _, err := Orbit([]dynamo.State{{1, 2}}, 0, 0, 4, 4); err == nil {
		t.Error("expected error for 2D states")
	}
	if out, err := Orbit(nil, 0, 0, 3, 2); err != nil || strings.Count(out, "\n") != 2 {
		t.Errorf("empty orbit: %q, %v", out, err)
	}
}

func TestSummary(t *testing.T) {
	out := Summary("run", []Row{
		Rowf("points", "%d", 10001),
		Rowf("h", "%g", 0.001),
	})
	for _, want := range []string{"run", "points", "10001", "0.001"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 5); got != strings.Repeat("─", 5) {
		t.Errorf("empty sparkline = %q", got)
	}
	if Sparkline([]float64{1, 2}, 0) != "" {
		t.Error("zero width should render nothing")
	}

	out := Sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8)
	if !strings.Contains(out, "▁") || !strings.Contains(out, "█") {
		t.Errorf("expected full range, got %q", out)
	}
}
