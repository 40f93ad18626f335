package mvtgeom

import (
	"testing"

	"github.com/vtileserver/vtileserver/internal/grid"
)

func TestProjectCornersReverseY(t *testing.T) {
	e := grid.Extent{Minx: 0, Miny: 0, Maxx: 100, Maxy: 100}
	// reverse_y = true: ground (minx,miny) -> pixel (0, tile_size)
	p := ProjectPoint(e, true, 4096, 0, 0)
	if p != (Point{0, 4096}) {
		t.Errorf("reverse_y bottom-left: got %+v", p)
	}
	p = ProjectPoint(e, true, 4096, 100, 100)
	if p != (Point{4096, 0}) {
		t.Errorf("reverse_y top-right: got %+v", p)
	}
}

func TestProjectCornersNoReverseY(t *testing.T) {
	e := grid.Extent{Minx: 0, Miny: 0, Maxx: 100, Maxy: 100}
	p := ProjectPoint(e, false, 4096, 0, 0)
	if p != (Point{0, 0}) {
		t.Errorf("no reverse_y bottom-left: got %+v", p)
	}
	p = ProjectPoint(e, false, 4096, 100, 100)
	if p != (Point{4096, 4096}) {
		t.Errorf("no reverse_y top-right: got %+v", p)
	}
}

func TestProjectLineDedup(t *testing.T) {
	e := grid.Extent{Minx: 0, Miny: 0, Maxx: 100, Maxy: 100}
	// Two source points so close they map to the same pixel should collapse.
	xs := []float64{10, 10.0000001, 20}
	ys := []float64{10, 10.0000001, 20}
	line := ProjectLine(e, false, 4096, xs, ys)
	if len(line) != 2 {
		t.Fatalf("expected dedup to 2 points, got %d: %+v", len(line), line)
	}
}

func TestSaturateToInt32(t *testing.T) {
	if saturateToInt32(1e20) != 1<<31-1 {
		t.Errorf("expected MaxInt32 saturation")
	}
	if saturateToInt32(-1e20) != -1<<31 {
		t.Errorf("expected MinInt32 saturation")
	}
	if saturateToInt32(nan()) != 0 {
		t.Errorf("expected NaN to saturate to 0")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
