package coords

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestNormalizeDegrees(t *testing.T) {
	cases := map[float64]float64{0: 0, 90: 90, 360: 0, 450: 90, -90: 270, -720: 0, math.NaN(): 0}
	for in, want := range cases {
		if got := NormalizeDegrees(in); got != want {
			t.Errorf("NormalizeDegrees(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestStampMatrixIdentity(t *testing.T) {
	m := StampMatrix(30, 40, 1, 0, 100, 50)
	if diff := cmp.Diff([6]float64{1, 0, 0, 1, 30, 40}, Array(m), approx); diff != "" {
		t.Fatalf("unexpected matrix (-want +got):\n%s", diff)
	}
}

func TestUnitSquareQuarterTurn(t *testing.T) {
	m := StampMatrix(10, 10, 1, 90, 1, 1)
	if got := Apply(m, vec.Vec2{}); !cmp.Equal(got, vec.Vec2{X: 11, Y: 10}, approx) {
		t.Fatalf("corner (0,0) mapped to %v, want (11,10)", got)
	}
	box := TransformRect(m, rect.Rect{URx: 1, URy: 1})
	want := rect.Rect{LLx: 10, LLy: 10, URx: 11, URy: 11}
	if diff := cmp.Diff(want, box, approx); diff != "" {
		t.Fatalf("bbox mismatch (-want +got):\n%s", diff)
	}
}

func TestRemapRectMatchesStampMatrix(t *testing.T) {
	link := rect.Rect{LLx: 10, LLy: 20, URx: 60, URy: 35}
	for _, tc := range []struct{ scale, rot float64 }{
		{1, 0}, {0.5, 0}, {2, 90}, {1.5, 33}, {0.75, 270}, {1, -45},
	} {
		got := RemapRect(link, tc.scale, tc.rot, 200, 100, 40, 70)
		want := TransformRect(StampMatrix(40, 70, tc.scale, tc.rot, 200, 100), link)
		if diff := cmp.Diff(want, got, approx); diff != "" {
			t.Errorf("scale %v rot %v (-want +got):\n%s", tc.scale, tc.rot, diff)
		}
	}
}

func TestRemapRectStaysAxisAligned(t *testing.T) {
	got := RemapRect(rect.Rect{URx: 2, URy: 1}, 1, 45, 2, 1, 0, 0)
	if got.URx-got.LLx <= 2 || got.URy-got.LLy <= 1 {
		t.Fatalf("rotated bbox should grow, got %+v", got)
	}
	if got.LLx > got.URx || got.LLy > got.URy {
		t.Fatalf("bbox not normalised: %+v", got)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(rect.Rect{LLx: 5, LLy: 9, URx: 1, URy: 2})
	if diff := cmp.Diff(rect.Rect{LLx: 1, LLy: 2, URx: 5, URy: 9}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}
