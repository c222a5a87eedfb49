// Package coords holds the page geometry shared by drawing and link remapping.
package coords

import (
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Size is a width/height pair in PDF units.
type Size struct{ W, H float64 }

// Point is a position in page space, origin bottom-left.
type Point struct{ X, Y float64 }

// A4 is the natural layout size for markup without an explicit box.
var A4 = Size{W: 595.28, H: 841.89}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// Rotation returns a counter-clockwise rotation by deg degrees. Quarter turns are exact.
func Rotation(deg float64) matrix.Matrix {
	d := NormalizeDegrees(deg)
	var c, s float64
	switch d {
	case 0:
		c, s = 1, 0
	case 90:
		c, s = 0, 1
	case 180:
		c, s = -1, 0
	case 270:
		c, s = 0, -1
	default:
		rad := d * math.Pi / 180
		c, s = math.Cos(rad), math.Sin(rad)
	}
	return matrix.Matrix{c, s, -s, c, 0, 0}
}

// RotateAbout rotates by deg degrees around (cx, cy).
func RotateAbout(deg, cx, cy float64) matrix.Matrix {
	return matrix.Translate(-cx, -cy).Mul(Rotation(deg)).Mul(matrix.Translate(cx, cy))
}

// StampMatrix places a w×h content box: rotate about the box centre, then scale,
// then translate to (x, y). Matrices compose left to right in PDF order, so the
// translation is applied last.
func StampMatrix(x, y, scale, rotationDeg, w, h float64) matrix.Matrix {
	m := matrix.Identity
	if NormalizeDegrees(rotationDeg) != 0 {
		m = RotateAbout(rotationDeg, w/2, h/2)
	}
	return m.Mul(matrix.Matrix{scale, 0, 0, scale, 0, 0}).Mul(matrix.Translate(x, y))
}

// Apply maps p through m.
func Apply(m matrix.Matrix, p vec.Vec2) vec.Vec2 {
	return vec.Vec2{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Corners lists the four corners of r counter-clockwise from the lower left.
func Corners(r rect.Rect) [4]vec.Vec2 {
	return [4]vec.Vec2{
		{X: r.LLx, Y: r.LLy},
		{X: r.URx, Y: r.LLy},
		{X: r.URx, Y: r.URy},
		{X: r.LLx, Y: r.URy},
	}
}

// BoundingBox returns the axis-aligned box around pts.
func BoundingBox(pts []vec.Vec2) rect.Rect {
	if len(pts) == 0 {
		return rect.Rect{}
	}
	out := rect.Rect{LLx: pts[0].X, LLy: pts[0].Y, URx: pts[0].X, URy: pts[0].Y}
	for _, p := range pts[1:] {
		out.LLx = math.Min(out.LLx, p.X)
		out.LLy = math.Min(out.LLy, p.Y)
		out.URx = math.Max(out.URx, p.X)
		out.URy = math.Max(out.URy, p.Y)
	}
	return out
}

// TransformRect maps the corners of r through m and returns their bounding box.
func TransformRect(m matrix.Matrix, r rect.Rect) rect.Rect {
	c := Corners(r)
	pts := make([]vec.Vec2, 0, 4)
	for _, p := range c {
		pts = append(pts, Apply(m, p))
	}
	return BoundingBox(pts)
}

// RemapRect moves a rectangle from content-local space onto the page. The rectangle is
// scaled, its corners are rotated about the centre of the scaled box, and the
// axis-aligned bounding box of the result is translated to (x, y). Links stay
// axis-aligned under any rotation.
func RemapRect(r rect.Rect, scale, rotationDeg, w, h, x, y float64) rect.Rect {
	scaled := rect.Rect{LLx: r.LLx * scale, LLy: r.LLy * scale, URx: r.URx * scale, URy: r.URy * scale}
	if NormalizeDegrees(rotationDeg) != 0 {
		scaled = TransformRect(RotateAbout(rotationDeg, w*scale/2, h*scale/2), scaled)
	}
	return rect.Rect{LLx: scaled.LLx + x, LLy: scaled.LLy + y, URx: scaled.URx + x, URy: scaled.URy + y}
}

// Normalize orders the corners so that LL is below and left of UR.
func Normalize(r rect.Rect) rect.Rect {
	return rect.Rect{
		LLx: math.Min(r.LLx, r.URx), LLy: math.Min(r.LLy, r.URy),
		URx: math.Max(r.LLx, r.URx), URy: math.Max(r.LLy, r.URy),
	}
}

// Array flattens m into the six operands of a cm operator.
func Array(m matrix.Matrix) [6]float64 { return [6]float64(m) }
