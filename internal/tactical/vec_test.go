package tactical

import (
	"math"
	"testing"
)

func TestSegmentAABB_Through(t *testing.T) {
	box := AABB{Min: Vec3{40, -10, -10}, Max: Vec3{60, 10, 10}}
	if !box.IntersectsSegment(Vec3{0, 0, 0}, Vec3{100, 0, 0}) {
		t.Fatal("segment through box should intersect")
	}
}

func TestSegmentAABB_StopsShort(t *testing.T) {
	box := AABB{Min: Vec3{300, 0, 0}, Max: Vec3{364, 64, 64}}
	if box.IntersectsSegment(Vec3{0, 32, 32}, Vec3{200, 32, 32}) {
		t.Fatal("box beyond the segment endpoint should not intersect")
	}
}

func TestSegmentAABB_InsideBox(t *testing.T) {
	box := AABB{Min: Vec3{0, 0, 0}, Max: Vec3{100, 100, 100}}
	if !box.IntersectsSegment(Vec3{10, 10, 10}, Vec3{20, 20, 20}) {
		t.Fatal("segment with both endpoints inside should intersect")
	}
}

func TestSegmentAABB_AxisParallelMiss(t *testing.T) {
	box := AABB{Min: Vec3{50, 0, 0}, Max: Vec3{150, 100, 100}}
	// Vertical segment entirely to the -X side of the box.
	if box.IntersectsSegment(Vec3{0, 0, 50}, Vec3{0, 100, 50}) {
		t.Fatal("segment left of box should not intersect")
	}
}

func TestSegmentAABB_DiagonalThrough(t *testing.T) {
	box := AABB{Min: Vec3{80, 80, 80}, Max: Vec3{120, 120, 120}}
	if !box.IntersectsSegment(Vec3{0, 0, 0}, Vec3{200, 200, 200}) {
		t.Fatal("diagonal through box should intersect")
	}
}

func TestNormalized_Degenerate(t *testing.T) {
	if _, ok := (Vec3{}).Normalized(); ok {
		t.Fatal("zero vector must not normalize")
	}
	if _, ok := (Vec3{X: math.NaN()}).Normalized(); ok {
		t.Fatal("NaN vector must not normalize")
	}
	if _, ok := (Vec3{X: math.Inf(1)}).Normalized(); ok {
		t.Fatal("infinite vector must not normalize")
	}
}

func TestPointToSegmentDist(t *testing.T) {
	d := pointToSegmentDistSq(Vec3{50, 10, 0}, Vec3{0, 0, 0}, Vec3{100, 0, 0})
	if math.Abs(d-100) > 1e-9 {
		t.Fatalf("perpendicular distance² = %v, want 100", d)
	}
	// Beyond the segment end, distance is to the endpoint.
	d = pointToSegmentDistSq(Vec3{110, 0, 0}, Vec3{0, 0, 0}, Vec3{100, 0, 0})
	if math.Abs(d-100) > 1e-9 {
		t.Fatalf("past-end distance² = %v, want 100", d)
	}
	// Degenerate segment: distance to the point.
	d = pointToSegmentDistSq(Vec3{3, 4, 0}, Vec3{0, 0, 0}, Vec3{0, 0, 0})
	if math.Abs(d-25) > 1e-9 {
		t.Fatalf("degenerate segment distance² = %v, want 25", d)
	}
}
