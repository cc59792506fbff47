package tactical

import "math"

// Vec3 is a point or direction in world space. Y is up.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64   { return math.Sqrt(v.Dot(v)) }
func (v Vec3) LengthSq() float64 { return v.Dot(v) }

func (v Vec3) DistTo(o Vec3) float64   { return v.Sub(o).Length() }
func (v Vec3) DistSqTo(o Vec3) float64 { return v.Sub(o).LengthSq() }

// Normalized returns the unit vector and true, or the zero vector and false
// when the input is degenerate. Callers must fail closed on false; a NaN
// must never reach a hit/visibility decision.
func (v Vec3) Normalized() (Vec3, bool) {
	l := v.Length()
	if l < 1e-9 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Vec3{}, false
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}, true
}

// IsFinite reports whether all components are real numbers.
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// AABB is an axis-aligned box, Min component-wise ≤ Max.
type AABB struct {
	Min, Max Vec3
}

func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b AABB) Center() Vec3 {
	return Vec3{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2, (b.Min.Z + b.Max.Z) / 2}
}

// ClosestPoint clamps p into the box.
func (b AABB) ClosestPoint(p Vec3) Vec3 {
	return Vec3{
		math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
		math.Min(math.Max(p.Z, b.Min.Z), b.Max.Z),
	}
}

// IntersectsSphere reports whether the closed ball (center, r) touches the box.
func (b AABB) IntersectsSphere(center Vec3, r float64) bool {
	return b.ClosestPoint(center).DistSqTo(center) <= r*r
}

// segmentHitT returns the first parameter t in [0,1] where the segment
// a->b enters the box, narrowing the [tMin,tMax] overlap across the three
// axis slabs. The bool is false when no overlap exists.
func (b AABB) segmentHitT(a, e Vec3) (float64, bool) {
	d := e.Sub(a)

	tMin := 0.0
	tMax := 1.0

	for axis := 0; axis < 3; axis++ {
		var o, dd, lo, hi float64
		switch axis {
		case 0:
			o, dd, lo, hi = a.X, d.X, b.Min.X, b.Max.X
		case 1:
			o, dd, lo, hi = a.Y, d.Y, b.Min.Y, b.Max.Y
		default:
			o, dd, lo, hi = a.Z, d.Z, b.Min.Z, b.Max.Z
		}
		if math.Abs(dd) < 1e-12 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		invD := 1.0 / dd
		t1 := (lo - o) * invD
		t2 := (hi - o) * invD
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	return tMin, true
}

// IntersectsSegment reports whether the segment a->e passes through the box.
func (b AABB) IntersectsSegment(a, e Vec3) bool {
	_, hit := b.segmentHitT(a, e)
	return hit
}

// pointToSegmentDistSq returns the squared distance from p to segment a->e.
func pointToSegmentDistSq(p, a, e Vec3) float64 {
	ab := e.Sub(a)
	abLenSq := ab.LengthSq()
	if abLenSq < 1e-12 {
		return p.DistSqTo(a)
	}
	t := p.Sub(a).Dot(ab) / abLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p.DistSqTo(a.Add(ab.Scale(t)))
}
