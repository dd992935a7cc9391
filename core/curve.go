package core

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// CentripetalAlpha avoids cusps and self-intersection on uneven chords.
	CentripetalAlpha = 0.5

	arcDivisions = 200
	minKnotDelta = 1e-4
)

// hermite is one cubic segment c0 + c1·t + c2·t² + c3·t³.
type hermite struct {
	c0, c1, c2, c3 Vec3
}

func newHermite(x0, x1, t0, t1 Vec3) hermite {
	return hermite{
		c0: x0,
		c1: t0,
		c2: r3.Sub(r3.Sub(r3.Scale(3, r3.Sub(x1, x0)), r3.Scale(2, t0)), t1),
		c3: r3.Add(r3.Add(r3.Scale(2, r3.Sub(x0, x1)), t0), t1),
	}
}

func (h hermite) at(t float64) Vec3 {
	t2 := t * t
	return r3.Add(r3.Add(h.c0, r3.Scale(t, h.c1)), r3.Add(r3.Scale(t2, h.c2), r3.Scale(t2*t, h.c3)))
}

func (h hermite) derivative(t float64) Vec3 {
	return r3.Add(h.c1, r3.Add(r3.Scale(2*t, h.c2), r3.Scale(3*t*t, h.c3)))
}

// CatmullRom is an open Catmull-Rom spline through three control points with
// knot parameterisation alpha (0 uniform, 0.5 centripetal, 1 chordal). The
// curve passes through every control point and is C¹ across the middle one.
type CatmullRom struct {
	points [3]Vec3
	segs   [2]hermite
	// cumulative arc length at arcDivisions+1 evenly spaced parameters
	lengths []float64
}

// NewCatmullRom builds the curve through a, b and c. The outer tangents use
// reflected phantom points so the curve does not overshoot its endpoints.
func NewCatmullRom(a, b, c Vec3, alpha float64) *CatmullRom {
	cr := &CatmullRom{points: [3]Vec3{a, b, c}}
	before := r3.Sub(r3.Scale(2, a), b)
	after := r3.Sub(r3.Scale(2, c), b)
	cr.segs[0] = nonUniformSegment(before, a, b, c, alpha)
	cr.segs[1] = nonUniformSegment(a, b, c, after, alpha)
	cr.buildArcTable()
	return cr
}

// nonUniformSegment returns the segment between p1 and p2 with tangents
// from the non-uniform Catmull-Rom formulation, normalised to [0,1].
func nonUniformSegment(p0, p1, p2, p3 Vec3, alpha float64) hermite {
	exp := alpha / 2
	dt0 := math.Pow(r3.Norm2(r3.Sub(p1, p0)), exp)
	dt1 := math.Pow(r3.Norm2(r3.Sub(p2, p1)), exp)
	dt2 := math.Pow(r3.Norm2(r3.Sub(p3, p2)), exp)

	// Coincident points would put zero in a denominator.
	if dt1 < minKnotDelta {
		dt1 = 1
	}
	if dt0 < minKnotDelta {
		dt0 = dt1
	}
	if dt2 < minKnotDelta {
		dt2 = dt1
	}

	t1 := r3.Add(
		r3.Sub(r3.Scale(1/dt0, r3.Sub(p1, p0)), r3.Scale(1/(dt0+dt1), r3.Sub(p2, p0))),
		r3.Scale(1/dt1, r3.Sub(p2, p1)),
	)
	t2 := r3.Add(
		r3.Sub(r3.Scale(1/dt1, r3.Sub(p2, p1)), r3.Scale(1/(dt1+dt2), r3.Sub(p3, p1))),
		r3.Scale(1/dt2, r3.Sub(p3, p2)),
	)
	return newHermite(p1, p2, r3.Scale(dt1, t1), r3.Scale(dt1, t2))
}

// Point evaluates the curve at raw parameter t in [0,1]; t = 0.5 is the
// middle control point.
func (c *CatmullRom) Point(t float64) Vec3 {
	seg, local := c.locate(t)
	return c.segs[seg].at(local)
}

func (c *CatmullRom) derivative(t float64) Vec3 {
	seg, local := c.locate(t)
	return c.segs[seg].derivative(local)
}

func (c *CatmullRom) locate(t float64) (int, float64) {
	p := clamp(t, 0, 1) * 2
	seg := int(math.Floor(p))
	if seg >= 2 {
		return 1, 1
	}
	return seg, p - float64(seg)
}

func (c *CatmullRom) buildArcTable() {
	c.lengths = make([]float64, arcDivisions+1)
	prev := c.Point(0)
	for i := 1; i <= arcDivisions; i++ {
		cur := c.Point(float64(i) / arcDivisions)
		c.lengths[i] = c.lengths[i-1] + r3.Norm(r3.Sub(cur, prev))
		prev = cur
	}
}

// Length is the approximate arc length of the curve.
func (c *CatmullRom) Length() float64 {
	return c.lengths[arcDivisions]
}

// paramAt maps an arc-length fraction u to the raw parameter t.
func (c *CatmullRom) paramAt(u float64) float64 {
	u = clamp(u, 0, 1)
	total := c.Length()
	if total == 0 || math.IsNaN(total) {
		return u
	}
	target := u * total
	i := sort.SearchFloat64s(c.lengths, target)
	if i == 0 {
		return 0
	}
	if i > arcDivisions {
		return 1
	}
	lo, hi := c.lengths[i-1], c.lengths[i]
	frac := 0.0
	if hi > lo {
		frac = (target - lo) / (hi - lo)
	}
	return (float64(i-1) + frac) / arcDivisions
}

// PointAt evaluates the curve at arc-length fraction u, so equal steps in u
// cover equal distances.
func (c *CatmullRom) PointAt(u float64) Vec3 {
	return c.Point(c.paramAt(u))
}

// TangentAt returns the unit direction of travel at arc-length fraction u.
// It reports false when the curve has collapsed to a point.
func (c *CatmullRom) TangentAt(u float64) (Vec3, bool) {
	if dir, ok := unit(c.derivative(c.paramAt(u))); ok {
		return dir, true
	}
	return unit(r3.Sub(c.points[2], c.points[0]))
}

// Samples returns n points evenly spaced by arc length, endpoints included.
func (c *CatmullRom) Samples(n int) []Vec3 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []Vec3{c.points[0]}
	}
	out := make([]Vec3, n)
	for i := range out {
		out[i] = c.PointAt(float64(i) / float64(n-1))
	}
	return out
}

// ControlPoints returns the launch, shaping and end points.
func (c *CatmullRom) ControlPoints() [3]Vec3 {
	return c.points
}
