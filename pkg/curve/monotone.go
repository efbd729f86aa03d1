// Package curve evaluates tone curves as monotone cubic splines.
//
// Tangents follow the Fritsch–Carlson rule so the interpolant never
// overshoots between control points whose values are monotonic. The result
// can be evaluated directly, sampled into a lookup table, or emitted as a
// chain of cubic Bezier segments for drawing.
package curve

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

var (
	// ErrTooFewPoints is returned when fewer than two control points are given.
	ErrTooFewPoints = errors.New("curve needs at least two points")

	// ErrNotIncreasing is returned when x values are not strictly increasing.
	ErrNotIncreasing = errors.New("curve x values must be strictly increasing")

	// ErrNotFinite is returned for NaN or infinite coordinates.
	ErrNotFinite = errors.New("curve coordinates must be finite")
)

// CubicBez is one cubic Bezier segment of the evaluated curve.
// P0 and P3 are control points of the input, P1 and P2 are derived.
type CubicBez struct {
	P0, P1, P2, P3 types.Point
}

// Eval evaluates the segment at parameter t in [0,1].
func (c CubicBez) Eval(t float64) types.Point {
	mt := 1.0 - t
	mt2 := mt * mt
	mt3 := mt2 * mt
	t2 := t * t
	t3 := t2 * t

	return types.Point{
		X: mt3*c.P0.X + 3*mt2*t*c.P1.X + 3*mt*t2*c.P2.X + t3*c.P3.X,
		Y: mt3*c.P0.Y + 3*mt2*t*c.P1.Y + 3*mt*t2*c.P2.Y + t3*c.P3.Y,
	}
}

// Monotone is an evaluated monotone cubic interpolant.
// It is immutable and safe for concurrent use.
type Monotone struct {
	points   []types.Point
	tangents []float64
}

// New builds the interpolant through points.
// Points must number at least two and have strictly increasing x.
func New(points []types.Point) (*Monotone, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	for i, p := range points {
		if !p.Finite() {
			return nil, fmt.Errorf("point %d: %w", i, ErrNotFinite)
		}
		if i > 0 && p.X <= points[i-1].X {
			return nil, fmt.Errorf("point %d (x=%g): %w", i, p.X, ErrNotIncreasing)
		}
	}

	pts := make([]types.Point, len(points))
	copy(pts, points)

	return &Monotone{
		points:   pts,
		tangents: tangents(pts),
	}, nil
}

// secants returns the slope of each interval.
func secants(pts []types.Point) []float64 {
	d := make([]float64, len(pts)-1)
	for i := range d {
		d[i] = (pts[i+1].Y - pts[i].Y) / (pts[i+1].X - pts[i].X)
	}
	return d
}

// tangents computes Fritsch–Carlson tangents for each point.
func tangents(pts []types.Point) []float64 {
	n := len(pts)
	delta := secants(pts)
	m := make([]float64, n)

	// One-sided at the ends.
	m[0] = delta[0]
	m[n-1] = delta[n-2]

	for i := 1; i < n-1; i++ {
		a, b := delta[i-1], delta[i]
		if a == 0 || b == 0 || (a > 0) != (b > 0) {
			m[i] = 0
			continue
		}
		m[i] = (a + b) / 2
	}

	for i, d := range delta {
		if d == 0 {
			m[i] = 0
			m[i+1] = 0
			continue
		}
		alpha := m[i] / d
		beta := m[i+1] / d
		if alpha < 0 {
			m[i] = 0
			alpha = 0
		}
		if beta < 0 {
			m[i+1] = 0
			beta = 0
		}
		if s := alpha*alpha + beta*beta; s > 9 {
			tau := 3 / math.Sqrt(s)
			m[i] = tau * alpha * d
			m[i+1] = tau * beta * d
		}
	}
	return m
}

// Points returns a copy of the control points.
func (c *Monotone) Points() []types.Point {
	out := make([]types.Point, len(c.points))
	copy(out, c.points)
	return out
}

// Domain returns the first and last x covered by the curve.
func (c *Monotone) Domain() (float64, float64) {
	return c.points[0].X, c.points[len(c.points)-1].X
}

// Eval returns the interpolated y at x. x outside the domain is clamped.
func (c *Monotone) Eval(x float64) float64 {
	lo, hi := c.Domain()
	if x <= lo {
		return c.points[0].Y
	}
	if x >= hi {
		return c.points[len(c.points)-1].Y
	}

	i := c.segmentFor(x)
	p0, p1 := c.points[i], c.points[i+1]
	h := p1.X - p0.X
	t := (x - p0.X) / h
	t2 := t * t
	t3 := t2 * t

	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	return h00*p0.Y + h10*h*c.tangents[i] + h01*p1.Y + h11*h*c.tangents[i+1]
}

// segmentFor returns the index of the interval containing x.
func (c *Monotone) segmentFor(x float64) int {
	lo, hi := 0, len(c.points)-2
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.points[mid].X <= x {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Segments returns one cubic Bezier per interval.
func (c *Monotone) Segments() []CubicBez {
	segs := make([]CubicBez, len(c.points)-1)
	for i := range segs {
		p0, p3 := c.points[i], c.points[i+1]
		third := (p3.X - p0.X) / 3
		segs[i] = CubicBez{
			P0: p0,
			P1: types.Point{X: p0.X + third, Y: p0.Y + c.tangents[i]*third},
			P2: types.Point{X: p3.X - third, Y: p3.Y - c.tangents[i+1]*third},
			P3: p3,
		}
	}
	return segs
}

// SVGPath renders the curve as an SVG path in curve coordinates.
func (c *Monotone) SVGPath() string {
	var b strings.Builder
	segs := c.Segments()
	b.WriteString("M ")
	writePoint(&b, segs[0].P0)
	for _, s := range segs {
		b.WriteString(" C ")
		writePoint(&b, s.P1)
		b.WriteString(" ")
		writePoint(&b, s.P2)
		b.WriteString(" ")
		writePoint(&b, s.P3)
	}
	return b.String()
}

func writePoint(b *strings.Builder, p types.Point) {
	b.WriteString(strconv.FormatFloat(p.X, 'f', 2, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(p.Y, 'f', 2, 64))
}

// Sample evaluates the curve at n evenly spaced x values across its domain.
func (c *Monotone) Sample(n int) []types.Point {
	if n < 2 {
		n = 2
	}
	lo, hi := c.Domain()
	step := (hi - lo) / float64(n-1)
	out := make([]types.Point, n)
	for i := range out {
		x := lo + step*float64(i)
		if i == n-1 {
			x = hi
		}
		out[i] = types.Point{X: x, Y: c.Eval(x)}
	}
	return out
}

// LUT samples the curve at every 8-bit input level.
func (c *Monotone) LUT() [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		y := math.Round(c.Eval(float64(i)))
		switch {
		case y < 0:
			y = 0
		case y > 255:
			y = 255
		}
		lut[i] = uint8(y)
	}
	return lut
}
