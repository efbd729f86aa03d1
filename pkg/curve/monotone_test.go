package curve

import (
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

func pts(xy ...float64) []types.Point {
	out := make([]types.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, types.Point{X: xy[i], Y: xy[i+1]})
	}
	return out
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		points []types.Point
		want   error
	}{
		{"empty", nil, ErrTooFewPoints},
		{"single", pts(0, 0), ErrTooFewPoints},
		{"duplicate x", pts(0, 0, 128, 10, 128, 20, 255, 255), ErrNotIncreasing},
		{"decreasing x", pts(0, 0, 200, 10, 100, 20), ErrNotIncreasing},
		{"nan", pts(0, 0, math.NaN(), 3, 255, 255), ErrNotFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.points)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEval_IdentityCurve(t *testing.T) {
	c, err := New(pts(0, 0, 255, 255))
	require.NoError(t, err)

	for x := 0.0; x <= 255; x += 17 {
		assert.InDelta(t, x, c.Eval(x), 1e-9)
	}
	lut := c.LUT()
	for i := range lut {
		assert.Equal(t, uint8(i), lut[i])
	}
}

func TestEval_PassesThroughControlPoints(t *testing.T) {
	in := pts(0, 0, 64, 40, 128, 150, 200, 190, 255, 255)
	c, err := New(in)
	require.NoError(t, err)

	for _, p := range in {
		assert.InDelta(t, p.Y, c.Eval(p.X), 1e-9, "x=%v", p.X)
	}
}

func TestEval_ClampsOutsideDomain(t *testing.T) {
	c, err := New(pts(10, 20, 200, 220))
	require.NoError(t, err)

	assert.Equal(t, 20.0, c.Eval(-5))
	assert.Equal(t, 220.0, c.Eval(300))
}

func TestEval_FlatSegmentStaysFlat(t *testing.T) {
	c, err := New(pts(0, 0, 100, 120, 180, 120, 255, 255))
	require.NoError(t, err)

	for x := 100.0; x <= 180; x += 5 {
		assert.InDelta(t, 120, c.Eval(x), 1e-9, "x=%v", x)
	}
}

func TestEval_LocalExtremumDoesNotOvershoot(t *testing.T) {
	// Peak at x=128: the interpolant must not rise above it.
	c, err := New(pts(0, 0, 128, 200, 255, 0))
	require.NoError(t, err)

	for x := 0.0; x <= 255; x++ {
		y := c.Eval(x)
		assert.LessOrEqual(t, y, 200.0+1e-9)
		assert.GreaterOrEqual(t, y, -1e-9)
	}
}

func TestEval_SteepStepIsTamed(t *testing.T) {
	// A sharp step triggers the 3/sqrt(a^2+b^2) rescale.
	c, err := New(pts(0, 0, 120, 5, 130, 250, 255, 255))
	require.NoError(t, err)

	prev := c.Eval(0)
	for x := 0.5; x <= 255; x += 0.5 {
		y := c.Eval(x)
		require.GreaterOrEqual(t, y, prev-1e-9, "x=%v", x)
		prev = y
	}
}

func TestSegments_MatchEval(t *testing.T) {
	c, err := New(pts(0, 10, 90, 60, 170, 200, 255, 240))
	require.NoError(t, err)

	segs := c.Segments()
	require.Len(t, segs, 3)
	for _, s := range segs {
		for _, tt := range []float64{0, 0.25, 0.5, 0.75, 1} {
			p := s.Eval(tt)
			assert.InDelta(t, c.Eval(p.X), p.Y, 1e-6)
		}
	}
}

func TestSVGPath(t *testing.T) {
	c, err := New(pts(0, 0, 255, 255))
	require.NoError(t, err)

	path := c.SVGPath()
	assert.True(t, strings.HasPrefix(path, "M 0.00,0.00 C "))
	assert.True(t, strings.HasSuffix(path, "255.00,255.00"))
	assert.Equal(t, 1, strings.Count(path, " C "))
}

func TestSample(t *testing.T) {
	c, err := New(pts(0, 0, 255, 255))
	require.NoError(t, err)

	s := c.Sample(5)
	require.Len(t, s, 5)
	assert.Equal(t, 0.0, s[0].X)
	assert.Equal(t, 255.0, s[4].X)
	assert.InDelta(t, 127.5, s[2].Y, 1e-9)
}

func TestNew_CopiesInput(t *testing.T) {
	in := pts(0, 0, 255, 255)
	c, err := New(in)
	require.NoError(t, err)

	in[1].Y = 0
	assert.Equal(t, 255.0, c.Eval(255))
}

// buildMonotonic turns gap lists into a non-decreasing control polygon.
func buildMonotonic(dx []int, dy []int) []types.Point {
	n := len(dx)
	if len(dy) < n {
		n = len(dy)
	}
	out := []types.Point{{X: 0, Y: 0}}
	x, y := 0.0, 0.0
	for i := 0; i < n; i++ {
		x += float64(dx[i])
		y += float64(dy[i])
		out = append(out, types.Point{X: x, Y: y})
	}
	return out
}

func TestProperty_MonotonicInputGivesMonotonicCurve(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("non-decreasing control points never produce a decreasing curve", prop.ForAll(
		func(dx []int, dy []int) bool {
			points := buildMonotonic(dx, dy)
			if len(points) < 2 {
				return true
			}
			c, err := New(points)
			if err != nil {
				return false
			}
			lo, hi := c.Domain()
			prev := c.Eval(lo)
			for i := 1; i <= 400; i++ {
				y := c.Eval(lo + (hi-lo)*float64(i)/400)
				if y < prev-1e-9 {
					return false
				}
				prev = y
			}
			return true
		},
		gen.SliceOfN(6, gen.IntRange(1, 60)),
		gen.SliceOf(gen.IntRange(0, 60)),
	))

	properties.Property("curve stays between neighbouring control points", prop.ForAll(
		func(dx []int, dy []int) bool {
			points := buildMonotonic(dx, dy)
			if len(points) < 2 {
				return true
			}
			c, err := New(points)
			if err != nil {
				return false
			}
			for i := 0; i+1 < len(points); i++ {
				a, b := points[i], points[i+1]
				for k := 0; k <= 20; k++ {
					y := c.Eval(a.X + (b.X-a.X)*float64(k)/20)
					if y < a.Y-1e-9 || y > b.Y+1e-9 {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.IntRange(1, 60)),
		gen.SliceOf(gen.IntRange(0, 60)),
	))

	properties.TestingRun(t)
}
