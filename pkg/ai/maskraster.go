package ai

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
	_ "golang.org/x/image/webp"

	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// dabSegments is the polygon resolution of a round brush dab.
const dabSegments = 24

type pt struct{ x, y float32 }

// Rasterize renders the visible sub-masks into a coverage mask of the given
// size. Additive sub-masks take the maximum coverage, subtractive ones
// scale the accumulated coverage down by their own.
func Rasterize(size types.Size, subs []mask.SubMask) (*image.Alpha, error) {
	if size.Empty() {
		return nil, Error{
			Code:    CodeInvalidParameters,
			Message: fmt.Sprintf("mask size %dx%d is empty", size.Width, size.Height),
		}
	}
	bounds := image.Rect(0, 0, size.Width, size.Height)
	out := image.NewAlpha(bounds)

	for _, s := range subs {
		if !s.Visible || s.Opacity <= 0 || s.Shape == nil {
			continue
		}
		layer, err := rasterizeShape(bounds, s.Shape)
		if err != nil {
			return nil, fmt.Errorf("sub-mask %s: %w", s.ID, err)
		}
		if layer == nil {
			continue
		}
		combine(out, layer, s.Mode, s.Opacity)
	}
	return out, nil
}

// Covered reports whether any pixel of a has non-zero coverage.
func Covered(a *image.Alpha) bool {
	for _, c := range a.Pix {
		if c != 0 {
			return true
		}
	}
	return false
}

// EncodePNGDataURL encodes a coverage mask as a grayscale PNG data URL,
// white where the mask applies.
func EncodePNGDataURL(a *image.Alpha) (string, error) {
	gray := &image.Gray{Pix: a.Pix, Stride: a.Stride, Rect: a.Rect}
	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return "", fmt.Errorf("failed to encode mask: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func rasterizeShape(bounds image.Rectangle, shape mask.Shape) (*image.Alpha, error) {
	switch s := shape.(type) {
	case mask.Brush:
		return brushLayer(bounds, s), nil
	case mask.Radial:
		return radialLayer(bounds, s), nil
	case mask.Linear:
		return linearLayer(bounds, s), nil
	case mask.AIMask:
		if s.Generated != "" {
			return generatedLayer(bounds, s.Generated)
		}
		if s.Box != nil {
			return boxLayer(bounds, *s.Box), nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported shape %T", shape)
	}
}

func combine(dst, layer *image.Alpha, mode mask.Mode, opacity float64) {
	for i, c := range layer.Pix {
		a := float64(c) * opacity
		d := float64(dst.Pix[i])
		if mode == mask.ModeSubtractive {
			d *= 1 - a/255
		} else {
			d = math.Max(d, a)
		}
		dst.Pix[i] = uint8(math.Round(d))
	}
}

func brushLayer(bounds image.Rectangle, brush mask.Brush) *image.Alpha {
	layer := image.NewAlpha(bounds)
	w, h := bounds.Dx(), bounds.Dy()
	src := image.NewUniform(color.Alpha{A: 0xff})

	for _, s := range brush.Strokes {
		if len(s.Points) == 0 {
			continue
		}
		r := vector.NewRasterizer(w, h)
		radius := float32(s.Size / 2)
		for i, p := range s.Points {
			addPolygon(r, dab(float32(p.X), float32(p.Y), radius), w, h)
			if i > 0 {
				prev := s.Points[i-1]
				addPolygon(r, segment(float32(prev.X), float32(prev.Y), float32(p.X), float32(p.Y), radius), w, h)
			}
		}

		stroke := image.NewAlpha(bounds)
		r.Draw(stroke, bounds, src, image.Point{})

		if s.Tool == mask.ToolEraser {
			for i, c := range stroke.Pix {
				layer.Pix[i] = uint8(uint32(layer.Pix[i]) * uint32(255-c) / 255)
			}
			continue
		}
		for i, c := range stroke.Pix {
			if c > layer.Pix[i] {
				layer.Pix[i] = c
			}
		}
	}
	return layer
}

func boxLayer(bounds image.Rectangle, box types.Rect) *image.Alpha {
	layer := image.NewAlpha(bounds)
	w, h := bounds.Dx(), bounds.Dy()
	r := vector.NewRasterizer(w, h)
	x0, y0 := float32(box.X), float32(box.Y)
	x1, y1 := float32(box.X+box.Width), float32(box.Y+box.Height)
	addPolygon(r, []pt{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}, w, h)
	r.Draw(layer, bounds, image.NewUniform(color.Alpha{A: 0xff}), image.Point{})
	return layer
}

// radialLayer fills a rotated ellipse. Coverage is full inside
// (1-feather) of the radius and falls off linearly to zero at the edge.
func radialLayer(bounds image.Rectangle, rad mask.Radial) *image.Alpha {
	layer := image.NewAlpha(bounds)
	sin, cos := math.Sincos(rad.Rotation * math.Pi / 180)
	inner := 1 - rad.Feather

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		py := float64(y) + 0.5 - rad.Center.Y
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := float64(x) + 0.5 - rad.Center.X
			lx := px*cos + py*sin
			ly := -px*sin + py*cos
			d := math.Hypot(lx/rad.RadiusX, ly/rad.RadiusY)

			var cov float64
			switch {
			case d <= inner:
				cov = 1
			case d < 1:
				cov = (1 - d) / (1 - inner)
			}
			layer.SetAlpha(x, y, color.Alpha{A: uint8(math.Round(cov * 255))})
		}
	}
	return layer
}

// linearLayer covers the start side of the gradient. The transition is
// centred on the midpoint between start and end and spans 2*range.
func linearLayer(bounds image.Rectangle, lin mask.Linear) *image.Alpha {
	layer := image.NewAlpha(bounds)
	dx, dy := lin.End.X-lin.Start.X, lin.End.Y-lin.Start.Y
	length := math.Hypot(dx, dy)
	ux, uy := dx/length, dy/length
	mx, my := (lin.Start.X+lin.End.X)/2, (lin.Start.Y+lin.End.Y)/2

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			t := (float64(x)+0.5-mx)*ux + (float64(y)+0.5-my)*uy

			var cov float64
			if lin.Range == 0 {
				if t <= 0 {
					cov = 1
				}
			} else {
				cov = math.Max(0, math.Min(1, (lin.Range-t)/(2*lin.Range)))
			}
			layer.SetAlpha(x, y, color.Alpha{A: uint8(math.Round(cov * 255))})
		}
	}
	return layer
}

// generatedLayer decodes an AI mask and scales it to bounds. Masks with
// transparency use their alpha channel; opaque ones use luminance.
func generatedLayer(bounds image.Rectangle, dataURL string) (*image.Alpha, error) {
	data, err := decodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated mask: %w", err)
	}

	scaled := image.NewNRGBA(bounds)
	xdraw.ApproxBiLinear.Scale(scaled, bounds, img, img.Bounds(), xdraw.Src, nil)

	translucent := false
	for i := 3; i < len(scaled.Pix); i += 4 {
		if scaled.Pix[i] != 0xff {
			translucent = true
			break
		}
	}

	layer := image.NewAlpha(bounds)
	for i := range layer.Pix {
		p := scaled.Pix[i*4 : i*4+4]
		if translucent {
			layer.Pix[i] = p[3]
			continue
		}
		layer.Pix[i] = uint8((299*uint32(p[0]) + 587*uint32(p[1]) + 114*uint32(p[2])) / 1000)
	}
	return layer, nil
}

func dab(cx, cy, radius float32) []pt {
	pts := make([]pt, dabSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / dabSegments
		pts[i] = pt{cx + radius*float32(math.Cos(a)), cy + radius*float32(math.Sin(a))}
	}
	return pts
}

func segment(x0, y0, x1, y1, radius float32) []pt {
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return nil
	}
	nx, ny := -dy/l*radius, dx/l*radius
	return []pt{{x0 + nx, y0 + ny}, {x1 + nx, y1 + ny}, {x1 - nx, y1 - ny}, {x0 - nx, y0 - ny}}
}

// addPolygon clips pts to the rasterizer bounds and adds it as a closed
// path. Every polygon is emitted with the same winding so that overlapping
// dabs accumulate instead of cancelling.
func addPolygon(r *vector.Rasterizer, pts []pt, w, h int) {
	pts = clipPolygon(pts, float32(w), float32(h))
	if len(pts) < 3 {
		return
	}
	if signedArea(pts) > 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	r.MoveTo(pts[0].x, pts[0].y)
	for _, p := range pts[1:] {
		r.LineTo(p.x, p.y)
	}
	r.ClosePath()
}

func signedArea(pts []pt) float32 {
	var a float32
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		a += p.x*q.y - q.x*p.y
	}
	return a / 2
}

// clipPolygon clips pts to the rectangle [0,w]x[0,h] (Sutherland-Hodgman).
func clipPolygon(pts []pt, w, h float32) []pt {
	edges := []struct {
		inside    func(pt) bool
		intersect func(a, b pt) pt
	}{
		{func(p pt) bool { return p.x >= 0 }, func(a, b pt) pt { return lerpX(a, b, 0) }},
		{func(p pt) bool { return p.x <= w }, func(a, b pt) pt { return lerpX(a, b, w) }},
		{func(p pt) bool { return p.y >= 0 }, func(a, b pt) pt { return lerpY(a, b, 0) }},
		{func(p pt) bool { return p.y <= h }, func(a, b pt) pt { return lerpY(a, b, h) }},
	}
	for _, e := range edges {
		if len(pts) == 0 {
			return nil
		}
		in := pts
		pts = make([]pt, 0, len(in)+4)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.inside(cur):
				if !e.inside(prev) {
					pts = append(pts, e.intersect(prev, cur))
				}
				pts = append(pts, cur)
			case e.inside(prev):
				pts = append(pts, e.intersect(prev, cur))
			}
			prev = cur
		}
	}
	return pts
}

func lerpX(a, b pt, x float32) pt {
	t := (x - a.x) / (b.x - a.x)
	return pt{x, a.y + t*(b.y-a.y)}
}

func lerpY(a, b pt, y float32) pt {
	t := (y - a.y) / (b.y - a.y)
	return pt{a.x + t*(b.x-a.x), y}
}
