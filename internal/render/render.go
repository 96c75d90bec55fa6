// Package render draws shaded preview images of triangle meshes.
package render

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/fogleman/gg"
	"github.com/unixpickle/model3d/model3d"
	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/internal/stl"
	"github.com/shalynjjj/prompt2CAD/types"
)

// Projection selects how world coordinates map onto the image plane.
type Projection string

// Projections.
const (
	ProjectionIsometric Projection = "isometric"
	ProjectionTop       Projection = "top"
)

// Options configure a Renderer.
type Options struct {
	Width      int        `yaml:"width" json:"width"`
	Height     int        `yaml:"height" json:"height"`
	Margin     float64    `yaml:"margin" json:"margin"`
	Projection Projection `yaml:"projection" json:"projection"`
}

// DefaultOptions returns an 800x800 isometric preview.
func DefaultOptions() Options {
	return Options{
		Width:      800,
		Height:     800,
		Margin:     40,
		Projection: ProjectionIsometric,
	}
}

// Renderer rasterizes meshes with flat Lambert shading, painting triangles
// back to front.
type Renderer struct {
	opts   Options
	light  model3d.Coord3D
	logger *zap.Logger
}

// New creates a Renderer. Zero-valued options fall back to the defaults.
func New(opts Options, logger *zap.Logger) *Renderer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Margin < 0 {
		opts.Margin = def.Margin
	}
	if opts.Projection == "" {
		opts.Projection = def.Projection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		opts:   opts,
		light:  model3d.Coord3D{X: 0.4, Y: 0.5, Z: 1}.Normalize(),
		logger: logger.With(zap.String("component", "renderer")),
	}
}

// Render decodes STL bytes and returns a PNG preview.
func (r *Renderer) Render(ctx context.Context, stlData []byte) ([]byte, error) {
	tris, err := stl.Decode(stlData)
	if err != nil {
		return nil, err
	}
	return r.RenderTriangles(ctx, tris)
}

type projected struct {
	pts   [3][2]float64
	depth float64
	shade float64
}

// RenderTriangles returns a PNG preview of raw triangles.
func (r *Renderer) RenderTriangles(ctx context.Context, tris []*model3d.Triangle) ([]byte, error) {
	if len(tris) == 0 {
		return nil, types.NewError(types.ErrDegenerateMesh, "nothing to render")
	}

	faces := make([]projected, 0, len(tris))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, t := range tris {
		normal := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
		if normal.Norm() == 0 {
			continue
		}
		p := projected{shade: 0.25 + 0.75*math.Abs(normal.Normalize().Dot(r.light))}
		for k, v := range t {
			x, y, d := r.project(v)
			p.pts[k] = [2]float64{x, y}
			p.depth += d / 3
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
		faces = append(faces, p)
	}
	if len(faces) == 0 {
		return nil, types.NewError(types.ErrDegenerateMesh, "every triangle has zero area")
	}

	sort.Slice(faces, func(i, j int) bool { return faces[i].depth < faces[j].depth })

	w, h := float64(r.opts.Width), float64(r.opts.Height)
	spanX, spanY := math.Max(maxX-minX, 1e-9), math.Max(maxY-minY, 1e-9)
	scale := math.Min((w-2*r.opts.Margin)/spanX, (h-2*r.opts.Margin)/spanY)
	offX := (w - spanX*scale) / 2
	offY := (h - spanY*scale) / 2
	toScreen := func(pt [2]float64) (float64, float64) {
		return offX + (pt[0]-minX)*scale, offY + (pt[1]-minY)*scale
	}

	dc := gg.NewContext(r.opts.Width, r.opts.Height)
	dc.SetRGB(0.96, 0.96, 0.96)
	dc.Clear()

	for i, f := range faces {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("render cancelled: %w", err)
			}
		}
		dc.SetRGB(0.30*f.shade, 0.55*f.shade, 0.85*f.shade)
		dc.MoveTo(toScreen(f.pts[0]))
		dc.LineTo(toScreen(f.pts[1]))
		dc.LineTo(toScreen(f.pts[2]))
		dc.ClosePath()
		dc.Fill()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	r.logger.Debug("preview rendered", zap.Int("triangles", len(faces)), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// project maps a world point to image-plane coordinates (y grows downwards)
// and a depth where larger values are closer to the viewer.
func (r *Renderer) project(v model3d.Coord3D) (x, y, depth float64) {
	switch r.opts.Projection {
	case ProjectionTop:
		return v.Y, v.X, v.Z
	default:
		const c30, s30 = 0.8660254037844386, 0.5
		return (v.X - v.Y) * c30, (v.X+v.Y)*s30 - v.Z, v.X + v.Y + v.Z
	}
}
