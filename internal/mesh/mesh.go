package mesh

import (
	"math"

	"github.com/unixpickle/model3d/model3d"

	"github.com/shalynjjj/prompt2CAD/types"
)

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []model3d.Coord3D
	Faces    [][3]int
}

// TriangleCount returns the number of faces.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// Validate checks that every face references an existing vertex and that
// every vertex is finite.
func (m *Mesh) Validate() error {
	for i, v := range m.Vertices {
		if !finite(v.X) || !finite(v.Y) || !finite(v.Z) {
			return types.Errorf(types.ErrInvalidHeightField, "vertex %d is not finite: %v", i, v)
		}
	}
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return types.Errorf(types.ErrDegenerateMesh,
					"face %d references vertex %d outside [0, %d)", i, idx, n)
			}
		}
	}
	return nil
}

// Triangles expands the faces into raw triangles.
func (m *Mesh) Triangles() []*model3d.Triangle {
	out := make([]*model3d.Triangle, len(m.Faces))
	for i, f := range m.Faces {
		out[i] = &model3d.Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (m *Mesh) Bounds() (lo, hi model3d.Coord3D) {
	if len(m.Vertices) == 0 {
		return
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		lo = model3d.Coord3D{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		hi = model3d.Coord3D{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
	}
	return lo, hi
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
