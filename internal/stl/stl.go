// Package stl serializes meshes to the STL interchange format in memory.
package stl

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/unixpickle/model3d/model3d"

	"github.com/shalynjjj/prompt2CAD/internal/mesh"
	"github.com/shalynjjj/prompt2CAD/types"
)

// Encode writes m as binary STL into a new buffer.
func Encode(m *mesh.Mesh) ([]byte, error) {
	if m == nil || m.TriangleCount() == 0 {
		return nil, types.NewError(types.ErrDegenerateMesh, "cannot serialize an empty mesh")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Write(&buf, m.Triangles()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes raw triangles as binary STL.
func Write(w io.Writer, tris []*model3d.Triangle) error {
	if err := model3d.WriteSTL(w, tris); err != nil {
		return fmt.Errorf("write stl: %w", err)
	}
	return nil
}

// Decode parses STL bytes back into raw triangles.
func Decode(data []byte) ([]*model3d.Triangle, error) {
	tris, err := model3d.ReadSTL(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "malformed stl data").WithCause(err)
	}
	return tris, nil
}

// Equivalent reports whether a and b hold the same multiset of triangles,
// in any order, comparing vertices with a relative tolerance. Vertex order
// within a triangle is significant since it fixes the winding. STL stores
// float32, so tol should be on the order of 1e-6.
func Equivalent(a, b []*model3d.Triangle, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	bound := 1.0
	for _, tris := range [][]*model3d.Triangle{a, b} {
		for _, t := range tris {
			for _, p := range t {
				bound = math.Max(bound, math.Max(math.Abs(p.X), math.Max(math.Abs(p.Y), math.Abs(p.Z))))
			}
		}
	}
	window := tol * bound

	// Candidates in b are sorted by centroid X so each lookup scans only the
	// triangles whose centroid lies within the tolerance window.
	idx := make([]int, len(b))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return centroidX(b[idx[i]]) < centroidX(b[idx[j]]) })
	used := make([]bool, len(b))

	for _, t := range a {
		cx := centroidX(t)
		start := sort.Search(len(idx), func(i int) bool { return centroidX(b[idx[i]]) >= cx-window })
		matched := false
		for k := start; k < len(idx) && centroidX(b[idx[k]]) <= cx+window; k++ {
			if used[k] || !sameTriangle(t, b[idx[k]], tol) {
				continue
			}
			used[k] = true
			matched = true
			break
		}
		if !matched {
			return false
		}
	}
	return true
}

func centroidX(t *model3d.Triangle) float64 {
	return (t[0].X + t[1].X + t[2].X) / 3
}

func sameTriangle(p, q *model3d.Triangle, tol float64) bool {
	for k := 0; k < 3; k++ {
		if !sameCoord(p[k], q[k], tol) {
			return false
		}
	}
	return true
}

func sameCoord(p, q model3d.Coord3D, tol float64) bool {
	return near(p.X, q.X, tol) && near(p.Y, q.Y, tol) && near(p.Z, q.Z, tol)
}

func near(x, y, tol float64) bool {
	return math.Abs(x-y) <= tol*math.Max(1, math.Max(math.Abs(x), math.Abs(y)))
}
