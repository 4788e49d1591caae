package kernel

import "github.com/chazu/morphtool/pkg/geom"

// Mesh is a triangle soup. All arrays are flat: vertices has 3 floats per
// vertex (x,y,z), normals has 3 floats per vertex, indices has 3 uint32s
// per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // "soma" or "section N"
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i uint32) geom.Point3 {
	v := m.Vertices[3*i : 3*i+3]
	return geom.Pt(float64(v[0]), float64(v[1]), float64(v[2]))
}

// Area returns the total area of the mesh triangles.
func (m *Mesh) Area() float64 {
	var area float64
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a := m.Vertex(m.Indices[t])
		b := m.Vertex(m.Indices[t+1])
		c := m.Vertex(m.Indices[t+2])
		area += b.Sub(a).Cross(c.Sub(a)).Length() / 2
	}
	return area
}
