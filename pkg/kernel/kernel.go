// Package kernel defines the solid-geometry interface used to build
// volumetric models of somata and neurites. A backend (see kernel/sdfx)
// turns primitives into solids, combines them and meshes the result.
package kernel

import "github.com/chazu/morphtool/pkg/geom"

// Solid is an opaque handle to a backend solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max geom.Point3)
}

// Kernel builds and meshes solids.
type Kernel interface {
	// Primitives
	Sphere(center geom.Point3, radius float64) (Solid, error)
	// Frustum is a truncated cone from a (radius ra) to b (radius rb),
	// closed by flat caps.
	Frustum(a, b geom.Point3, ra, rb float64) (Solid, error)

	// Boolean operations
	Union(solids ...Solid) Solid

	// Transforms
	Translate(s Solid, offset geom.Point3) Solid

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
