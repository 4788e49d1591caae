package tessellate

import (
	"fmt"
	"math"

	"github.com/chazu/morphtool/pkg/kernel"
	"github.com/chazu/morphtool/pkg/morph"
	"github.com/chazu/morphtool/pkg/soma"
)

var _ soma.SurfaceOracle = (*MeshOracle)(nil)

// MeshOracle measures soma surface areas numerically: the soma is built
// as a solid, meshed, and the triangle areas summed. Cylinder encodings
// are measured without their two end caps so the result is comparable to
// soma.ClosedForm.
type MeshOracle struct {
	Kernel kernel.Kernel
	// Levels is the number of cylinders fitted to contour somata.
	Levels int
}

// NewMeshOracle returns a MeshOracle backed by k.
func NewMeshOracle(k kernel.Kernel) *MeshOracle {
	return &MeshOracle{Kernel: k}
}

// SurfaceArea implements soma.SurfaceOracle.
func (o *MeshOracle) SurfaceArea(s morph.Soma) (float64, error) {
	unavailable := func(reason string, args ...any) error {
		var kind morph.SomaKind
		if s != nil {
			kind = s.Kind()
		}
		return &soma.SurfaceAreaUnavailableError{Kind: kind, Reason: fmt.Sprintf(reason, args...)}
	}

	var (
		solid kernel.Solid
		caps  float64
		err   error
	)
	switch v := s.(type) {
	case morph.SinglePointSphere:
		solid, err = o.Kernel.Sphere(v.Point, v.Radius)
	case nil:
		return 0, unavailable("no soma")
	default:
		var p profile
		p, err = somaProfile(s, o.Levels)
		if err == nil && len(p.radii) < 2 {
			err = ErrNoGeometry
		}
		if err == nil {
			first, last := p.radii[0], p.radii[len(p.radii)-1]
			caps = math.Pi * (first*first + last*last)
			solid, err = p.solid(o.Kernel)
		}
	}
	if err != nil {
		return 0, unavailable("%v", err)
	}

	mesh, err := o.Kernel.ToMesh(solid)
	if err != nil {
		return 0, unavailable("meshing failed: %v", err)
	}
	area := mesh.Area() - caps
	if area <= 0 {
		return 0, unavailable("mesh area %g is not positive", area)
	}
	return area, nil
}
