package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// tieTolerance is the relative gap under which two covariance
	// eigenvalues are treated as equal.
	tieTolerance = 1e-9

	// collinearTolerance is the ratio of the middle to the largest variance
	// under which a point set is treated as a line.
	collinearTolerance = 1e-12

	// coincidentTolerance scales the largest coordinate magnitude to decide
	// whether all points sit on top of each other.
	coincidentTolerance = 1e-12
)

// spread is the eigen-decomposition of a point cloud's covariance.
type spread struct {
	centroid Point3
	values   [3]float64 // ascending
	vectors  [3]Point3  // unit eigenvectors, vectors[i] pairs with values[i]
	extent   float64    // largest distance from the centroid
}

func analyze(op string, points []Point3) (spread, error) {
	var s spread
	s.centroid = Mean(points)

	scale := 1.0
	for _, p := range points {
		if d := p.Distance(s.centroid); d > s.extent {
			s.extent = d
		}
		scale = math.Max(scale, math.Max(math.Abs(p.X), math.Max(math.Abs(p.Y), math.Abs(p.Z))))
	}
	if s.extent <= coincidentTolerance*scale {
		return s, degenerate(op, "all %d points coincide", len(points))
	}

	data := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		data.SetRow(i, []float64{p.X, p.Y, p.Z})
	}
	cov := mat.NewSymDense(3, nil)
	stat.CovarianceMatrix(cov, data, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return s, degenerate(op, "covariance eigen-decomposition did not converge")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	for j := 0; j < 3; j++ {
		s.values[j] = vals[j]
		s.vectors[j] = Point3{vecs.At(0, j), vecs.At(1, j), vecs.At(2, j)}
	}
	return s, nil
}

// tied returns the indices of all eigenvalues equal to values[k] within
// tieTolerance.
func (s spread) tied(k int) []int {
	ref := math.Abs(s.values[k])
	limit := tieTolerance * math.Max(ref, math.Abs(s.values[2]))
	var idx []int
	for i, v := range s.values {
		if math.Abs(v-s.values[k]) <= limit {
			idx = append(idx, i)
		}
	}
	return idx
}

// pick returns a unit direction from the eigenspace spanned by the given
// eigenvectors. A one-dimensional eigenspace yields its vector; a larger one
// yields the normalized projection of the first preferred axis that has a
// non-negligible component in it.
func (s spread) pick(space []int, prefs []Point3) Point3 {
	if len(space) == 1 {
		return canonical(s.vectors[space[0]])
	}
	for _, e := range prefs {
		var proj Point3
		for _, i := range space {
			v := s.vectors[i]
			proj = proj.Add(v.Scale(e.Dot(v)))
		}
		if proj.Length() > 1e-6 {
			u, _ := proj.Normalize()
			return canonical(u)
		}
	}
	return canonical(s.vectors[space[0]])
}

// canonical flips d so that its first non-negligible component is positive.
func canonical(d Point3) Point3 {
	for _, c := range d.Array() {
		if math.Abs(c) > 1e-12 {
			if c < 0 {
				return d.Scale(-1)
			}
			return d
		}
	}
	return d
}

// PrincipalAxis returns the centroid of points and the unit direction of
// greatest variance. When the greatest variance is shared by several
// directions, the direction is chosen by projecting X, then Y, then Z onto
// that eigenspace so the result does not depend on solver ordering. The
// direction's first non-zero component is always positive.
func PrincipalAxis(points []Point3) (origin, direction Point3, err error) {
	const op = "principal axis"
	if len(points) < 2 {
		return Point3{}, Point3{}, degenerate(op, "need at least 2 points, got %d", len(points))
	}
	s, err := analyze(op, points)
	if err != nil {
		return Point3{}, Point3{}, err
	}
	return s.centroid, s.pick(s.tied(2), []Point3{AxisX, AxisY, AxisZ}), nil
}

// FitPlane returns the least-squares plane through points: it passes through
// the centroid and its normal is the direction of least variance.
func FitPlane(points []Point3) (Plane, error) {
	const op = "plane fit"
	if len(points) < 3 {
		return Plane{}, degenerate(op, "need at least 3 points, got %d", len(points))
	}
	s, err := analyze(op, points)
	if err != nil {
		return Plane{}, err
	}
	if s.values[1] <= collinearTolerance*s.values[2] {
		return Plane{}, degenerate(op, "points are collinear")
	}
	normal := s.pick(s.tied(0), []Point3{AxisZ, AxisY, AxisX})
	return Plane{Origin: s.centroid, Normal: normal}, nil
}
