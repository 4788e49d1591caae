package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
	"github.com/chazu/morphtool/pkg/soma"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms morphology script source before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: three-point -> three_point
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator).
//
//  3. Line comments: ; and ;; become //, which is what zygomys parses.
//
// All of them respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Double-quoted string literals pass through untouched.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// So do backtick-quoted ones.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only a hyphen between identifier characters is kebab-case; anything
		// else is the minus operator or a negative number.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a geom.Point3.
type sexpVec3 struct {
	vec geom.Point3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSample is one neurite point with its diameter, produced by `pt`.
type sexpSample struct {
	point    geom.Point3
	diameter float64
}

func (s *sexpSample) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pt %g %g %g %g)", s.point.X, s.point.Y, s.point.Z, s.diameter)
}
func (s *sexpSample) Type() *zygo.RegisteredType { return nil }

// sexpSoma wraps the soma installed by `soma`.
type sexpSoma struct {
	soma morph.Soma
}

func (s *sexpSoma) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(soma :%s)", s.soma.Kind())
}
func (s *sexpSoma) Type() *zygo.RegisteredType { return nil }

// sexpSection wraps a section so it can be nested in another `section`.
type sexpSection struct {
	sec *morph.Section
}

func (s *sexpSection) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(section :type :%s ; %d points, %d children)", s.sec.Type, len(s.sec.Points), len(s.sec.Children))
}
func (s *sexpSection) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// A keyword directly followed by another keyword is its value, so
// `:type :axon` binds "type" to the axon keyword.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			// Trailing keyword with no value is a flag.
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer from a SexpInt.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_axon) and plain strings ("axon").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toSectionType accepts a type keyword (:axon, :basal, :apical-dendrite, ...)
// or a bare SWC structure code.
func toSectionType(s zygo.Sexp) (morph.SectionType, error) {
	if code, err := toInt(s); err == nil {
		if code < 0 {
			return morph.Undefined, fmt.Errorf("invalid section type code %d", code)
		}
		return morph.SectionType(code), nil
	}
	name, err := toKeywordString(s)
	if err != nil {
		return morph.Undefined, fmt.Errorf("expected section type keyword: %w", err)
	}
	return morph.ParseSectionType(name)
}

// toVec3 extracts a Point3 from a sexpVec3.
func toVec3(s zygo.Sexp) (geom.Point3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Point3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toVec3List converts a list of vec3 values.
func toVec3List(s zygo.Sexp) ([]geom.Point3, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	pts := make([]geom.Point3, len(items))
	for i, item := range items {
		if pts[i], err = toVec3(item); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return pts, nil
}

// toFloatList converts a list of numbers.
func toFloatList(s zygo.Sexp) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, len(items))
	for i, item := range items {
		if vals[i], err = toFloat64(item); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return vals, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the morphology builtins into a zygomys
// environment. They record the soma and sections on b during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: geom.Pt(xyz[0], xyz[1], xyz[2])}, nil
	})

	// -----------------------------------------------------------------------
	// (pt x y z diameter)
	// -----------------------------------------------------------------------
	env.AddFunction("pt", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("pt requires x, y, z and a diameter, got %d arguments", len(args))
		}
		var v [4]float64
		for i, field := range []string{"x", "y", "z", "diameter"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pt: %s: %w", field, err)
			}
			v[i] = f
		}
		if v[3] < 0 {
			return zygo.SexpNull, fmt.Errorf("pt: diameter %g is negative", v[3])
		}
		return &sexpSample{point: geom.Pt(v[0], v[1], v[2]), diameter: v[3]}, nil
	})

	// -----------------------------------------------------------------------
	// (circle :center (vec3 0 0 0) :radius 5 :points 16 :normal (vec3 0 0 1))
	// -----------------------------------------------------------------------
	env.AddFunction("circle", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		center := geom.Point3{}
		normal := geom.AxisZ
		n := 20

		if v, ok := pa.kw["center"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: center: %w", err)
			}
			center = c
		}
		if v, ok := pa.kw["normal"]; ok {
			nv, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: normal: %w", err)
			}
			normal = nv
		}
		if v, ok := pa.kw["points"]; ok {
			i, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: points: %w", err)
			}
			n = i
		}
		v, ok := pa.kw["radius"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("circle requires :radius")
		}
		radius, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("circle: radius: %w", err)
		}

		pts, err := geom.SampleCircle(center, radius, normal, n)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("circle: %w", err)
		}
		items := make([]zygo.Sexp, len(pts))
		for i, p := range pts {
			items[i] = &sexpVec3{vec: p}
		}
		return zygo.MakeList(items), nil
	})

	// -----------------------------------------------------------------------
	// (soma :sphere :center (vec3 0 0 0) :radius 5)
	// (soma :three-point :center (vec3 0 0 0) :radius 5)
	// (soma :three-point :points (list a b c) :radii (list 5 5 5))
	// (soma :stack :points (list ...) :radii (list ...))
	// (soma :contour :points (circle :radius 5))
	// -----------------------------------------------------------------------
	env.AddFunction("soma", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if b.soma != nil {
			return zygo.SexpNull, fmt.Errorf("soma: already defined as %s", b.soma.Kind())
		}
		// The kind comes first and is not followed by a value.
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("soma requires a kind (:sphere, :three-point, :stack or :contour)")
		}
		pa := parseArgs(args[1:])
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("soma: unexpected argument %s", pa.positional[0].SexpString(nil))
		}
		kindName, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("soma: kind: %w", err)
		}
		kind, err := morph.ParseSomaKind(kindName)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("soma: %w", err)
		}

		s, err := buildSoma(kind, pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("soma: %s: %w", kind, err)
		}
		b.soma = s
		return &sexpSoma{soma: s}, nil
	})

	// -----------------------------------------------------------------------
	// (section :type :apical (pt 0 5 0 2) (pt 0 20 0 1.5)
	//   (section :type :apical (pt -5 30 0 1))
	//   (section :type :apical (pt 5 30 0 1)))
	//
	// Samples and child sections may be interleaved; children start at the
	// section's last point. :perimeters takes one value per sample.
	// -----------------------------------------------------------------------
	env.AddFunction("section", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		sec := morph.NewSection(morph.Undefined, nil, nil)

		if v, ok := pa.kw["type"]; ok {
			t, err := toSectionType(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("section: type: %w", err)
			}
			if t == morph.SomaType {
				return zygo.SexpNull, fmt.Errorf("section: type: neurites cannot have the soma type")
			}
			sec.Type = t
		}

		var children []*morph.Section
		for i, arg := range pa.positional {
			switch v := arg.(type) {
			case *sexpSample:
				sec.Points = append(sec.Points, v.point)
				sec.Diameters = append(sec.Diameters, v.diameter)
			case *sexpSection:
				if !v.sec.IsRoot() {
					return zygo.SexpNull, fmt.Errorf("section: child %d is already attached elsewhere", i)
				}
				children = append(children, v.sec)
			default:
				return zygo.SexpNull, fmt.Errorf("section: argument %d: expected pt or section, got %T (%s)",
					i, arg, arg.SexpString(nil))
			}
		}
		if len(sec.Points) == 0 {
			return zygo.SexpNull, fmt.Errorf("section requires at least one pt")
		}

		if v, ok := pa.kw["perimeters"]; ok {
			p, err := toFloatList(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("section: perimeters: %w", err)
			}
			if len(p) != len(sec.Points) {
				return zygo.SexpNull, fmt.Errorf("section: %d perimeters for %d points", len(p), len(sec.Points))
			}
			sec.Perimeters = p
		}

		for _, c := range children {
			sec.Attach(c)
		}
		b.add(sec)
		return &sexpSection{sec: sec}, nil
	})
}

// buildSoma reads the keyword arguments for one soma kind.
func buildSoma(kind morph.SomaKind, pa kwArgs) (morph.Soma, error) {
	points := func() ([]geom.Point3, error) {
		v, ok := pa.kw["points"]
		if !ok {
			return nil, fmt.Errorf("missing :points")
		}
		return toVec3List(v)
	}
	radii := func() ([]float64, error) {
		v, ok := pa.kw["radii"]
		if !ok {
			return nil, fmt.Errorf("missing :radii")
		}
		return toFloatList(v)
	}
	sphere := func() (morph.SinglePointSphere, error) {
		var s morph.SinglePointSphere
		if v, ok := pa.kw["center"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return s, fmt.Errorf("center: %w", err)
			}
			s.Point = c
		}
		v, ok := pa.kw["radius"]
		if !ok {
			return s, fmt.Errorf("missing :radius")
		}
		r, err := toFloat64(v)
		if err != nil {
			return s, fmt.Errorf("radius: %w", err)
		}
		if r <= 0 {
			return s, fmt.Errorf("radius %g must be positive", r)
		}
		s.Radius = r
		return s, nil
	}

	switch kind {
	case morph.KindSinglePointSphere:
		return sphere()

	case morph.KindThreePointCylinder:
		if _, ok := pa.kw["points"]; !ok {
			s, err := sphere()
			if err != nil {
				return nil, err
			}
			return soma.ConvertTo(s, morph.KindThreePointCylinder, soma.Options{})
		}
		pts, err := points()
		if err != nil {
			return nil, err
		}
		rs, err := radii()
		if err != nil {
			return nil, err
		}
		if len(pts) != 3 || len(rs) != 3 {
			return nil, fmt.Errorf("needs 3 points and 3 radii, got %d and %d", len(pts), len(rs))
		}
		return morph.ThreePointCylinder{
			Points: [3]geom.Point3{pts[0], pts[1], pts[2]},
			Radii:  [3]float64{rs[0], rs[1], rs[2]},
		}, nil

	case morph.KindStackOfCylinders:
		pts, err := points()
		if err != nil {
			return nil, err
		}
		rs, err := radii()
		if err != nil {
			return nil, err
		}
		if len(pts) == 0 || len(pts) != len(rs) {
			return nil, fmt.Errorf("%d points and %d radii", len(pts), len(rs))
		}
		return morph.StackOfCylinders{Points: pts, Radii: rs}, nil

	case morph.KindContour:
		pts, err := points()
		if err != nil {
			return nil, err
		}
		if len(pts) < 3 {
			return nil, fmt.Errorf("needs at least 3 points, got %d", len(pts))
		}
		return morph.Contour{Points: pts}, nil
	}
	return nil, fmt.Errorf("unsupported kind")
}
