package engine

import "github.com/chazu/morphtool/pkg/morph"

// builder collects what the builtins produce during one evaluation.
type builder struct {
	soma     morph.Soma
	sections []*morph.Section // creation order
}

func newBuilder() *builder {
	return &builder{}
}

func (b *builder) add(s *morph.Section) {
	b.sections = append(b.sections, s)
}

// finish assembles the morphology. Sections that never became a child are
// roots, in the order they were created. A morphology with anything in it
// is validated: structural and geometric errors fail the evaluation and
// warnings are passed through.
func (b *builder) finish() EvalResult {
	m := morph.New(b.soma)
	for _, s := range b.sections {
		if s.IsRoot() {
			m.AppendRoot(s)
		}
	}
	if m.Soma == nil && len(m.Roots) == 0 {
		return EvalResult{Morphology: m}
	}

	v := morph.ValidateAll(m)
	res := EvalResult{Morphology: m}
	for _, w := range v.Warnings {
		res.Warnings = append(res.Warnings, EvalWarning{SectionID: w.SectionID, Message: w.Message})
	}
	if !v.OK() {
		res.Morphology = nil
		for _, e := range v.Errors {
			res.Errors = append(res.Errors, EvalError{Message: e.Error()})
		}
	}
	return res
}
