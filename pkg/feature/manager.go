package feature

import (
	"fmt"

	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

// Manager is the Feature Manager: it knows which features exist, how to
// extract each one's concrete value from an instruction scheme, and how to
// go from a map of abstract feature values back to the set of schemes that
// are feasible under them.
type Manager struct {
	ctx        iwho.Context
	decls      []Declaration
	extractors map[string]Extractor
	universes  map[string]*Universe
}

// NewManager builds a Manager over ctx's filtered scheme universe, computing
// the ambient Universe for every subset-like feature by extracting it from
// every scheme up front.
func NewManager(ctx iwho.Context, decls []Declaration, extractors map[string]Extractor) (*Manager, error) {
	m := &Manager{
		ctx:        ctx,
		decls:      decls,
		extractors: extractors,
		universes:  map[string]*Universe{},
	}
	schemes := ctx.FilteredSchemes()
	for _, d := range decls {
		ex, ok := extractors[d.Name]
		if !ok {
			return nil, fmt.Errorf("feature: no extractor registered for declared feature %q", d.Name)
		}
		switch d.Kind {
		case KindSingleton, KindEditDistance:
			continue
		case KindSubset, KindSubsetOrDefinitelyNot:
			var elems []string
			for _, s := range schemes {
				if v, ok := ex(ctx, s); ok {
					if sv, ok := v.(string); ok {
						elems = append(elems, sv)
					}
				}
			}
			m.universes[d.Name] = NewUniverse(elems)
		default:
			return nil, fmt.Errorf("feature: declared feature %q has unknown kind %q", d.Name, d.Kind)
		}
	}
	return m, nil
}

// Declarations returns the configured feature declarations in order.
func (m *Manager) Declarations() []Declaration { return m.decls }

// Universe returns the ambient universe computed for a subset-like feature,
// or nil if name isn't declared with such a kind.
func (m *Manager) Universe(name string) *Universe { return m.universes[name] }

func (m *Manager) declByName(name string) (Declaration, bool) {
	for _, d := range m.decls {
		if d.Name == name {
			return d, true
		}
	}
	return Declaration{}, false
}

// bottomFor builds the initial (most precise) abstract value for a feature,
// taking TOP when the feature does not apply to this scheme at all.
func (m *Manager) bottomFor(d Declaration, raw any, applies bool) AbstractFeature {
	if !applies {
		return m.topFor(d)
	}
	switch d.Kind {
	case KindSingleton:
		return NewSingleton(raw.(string))
	case KindSubset:
		return NewSubset(m.universes[d.Name], raw.(string))
	case KindSubsetOrDefinitelyNot:
		return NewSubsetOrDefinitelyNot(m.universes[d.Name], true, raw.(string))
	case KindEditDistance:
		return NewEditDistance(raw.(string), d.EditDistanceMax)
	default:
		panic(fmt.Sprintf("feature: unreachable kind %q", d.Kind))
	}
}

func (m *Manager) topFor(d Declaration) AbstractFeature {
	switch d.Kind {
	case KindSingleton:
		return TopSingleton()
	case KindSubset:
		return &Subset{universe: m.universes[d.Name], set: setOf(m.universes[d.Name])}
	case KindSubsetOrDefinitelyNot:
		return TopSubsetOrDefinitelyNot(m.universes[d.Name])
	case KindEditDistance:
		return TopEditDistance(d.EditDistanceMax)
	default:
		panic(fmt.Sprintf("feature: unreachable kind %q", d.Kind))
	}
}

func setOf(u *Universe) map[string]bool {
	if u == nil {
		return map[string]bool{}
	}
	res := make(map[string]bool, u.Len())
	for _, e := range u.Elems() {
		res[e] = true
	}
	return res
}

// Top returns the ⊤ feature vector: every declared feature at its top
// value. Used to build make_top(n) abstract blocks.
func (m *Manager) Top() map[string]AbstractFeature {
	res := make(map[string]AbstractFeature, len(m.decls))
	for _, d := range m.decls {
		res[d.Name] = m.topFor(d)
	}
	return res
}

// Lift extracts the most precise abstract feature vector for a single
// concrete instruction scheme: one entry per declared feature.
func (m *Manager) Lift(s *iwho.InsnScheme) map[string]AbstractFeature {
	res := make(map[string]AbstractFeature, len(m.decls))
	for _, d := range m.decls {
		ex := m.extractors[d.Name]
		v, ok := ex(m.ctx, s)
		res[d.Name] = m.bottomFor(d, v, ok)
	}
	return res
}

// Join computes the pointwise join of two feature vectors over the same
// declared feature set.
func (m *Manager) Join(a, b map[string]AbstractFeature) map[string]AbstractFeature {
	res := make(map[string]AbstractFeature, len(a))
	for name, av := range a {
		bv, ok := b[name]
		if !ok {
			res[name] = av.Clone()
			continue
		}
		res[name] = av.Join(bv)
	}
	return res
}

// Subsumes reports whether every feature of a subsumes the corresponding
// feature of b.
func (m *Manager) Subsumes(a, b map[string]AbstractFeature) bool {
	for name, av := range a {
		bv, ok := b[name]
		if !ok {
			continue
		}
		if !av.Subsumes(bv) {
			return false
		}
	}
	return true
}

// AcceptsScheme reports whether a concrete scheme is feasible under the
// given feature vector: every declared feature's concrete value (if it
// applies) must be accepted by the corresponding abstract value.
func (m *Manager) AcceptsScheme(features map[string]AbstractFeature, s *iwho.InsnScheme) bool {
	for _, d := range m.decls {
		av, ok := features[d.Name]
		if !ok {
			continue
		}
		ex := m.extractors[d.Name]
		v, applies := ex(m.ctx, s)
		if !applies {
			continue
		}
		if !av.Accepts(v) {
			return false
		}
	}
	return true
}

// FeasibleSchemes returns every scheme in the context's filtered universe
// that is feasible under the given feature vector, i.e. γ restricted to
// AbstractInsn's feature component.
func (m *Manager) FeasibleSchemes(features map[string]AbstractFeature) []*iwho.InsnScheme {
	all := m.ctx.FilteredSchemes()
	res := make([]*iwho.InsnScheme, 0, len(all))
	for _, s := range all {
		if m.AcceptsScheme(features, s) {
			res = append(res, s)
		}
	}
	return res
}

// MarshalFeatures renders a feature vector in the §6.1 wire format.
func (m *Manager) MarshalFeatures(features map[string]AbstractFeature) (map[string]any, error) {
	res := make(map[string]any, len(features))
	for name, v := range features {
		mv, err := v.MarshalValue()
		if err != nil {
			return nil, fmt.Errorf("feature: marshal %q: %w", name, err)
		}
		res[name] = mv
	}
	return res, nil
}

// UnmarshalFeatures reconstructs a feature vector from decoded JSON, using
// each feature's declared kind and (for subset-like kinds) its computed
// ambient universe.
func (m *Manager) UnmarshalFeatures(raw map[string]any) (map[string]AbstractFeature, error) {
	res := make(map[string]AbstractFeature, len(raw))
	for name, v := range raw {
		d, ok := m.declByName(name)
		if !ok {
			return nil, fmt.Errorf("feature: %q is not a declared feature", name)
		}
		af, err := FromJSON(d.Kind, m.universes[name], d.EditDistanceMax, v)
		if err != nil {
			return nil, fmt.Errorf("feature: unmarshal %q: %w", name, err)
		}
		res[name] = af
	}
	return res, nil
}

// DefaultDeclarations returns the feature set the bundled examples and tests
// use: one declaration exercising each of the four lattice kinds.
func DefaultDeclarations() []Declaration {
	return []Declaration{
		{Name: "exact_scheme", Kind: KindSingleton},
		{Name: "mnemonic", Kind: KindSingleton},
		{Name: "category", Kind: KindSubset},
		{Name: "isa_extension", Kind: KindSubsetOrDefinitelyNot},
		{Name: "mnemonic_nearby", Kind: KindEditDistance, EditDistanceMax: 2},
	}
}

// DefaultExtractors returns the Extractor set matching DefaultDeclarations.
func DefaultExtractors() map[string]Extractor {
	return map[string]Extractor{
		"exact_scheme": func(_ iwho.Context, s *iwho.InsnScheme) (any, bool) { return s.ID, true },
		"mnemonic":     func(ctx iwho.Context, s *iwho.InsnScheme) (any, bool) { return ctx.ExtractMnemonic(s), true },
		"category":     func(_ iwho.Context, s *iwho.InsnScheme) (any, bool) { return s.Category, true },
		"isa_extension": func(_ iwho.Context, s *iwho.InsnScheme) (any, bool) {
			if s.Extension == "" {
				return nil, false
			}
			return s.Extension, true
		},
		"mnemonic_nearby": func(ctx iwho.Context, s *iwho.InsnScheme) (any, bool) { return ctx.ExtractMnemonic(s), true },
	}
}
