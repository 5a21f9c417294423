package iwho

import (
	"fmt"
	"sort"

	"github.com/cdl-saarland/AnICA/pkg/errs"
)

// Context is the narrow interface AnICA needs from an instruction-scheme
// database: the (filtered) universe of schemes plus the two alias queries
// that drive the abstract aliasing relation.
type Context interface {
	// FilteredSchemes returns every scheme left in the universe after
	// configured filters have been applied.
	FilteredSchemes() []*InsnScheme
	// SchemeByID looks a scheme up by its ID, as produced by
	// FilteredSchemes. Used to resolve serialized exact_scheme values.
	SchemeByID(id string) (*InsnScheme, bool)
	// MustAlias reports whether two concrete operands are guaranteed to
	// refer to the same storage (e.g. the same register, or textually
	// identical memory operands).
	MustAlias(a, b OperandInstance) bool
	// MayAlias reports whether two concrete operands could possibly
	// refer to overlapping storage, accounting for x86 partial-register
	// aliasing (e.g. AL and EAX).
	MayAlias(a, b OperandInstance) bool
	// ExtractMnemonic returns the mnemonic feature value for a scheme.
	ExtractMnemonic(s *InsnScheme) string
}

// partialRegisterGroups enumerates x86 register names that alias one
// another despite being textually distinct, keyed by the architectural
// register they are all part of.
var partialRegisterGroups = [][]string{
	{"RAX", "EAX", "AX", "AL", "AH"},
	{"RBX", "EBX", "BX", "BL", "BH"},
	{"RCX", "ECX", "CX", "CL", "CH"},
	{"RDX", "EDX", "DX", "DL", "DH"},
	{"RSI", "ESI", "SI", "SIL"},
	{"RDI", "EDI", "DI", "DIL"},
	{"RSP", "ESP", "SP", "SPL"},
	{"RBP", "EBP", "BP", "BPL"},
}

func partialRegisterGroup(reg string) []string {
	for _, g := range partialRegisterGroups {
		for _, m := range g {
			if m == reg {
				return g
			}
		}
	}
	return nil
}

// InMemoryContext is a small, fully in-memory reference implementation of
// Context, built from an explicit list of instruction schemes. It is the
// "given" universe used by the bundled case studies and by the test suite;
// a production deployment would replace it with a database-backed Context
// covering a real ISA.
type InMemoryContext struct {
	schemes []*InsnScheme
	byID    map[string]*InsnScheme
}

// NewInMemoryContext builds a context from a scheme universe and applies the
// configured filters (see FilterSpec) to produce the filtered universe.
func NewInMemoryContext(schemes []*InsnScheme, filters []FilterSpec) (*InMemoryContext, error) {
	byID := make(map[string]*InsnScheme, len(schemes))
	for _, s := range schemes {
		byID[s.ID] = s
	}
	filtered, err := applyFilters(schemes, filters)
	if err != nil {
		return nil, err
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID < filtered[j].ID })
	return &InMemoryContext{schemes: filtered, byID: byID}, nil
}

// FilteredSchemes implements Context.
func (c *InMemoryContext) FilteredSchemes() []*InsnScheme { return c.schemes }

// SchemeByID implements Context.
func (c *InMemoryContext) SchemeByID(id string) (*InsnScheme, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// ExtractMnemonic implements Context.
func (c *InMemoryContext) ExtractMnemonic(s *InsnScheme) string { return s.Mnemonic }

// MustAlias implements Context. Two register operands must-alias iff they
// name the same register. Two memory operands must-alias iff their resolved
// base and index registers coincide (an approximation of "provably the same
// address" suitable for a differential-testing front-end).
func (c *InMemoryContext) MustAlias(a, b OperandInstance) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case Register:
		return a.Register == b.Register
	case Memory:
		return a.Base == b.Base && a.Index == b.Index
	default:
		return false
	}
}

// MayAlias implements Context, accounting for x86 partial-register overlap
// (e.g. AL and RAX may alias) and conservatively treating any two memory
// operands with an unresolved or shared base register as possibly aliasing.
func (c *InMemoryContext) MayAlias(a, b OperandInstance) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case Register:
		if a.Register == b.Register {
			return true
		}
		group := partialRegisterGroup(a.Register)
		if group == nil {
			return false
		}
		for _, m := range group {
			if m == b.Register {
				return true
			}
		}
		return false
	case Memory:
		// Conservative: memory operands may alias unless both base
		// registers are known and differ; index registers are not
		// considered.
		return a.Base == b.Base || a.Base == "" || b.Base == ""
	default:
		return false
	}
}

// FilterKind enumerates the instruction-universe filters the core reads from
// configuration.
type FilterKind string

const (
	FilterNoControlFlow    FilterKind = "no_cf"
	FilterWithMeasurements FilterKind = "with_measurements"
	FilterBlacklist        FilterKind = "blacklist"
	FilterWhitelist        FilterKind = "whitelist"
)

// FilterSpec is one entry of the iwho.filters configuration list.
type FilterSpec struct {
	Kind     FilterKind
	FilePath string // for blacklist/whitelist, a newline-separated list of scheme IDs
	// Listed are the resolved scheme IDs for blacklist/whitelist filters,
	// already loaded from FilePath by the configuration layer.
	Listed []string
}

func applyFilters(schemes []*InsnScheme, filters []FilterSpec) ([]*InsnScheme, error) {
	res := schemes
	for _, f := range filters {
		switch f.Kind {
		case FilterNoControlFlow:
			res = filterFunc(res, func(s *InsnScheme) bool {
				return s.Category != "COND_BR" && s.Category != "UNCOND_BR" && s.Category != "CALL" && s.Category != "RET"
			})
		case FilterWithMeasurements:
			res = filterFunc(res, func(s *InsnScheme) bool { return len(s.UopsOnSKL) > 0 })
		case FilterBlacklist:
			blocked := toSet(f.Listed)
			res = filterFunc(res, func(s *InsnScheme) bool { return !blocked[s.ID] })
		case FilterWhitelist:
			allowed := toSet(f.Listed)
			res = filterFunc(res, func(s *InsnScheme) bool { return allowed[s.ID] })
		default:
			return nil, fmt.Errorf("iwho: unknown filter kind %q", f.Kind)
		}
	}
	return res, nil
}

func filterFunc(in []*InsnScheme, keep func(*InsnScheme) bool) []*InsnScheme {
	res := make([]*InsnScheme, 0, len(in))
	for _, s := range in {
		if keep(s) {
			res = append(res, s)
		}
	}
	return res
}

// NewContext builds a Context for the given iwho.context_specifier,
// applying filters. "x86-64/default" (and the empty string) select the
// bundled DefaultX86Schemes universe; it is the only specifier this package
// ships a scheme database for.
func NewContext(specifier string, filters []FilterSpec) (Context, error) {
	switch specifier {
	case "", "x86-64/default":
		return NewInMemoryContext(DefaultX86Schemes(), filters)
	default:
		return nil, errs.ConfigError("iwho: unknown context_specifier %q", specifier)
	}
}

func toSet(items []string) map[string]bool {
	res := make(map[string]bool, len(items))
	for _, i := range items {
		res[i] = true
	}
	return res
}
