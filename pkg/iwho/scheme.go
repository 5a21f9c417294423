// Package iwho is the narrow, stand-in contract for the instruction-scheme
// database and assembler/disassembler front-end that AnICA treats as an
// external collaborator. A real deployment wires this package up to a full
// instruction-scheme database covering an entire ISA; what is defined here is
// the interface the rest of AnICA programs against, plus a small in-memory
// reference universe used for tests and for the bundled examples.
package iwho

import "fmt"

// OperandKind classifies what an OperandScheme can be instantiated to.
type OperandKind uint8

// The operand kinds that AnICA's aliasing analysis cares about. Only
// Register and Memory operands can alias with one another.
const (
	Register OperandKind = iota
	Memory
	Immediate
	Flag
)

// String renders the operand kind the way it appears in serialized operand
// tags, e.g. "REG" in the pair encoding of an aliasing key.
func (k OperandKind) String() string {
	switch k {
	case Register:
		return "REG"
	case Memory:
		return "MEM"
	case Immediate:
		return "IMM"
	case Flag:
		return "FLAG"
	default:
		return "UNKNOWN"
	}
}

// RegisterClass names a set of interchangeable registers, e.g. "GP64" or
// "XMM". Two operands can only be assigned the same concrete register if
// their classes overlap.
type RegisterClass struct {
	Name    string
	Members []string
}

// Contains reports whether a concrete register name belongs to this class.
func (c RegisterClass) Contains(reg string) bool {
	for _, m := range c.Members {
		if m == reg {
			return true
		}
	}
	return false
}

// OperandScheme describes one operand slot of an InsnScheme: what kind of
// operand it is, which concrete values it may be instantiated to, and
// whether it is read and/or written by the instruction.
type OperandScheme struct {
	// Name identifies this operand within its instruction scheme, e.g.
	// "src1" or "mem0". Implicit operands still carry a name so that
	// aliasing pairs can refer to them.
	Name string
	Kind OperandKind
	// Explicit is false for implicit operands (e.g. an implicit RAX or
	// flags operand baked into the mnemonic).
	Explicit bool
	// RegisterClass is set when Kind == Register.
	RegisterClass *RegisterClass
	// BaseClass/IndexClass are set when Kind == Memory; IndexClass may be
	// nil if the addressing mode has no index register.
	BaseClass  *RegisterClass
	IndexClass *RegisterClass
	// Width is the access width in bits, relevant for Memory and
	// Immediate operands.
	Width int
	// IsRead/IsWritten describe the read/write behavior of a Memory
	// operand (a memory operand can be read, written, or both).
	IsRead    bool
	IsWritten bool
}

// CanAliasWith reports whether operands of these two kinds are ever subject
// to aliasing analysis at all. Immediates and flags never alias.
func (k OperandKind) CanAliasWith(other OperandKind) bool {
	aliasable := func(k OperandKind) bool { return k == Register || k == Memory }
	return aliasable(k) && aliasable(other)
}

// InsnScheme is the opaque identifier for a parameterized instruction form:
// a mnemonic together with its operand schemes and the metadata AnICA's
// feature extraction reads (category, extension, ISA set, flag behavior).
type InsnScheme struct {
	// ID uniquely identifies the scheme within a Context. It is used as
	// the serialized value of the exact_scheme feature.
	ID       string
	Mnemonic string
	// ExplicitOperands appear in the textual assembly; ImplicitOperands
	// do not (e.g. an implicit stack pointer update).
	ExplicitOperands []OperandScheme
	ImplicitOperands []OperandScheme
	Category         string
	Extension        string
	ISASet           string
	HasLock          bool
	HasRep           bool
	// UopsOnSKL is an optional per-port micro-op decomposition used by
	// the uops_on_SKL feature, nil if unknown.
	UopsOnSKL []string
}

// AllOperands returns explicit operands followed by implicit ones, which is
// the canonical order used for indexable_operands-style iteration.
func (s *InsnScheme) AllOperands() []OperandScheme {
	res := make([]OperandScheme, 0, len(s.ExplicitOperands)+len(s.ImplicitOperands))
	res = append(res, s.ExplicitOperands...)
	res = append(res, s.ImplicitOperands...)
	return res
}

// Operand looks up one of this scheme's operands by name.
func (s *InsnScheme) Operand(name string) (OperandScheme, bool) {
	for _, op := range s.AllOperands() {
		if op.Name == name {
			return op, true
		}
	}
	return OperandScheme{}, false
}

func (s *InsnScheme) String() string {
	return fmt.Sprintf("%s[%s]", s.Mnemonic, s.ID)
}
