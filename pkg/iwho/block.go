package iwho

import (
	"strconv"
	"strings"
)

// OperandInstance is a concrete assignment of an operand slot: a register
// name, a base/index register pair for a memory access, or an immediate
// value. Exactly one of the fields is meaningful, chosen by Kind.
type OperandInstance struct {
	Scheme    OperandScheme
	Register  string // Kind == Register
	Base      string // Kind == Memory
	Index     string // Kind == Memory, may be ""
	Immediate int64  // Kind == Immediate
}

// Kind is a convenience accessor mirroring the underlying scheme's kind.
func (o OperandInstance) Kind() OperandKind { return o.Scheme.Kind }

// InsnInstance is a concrete instruction: a scheme plus resolved operands,
// keyed by operand name.
type InsnInstance struct {
	Scheme   *InsnScheme
	Operands map[string]OperandInstance
}

// IndexableOperands returns (position, operand) pairs for every Register or
// Memory operand of this instruction, in a stable order. The position is
// used as the operand-index component of an aliasing key.
func (ii *InsnInstance) IndexableOperands() []IndexedOperand {
	var res []IndexedOperand
	opIdx := 0
	for _, opScheme := range ii.Scheme.AllOperands() {
		if opScheme.Kind != Register && opScheme.Kind != Memory {
			continue
		}
		inst, ok := ii.Operands[opScheme.Name]
		if !ok {
			continue
		}
		res = append(res, IndexedOperand{Index: opIdx, Scheme: opScheme, Instance: inst})
		opIdx++
	}
	return res
}

// IndexedOperand pairs an operand's position within its instruction with its
// scheme and resolved instance.
type IndexedOperand struct {
	Index    int
	Scheme   OperandScheme
	Instance OperandInstance
}

func (ii *InsnInstance) String() string {
	var b strings.Builder
	if ii.Scheme.HasLock {
		b.WriteString("lock ")
	}
	if ii.Scheme.HasRep {
		b.WriteString("rep ")
	}
	b.WriteString(ii.Scheme.Mnemonic)
	first := true
	for _, op := range ii.Scheme.ExplicitOperands {
		inst := ii.Operands[op.Name]
		if !first {
			b.WriteString(",")
		} else {
			b.WriteString(" ")
		}
		first = false
		b.WriteString(renderOperand(inst))
	}
	return b.String()
}

func renderOperand(o OperandInstance) string {
	switch o.Kind() {
	case Register:
		return o.Register
	case Memory:
		if o.Index != "" {
			return "[" + o.Base + "+" + o.Index + "]"
		}
		return "[" + o.Base + "]"
	case Immediate:
		return strconv.FormatInt(o.Immediate, 10)
	default:
		return "?"
	}
}

// BasicBlock is a straight-line sequence of instructions, some of which may
// be nil (a "not present" slot, used while abstract insns are still being
// joined).
type BasicBlock struct {
	Insns []*InsnInstance
}

// NewBasicBlock constructs a block from a list of instruction instances.
func NewBasicBlock(insns []*InsnInstance) *BasicBlock {
	return &BasicBlock{Insns: insns}
}

// Len returns the number of instructions, including nil slots.
func (bb *BasicBlock) Len() int { return len(bb.Insns) }

// Asm renders the block as a newline-separated assembly listing, skipping
// absent instructions.
func (bb *BasicBlock) Asm() string {
	var lines []string
	for _, ii := range bb.Insns {
		if ii == nil {
			continue
		}
		lines = append(lines, ii.String())
	}
	return strings.Join(lines, "\n")
}
