package iwho

import (
	"strconv"
	"strings"

	"github.com/cdl-saarland/AnICA/pkg/errs"
)

// ParseAsm parses the line-oriented assembly format BasicBlock.Asm renders
// back into a BasicBlock, resolving each line's mnemonic and operand shapes
// against ctx's filtered scheme universe. Used by "anica generalize" to read
// its asm_file argument.
func ParseAsm(ctx Context, text string) (*BasicBlock, error) {
	var insns []*InsnInstance
	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		insn, err := parseLine(ctx, line)
		if err != nil {
			return nil, errs.WrapIWHOError(err, "iwho: line %d", lineNo+1)
		}
		insns = append(insns, insn)
	}
	return NewBasicBlock(insns), nil
}

func stripPrefixes(line string) (string, bool, bool) {
	hasLock, hasRep := false, false
	for {
		switch {
		case strings.HasPrefix(line, "lock "):
			hasLock = true
			line = strings.TrimPrefix(line, "lock ")
			continue
		case strings.HasPrefix(line, "rep "):
			hasRep = true
			line = strings.TrimPrefix(line, "rep ")
			continue
		}
		return line, hasLock, hasRep
	}
}

func parseLine(ctx Context, line string) (*InsnInstance, error) {
	line, hasLock, hasRep := stripPrefixes(line)

	mnemonic, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	var operandToks []string
	if rest != "" {
		operandToks = strings.Split(rest, ",")
	}

	for _, s := range ctx.FilteredSchemes() {
		if s.Mnemonic != mnemonic || s.HasLock != hasLock || s.HasRep != hasRep {
			continue
		}
		if len(s.ExplicitOperands) != len(operandToks) {
			continue
		}
		operands := map[string]OperandInstance{}
		matched := true
		for i, opScheme := range s.ExplicitOperands {
			inst, err := parseOperand(opScheme, strings.TrimSpace(operandToks[i]))
			if err != nil {
				matched = false
				break
			}
			operands[opScheme.Name] = inst
		}
		if !matched {
			continue
		}
		return &InsnInstance{Scheme: s, Operands: operands}, nil
	}
	return nil, errs.IWHOError("iwho: no scheme matches %q", line)
}

func parseOperand(scheme OperandScheme, tok string) (OperandInstance, error) {
	switch scheme.Kind {
	case Register:
		return OperandInstance{Scheme: scheme, Register: tok}, nil
	case Memory:
		if !strings.HasPrefix(tok, "[") || !strings.HasSuffix(tok, "]") {
			return OperandInstance{}, errs.IWHOError("iwho: expected memory operand, got %q", tok)
		}
		inner := tok[1 : len(tok)-1]
		base, index, _ := strings.Cut(inner, "+")
		return OperandInstance{Scheme: scheme, Base: base, Index: index}, nil
	case Immediate:
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return OperandInstance{}, errs.WrapIWHOError(err, "iwho: malformed immediate %q", tok)
		}
		return OperandInstance{Scheme: scheme, Immediate: v}, nil
	default:
		return OperandInstance{}, errs.IWHOError("iwho: operand %q has unknown kind", scheme.Name)
	}
}
