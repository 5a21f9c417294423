package iwho

// DefaultX86Schemes returns a small, representative universe of x86-64
// instruction schemes. It is not a complete ISA description; it exists so
// that the bundled case studies, examples and tests have a concrete universe
// to sample from without depending on an external instruction database.
func DefaultX86Schemes() []*InsnScheme {
	gp64 := &RegisterClass{Name: "GP64", Members: []string{"RAX", "RBX", "RCX", "RDX", "RSI", "RDI", "R8", "R9"}}
	gp32 := &RegisterClass{Name: "GP32", Members: []string{"EAX", "EBX", "ECX", "EDX", "ESI", "EDI", "R8D", "R9D"}}
	xmm := &RegisterClass{Name: "XMM", Members: []string{"XMM0", "XMM1", "XMM2", "XMM3", "XMM4", "XMM5"}}

	reg64 := func(name string) OperandScheme {
		return OperandScheme{Name: name, Kind: Register, Explicit: true, RegisterClass: gp64}
	}
	reg32 := func(name string) OperandScheme {
		return OperandScheme{Name: name, Kind: Register, Explicit: true, RegisterClass: gp32}
	}
	regXmm := func(name string) OperandScheme {
		return OperandScheme{Name: name, Kind: Register, Explicit: true, RegisterClass: xmm}
	}
	mem64 := func(name string, read, written bool) OperandScheme {
		return OperandScheme{Name: name, Kind: Memory, Explicit: true, BaseClass: gp64, IndexClass: gp64, Width: 64, IsRead: read, IsWritten: written}
	}
	imm := func(name string, width int) OperandScheme {
		return OperandScheme{Name: name, Kind: Immediate, Explicit: true, Width: width}
	}

	binary := func(id, mnemonic string, uops []string) *InsnScheme {
		return &InsnScheme{
			ID:               id,
			Mnemonic:         mnemonic,
			Category:         "BINARY",
			Extension:        "BASE",
			ISASet:           "I86",
			ExplicitOperands: []OperandScheme{reg64("dst"), reg64("src")},
			UopsOnSKL:        uops,
		}
	}

	memBinary := func(id, mnemonic string, uops []string) *InsnScheme {
		return &InsnScheme{
			ID:               id,
			Mnemonic:         mnemonic,
			Category:         "BINARY",
			Extension:        "BASE",
			ISASet:           "I86",
			ExplicitOperands: []OperandScheme{mem64("mem0", true, true), reg64("src")},
			UopsOnSKL:        uops,
		}
	}

	return []*InsnScheme{
		binary("ADD_R64_R64", "add", []string{"P0156"}),
		binary("SUB_R64_R64", "sub", []string{"P0156"}),
		binary("AND_R64_R64", "and", []string{"P0156"}),
		binary("OR_R64_R64", "or", []string{"P0156"}),
		binary("XOR_R64_R64", "xor", []string{"P0156"}),
		memBinary("ADD_M64_R64", "add", []string{"P0156", "P23", "P4"}),
		memBinary("SUB_M64_R64", "sub", []string{"P0156", "P23", "P4"}),
		{
			ID: "MOV_R64_R64", Mnemonic: "mov", Category: "DATAXFER", Extension: "BASE", ISASet: "I86",
			ExplicitOperands: []OperandScheme{reg64("dst"), reg64("src")},
			UopsOnSKL:        []string{"P0156"},
		},
		{
			ID: "MOV_R64_M64", Mnemonic: "mov", Category: "DATAXFER", Extension: "BASE", ISASet: "I86",
			ExplicitOperands: []OperandScheme{reg64("dst"), mem64("mem0", true, false)},
			UopsOnSKL:        []string{"P23"},
		},
		{
			ID: "MOV_M64_R64", Mnemonic: "mov", Category: "DATAXFER", Extension: "BASE", ISASet: "I86",
			ExplicitOperands: []OperandScheme{mem64("mem0", false, true), reg64("src")},
			UopsOnSKL:        []string{"P237", "P4"},
		},
		{
			ID: "IMUL_R32_R32", Mnemonic: "imul", Category: "BINARY", Extension: "BASE", ISASet: "I86",
			ExplicitOperands: []OperandScheme{reg32("dst"), reg32("src")},
			UopsOnSKL:        []string{"P1"},
		},
		{
			ID: "IMUL_R64_R64_I32", Mnemonic: "imul", Category: "BINARY", Extension: "BASE", ISASet: "I86",
			ExplicitOperands: []OperandScheme{reg64("dst"), reg64("src"), imm("imm", 32)},
			UopsOnSKL:        []string{"P1"},
		},
		{
			ID: "ADDPS_XMM_XMM", Mnemonic: "addps", Category: "AVX", Extension: "SSE", ISASet: "SSE",
			ExplicitOperands: []OperandScheme{regXmm("dst"), regXmm("src")},
			UopsOnSKL:        []string{"P01"},
		},
		{
			ID: "MULPS_XMM_XMM", Mnemonic: "mulps", Category: "AVX", Extension: "SSE", ISASet: "SSE",
			ExplicitOperands: []OperandScheme{regXmm("dst"), regXmm("src")},
			UopsOnSKL:        []string{"P01"},
		},
		{
			ID: "NOP", Mnemonic: "nop", Category: "NOP", Extension: "BASE", ISASet: "I86",
			UopsOnSKL: []string{"P0156"},
		},
		{
			ID: "LOCK_ADD_M64_R64", Mnemonic: "add", Category: "BINARY", Extension: "BASE", ISASet: "I86",
			ExplicitOperands: []OperandScheme{mem64("mem0", true, true), reg64("src")},
			HasLock:          true,
			UopsOnSKL:        []string{"P0156", "P23", "P4"},
		},
		{
			ID: "JMP_REL32", Mnemonic: "jmp", Category: "UNCOND_BR", Extension: "BASE", ISASet: "I86",
			ExplicitOperands: []OperandScheme{imm("target", 32)},
			UopsOnSKL:        []string{"P6"},
		},
	}
}
