package isa

// Field extraction for the 32-bit base encoding. Immediates come back sign-extended
// and already placed, so B and J offsets are multiples of 2 and U values carry zeros
// in their low 12 bits.

func parseOpcode(instr uint32) uint8 {
	return uint8(instr & 0x7F)
}

func parseRd(instr uint32) uint8 {
	return uint8((instr >> 7) & 0x1F)
}

func parseFunct3(instr uint32) uint8 {
	return uint8((instr >> 12) & 0x7)
}

func parseRs1(instr uint32) uint8 {
	return uint8((instr >> 15) & 0x1F)
}

func parseRs2(instr uint32) uint8 {
	return uint8((instr >> 20) & 0x1F)
}

func parseFunct7(instr uint32) uint8 {
	return uint8(instr >> 25)
}

func parseImmTypeI(instr uint32) int32 {
	return int32(instr) >> 20
}

func parseImmTypeS(instr uint32) int32 {
	return int32(instr)>>25<<5 | int32((instr>>7)&0x1F)
}

func parseImmTypeB(instr uint32) int32 {
	return int32(instr)>>31<<12 | // imm[12]
		int32((instr>>7)&0x1)<<11 | // imm[11]
		int32((instr>>25)&0x3F)<<5 | // imm[10:5]
		int32((instr>>8)&0xF)<<1 // imm[4:1]
}

func parseImmTypeU(instr uint32) int32 {
	return int32(instr & 0xFFFF_F000)
}

func parseImmTypeJ(instr uint32) int32 {
	return int32(instr)>>31<<20 | // imm[20]
		int32((instr>>12)&0xFF)<<12 | // imm[19:12]
		int32((instr>>20)&0x1)<<11 | // imm[11]
		int32((instr>>21)&0x3FF)<<1 // imm[10:1]
}

// Opcode returns bits 6:0 of an instruction word.
func Opcode(instr uint32) uint8 {
	return parseOpcode(instr)
}

// Parse splits an instruction word into the fields of the given format.
// Fields the format does not carry are left zero. Op is left for the caller.
func Parse(instr uint32, f Format) Instruction {
	in := Instruction{Raw: instr, Format: f}
	switch f {
	case FormatR:
		in.Rd, in.Funct3, in.Rs1, in.Rs2, in.Funct7 = parseRd(instr), parseFunct3(instr), parseRs1(instr), parseRs2(instr), parseFunct7(instr)
	case FormatI:
		in.Rd, in.Funct3, in.Rs1 = parseRd(instr), parseFunct3(instr), parseRs1(instr)
		in.Imm = parseImmTypeI(instr)
	case FormatS:
		in.Funct3, in.Rs1, in.Rs2 = parseFunct3(instr), parseRs1(instr), parseRs2(instr)
		in.Imm = parseImmTypeS(instr)
	case FormatB:
		in.Funct3, in.Rs1, in.Rs2 = parseFunct3(instr), parseRs1(instr), parseRs2(instr)
		in.Imm = parseImmTypeB(instr)
	case FormatU:
		in.Rd = parseRd(instr)
		in.Imm = parseImmTypeU(instr)
	case FormatJ:
		in.Rd = parseRd(instr)
		in.Imm = parseImmTypeJ(instr)
	}
	return in
}
