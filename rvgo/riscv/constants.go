package riscv

// Address map of the bare-metal execution environment.
const (
	ROMBase = uint32(0x0000_0000)
	RAMBase = uint32(0x8000_0000)

	// ResetVector is where the hart starts fetching after construction or reset.
	ResetVector = ROMBase

	DefaultRAMSize = uint32(32 * 1024)

	InstrSize = uint32(4)
)

// Major opcodes (bits 6:0) of the 32-bit base encoding.
const (
	OpcodeLoad    = 0x03 // 000_0011
	OpcodeMiscMem = 0x0F // 000_1111
	OpcodeOpImm   = 0x13 // 001_0011
	OpcodeAUIPC   = 0x17 // 001_0111
	OpcodeStore   = 0x23 // 010_0011
	OpcodeOp      = 0x33 // 011_0011
	OpcodeLUI     = 0x37 // 011_0111
	OpcodeBranch  = 0x63 // 110_0011
	OpcodeJALR    = 0x67 // 110_0111
	OpcodeJAL     = 0x6F // 110_1111
	OpcodeSystem  = 0x73 // 111_0011
)

// Field masks, used to build opcode-space claims.
const (
	MaskOpcode = uint32(0x0000_007F)
	MaskFunct3 = uint32(0x0000_7000)
	MaskFunct7 = uint32(0xFE00_0000)
)

// Well-known register indices.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegA0   = 10
	RegA7   = 17
)

// ABINames holds the calling-convention name of each integer register.
var ABINames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}
