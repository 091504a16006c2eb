package telemetry

// Opcode is the frame's `op` byte, restricted to the known set (spec.md
// §6). Opcodes outside this set cause the parser to discard the byte and
// stay in the OP-seeking state.
type Opcode byte

const (
	OpDirection   Opcode = 0x10
	OpPAGain      Opcode = 0x11
	OpPowerLevel  Opcode = 0x12
	OpMode        Opcode = 0x13
	OpModeIndex   Opcode = 0x14
	OpLinkPhrase  Opcode = 0x15
	OpEnable      Opcode = 0x20
	OpDisable     Opcode = 0x21
	OpTX          Opcode = 0x30
	OpRX          Opcode = 0x31
	OpInfo        Opcode = 0x32
	OpGNSSLoc     Opcode = 0x40
	OpGNSSTime    Opcode = 0x41
	OpGNSSInfo    Opcode = 0x42
	OpTempInfo    Opcode = 0x50
	OpVersionInfo Opcode = 0x60
	OpBootloader  Opcode = 0x80
)

var known = map[Opcode]bool{
	OpDirection: true, OpPAGain: true, OpPowerLevel: true, OpMode: true,
	OpModeIndex: true, OpLinkPhrase: true, OpEnable: true, OpDisable: true,
	OpTX: true, OpRX: true, OpInfo: true, OpGNSSLoc: true, OpGNSSTime: true,
	OpGNSSInfo: true, OpTempInfo: true, OpVersionInfo: true, OpBootloader: true,
}

// IsKnown implements KnownOpcode for Parser.
func IsKnown(op byte) bool { return known[Opcode(op)] }
