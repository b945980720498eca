package value

// Opcode identifies a single machine instruction. Grounded on the
// teacher's Instruction byte-enum idiom (vm/instruction.go), extended to
// the full opcode table the machine and assembler share.
type Opcode byte

const (
	OpNoop   Opcode = 0x00
	OpPushc  Opcode = 0x11
	OpPop    Opcode = 0x12
	OpLoadv  Opcode = 0x13
	OpStorev Opcode = 0x14
	OpHalt   Opcode = 0x20
	OpCall   Opcode = 0x21
	OpRet    Opcode = 0x22
	OpBr     Opcode = 0x23
	OpJmp    Opcode = 0x24
	OpIadd   Opcode = 0x30
	OpIsub   Opcode = 0x31
	OpImul   Opcode = 0x32
	OpIdiv   Opcode = 0x33
	OpIand   Opcode = 0x34
	OpIor    Opcode = 0x35
	OpIcmp   Opcode = 0x36
	OpPrint  Opcode = 0xF0
)

// Mnemonics maps every known opcode to its assembly-text mnemonic. The
// assembler's tokeniser and the disassembler both walk this table, so it
// is the single source of truth for "known opcode mnemonic" in §4.1.
var Mnemonics = map[Opcode]string{
	OpNoop:   "noop",
	OpPushc:  "pushc",
	OpPop:    "pop",
	OpLoadv:  "loadv",
	OpStorev: "storev",
	OpHalt:   "halt",
	OpCall:   "call",
	OpRet:    "ret",
	OpBr:     "br",
	OpJmp:    "jmp",
	OpIadd:   "iadd",
	OpIsub:   "isub",
	OpImul:   "imul",
	OpIdiv:   "idiv",
	OpIand:   "iand",
	OpIor:    "ior",
	OpIcmp:   "icmp",
	OpPrint:  "print",
}

var mnemonicToOpcode = func() map[string]Opcode {
	m := make(map[string]Opcode, len(Mnemonics))
	for op, name := range Mnemonics {
		m[name] = op
	}
	return m
}()

// OpcodeFromMnemonic looks up an opcode by its assembly mnemonic.
func OpcodeFromMnemonic(s string) (Opcode, bool) {
	op, ok := mnemonicToOpcode[s]
	return op, ok
}

// Immediates reports how many immediate operand bytes follow an opcode
// byte in the code stream. br and jmp take two (a signed 16-bit
// displacement); pushc/loadv/storev/icmp take one.
func (op Opcode) Immediates() int {
	switch op {
	case OpBr, OpJmp:
		return 2
	case OpPushc, OpLoadv, OpStorev, OpIcmp:
		return 1
	default:
		return 0
	}
}

func (op Opcode) String() string {
	if m, ok := Mnemonics[op]; ok {
		return m
	}
	return "unknown"
}

// CmpCode identifies the comparison performed by icmp.
type CmpCode byte

const (
	CmpEq  CmpCode = 0x00
	CmpNeq CmpCode = 0x01
	CmpLt  CmpCode = 0x02
	CmpLeq CmpCode = 0x03
	CmpGt  CmpCode = 0x04
	CmpGeq CmpCode = 0x05
)

func (c CmpCode) String() string {
	switch c {
	case CmpEq:
		return "eq"
	case CmpNeq:
		return "neq"
	case CmpLt:
		return "lt"
	case CmpLeq:
		return "leq"
	case CmpGt:
		return "gt"
	case CmpGeq:
		return "geq"
	default:
		return "unknown"
	}
}
