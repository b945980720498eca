package machine

import (
	"fmt"

	"github.com/joek13/hissvm/value"
)

// Instruction is one decoded opcode plus its immediate operand bytes, as
// produced by Disassemble. Offset is relative to the start of the code
// segment, matching the offsets used by hfunc constants and branches.
type Instruction struct {
	Offset     int
	Op         value.Opcode
	Immediates []byte
}

// String renders an instruction the way a disassembly listing would:
// "0003: pushc 02".
func (ins Instruction) String() string {
	s := fmt.Sprintf("%04d: %s", ins.Offset, ins.Op)
	for _, b := range ins.Immediates {
		s += fmt.Sprintf(" %02x", b)
	}
	return s
}

// Disassemble linearly decodes a code segment into Instructions. It does
// not follow control flow; it walks the byte stream opcode by opcode,
// the same way the machine's Step does, and is used by the inspect
// package and the -disasm flag on cmd/hissvm. An unknown opcode byte
// stops disassembly and is reported as an error rather than silently
// skipped, since a closed opcode enumeration has no valid "skip this
// byte" case.
func Disassemble(code []byte) ([]Instruction, error) {
	var out []Instruction
	pc := 0
	for pc < len(code) {
		op := value.Opcode(code[pc])
		if _, known := value.Mnemonics[op]; !known {
			return out, errf(UnknownOpcode, "0x%02x at offset %d", byte(op), pc)
		}
		n := op.Immediates()
		if pc+1+n > len(code) {
			return out, errf(PcOutOfBounds, "truncated immediates for %s at offset %d", op, pc)
		}
		imm := append([]byte(nil), code[pc+1:pc+1+n]...)
		out = append(out, Instruction{Offset: pc, Op: op, Immediates: imm})
		pc += 1 + n
	}
	return out, nil
}
