// Package machine implements the interpreter (§4.3): a stack-based
// virtual machine with call frames that steps through a decoded
// module's code segment one instruction at a time.
package machine

import (
	"fmt"
	"io"

	"github.com/joek13/hissvm/module"
	"github.com/joek13/hissvm/value"
	"go.uber.org/zap"
)

// Machine owns the value stack and frame stack and steps through a
// module's code via a functional-options constructor, a named zap
// logger, and a dispatch-per-instruction Step loop.
type Machine struct {
	mod *module.Module

	pc     int64
	stack  *valueStack
	frames []Frame

	strictLocals  bool
	maxFrameDepth int
	logger        *zap.Logger
}

// Opt configures a Machine.
type Opt func(*Machine) *Machine

// WithLogger overrides the Machine's logger.
func WithLogger(l *zap.Logger) Opt {
	return func(m *Machine) *Machine {
		m.logger = l
		return m
	}
}

// WithMaxStackDepth bounds the value stack; 0 means unbounded. Neither
// stack is bounded by the machine itself, so a host wanting a limit
// passes one here.
func WithMaxStackDepth(max int) Opt {
	return func(m *Machine) *Machine {
		m.stack = newValueStack(max)
		return m
	}
}

// WithMaxFrameDepth bounds the frame stack; 0 means unbounded.
func WithMaxFrameDepth(max int) Opt {
	return func(m *Machine) *Machine {
		m.maxFrameDepth = max
		return m
	}
}

// WithStrictLocals makes loadv/storev on a slot outside the current
// value stack return a runtime error naming the locals access, instead
// of the value stack's own generic bounds error.
func WithStrictLocals(strict bool) Opt {
	return func(m *Machine) *Machine {
		m.strictLocals = strict
		return m
	}
}

// New constructs a Machine bound to mod, with an initial frame already
// pushed for the entry function at constants[0].
func New(mod *module.Module, opts ...Opt) (*Machine, error) {
	m := &Machine{
		mod:    mod,
		stack:  newValueStack(0),
		logger: zap.L(),
	}
	for _, opt := range opts {
		m = opt(m)
	}
	m.logger = m.logger.Named("machine")

	entry, err := mod.Entry()
	if err != nil {
		return nil, err
	}

	m.frames = []Frame{{Func: entry, FP: 0, RetAddr: 0}}
	m.pc = entry.Offset

	return m, nil
}

// StackLen reports the current value-stack depth. Exposed for tests.
func (m *Machine) StackLen() int {
	return m.stack.len()
}

// Frames returns a snapshot of the frame stack, most recently pushed
// last.
func (m *Machine) Frames() []Frame {
	out := make([]Frame, len(m.frames))
	copy(out, m.frames)
	return out
}

// PC returns the current program counter.
func (m *Machine) PC() int64 {
	return m.pc
}

func (m *Machine) curFrame() *Frame {
	return &m.frames[len(m.frames)-1]
}

// Step reads one opcode at pc and performs its action, writing any
// `print` output to w. It returns true once execution has halted and
// must not be stepped further. Halt conditions are checked before
// dispatch.
func (m *Machine) Step(w io.Writer) (bool, error) {
	if len(m.frames) == 0 {
		return true, nil
	}
	if m.pc >= int64(len(m.mod.Code)) {
		return true, nil
	}
	if m.pc < 0 {
		return true, errf(PcOutOfBounds, "pc %d out of bounds", m.pc)
	}

	op := value.Opcode(m.mod.Code[m.pc])
	m.pc++

	m.logger.Debug("step", zap.Stringer("op", op), zap.Int64("pc", m.pc-1))

	switch op {
	case value.OpNoop:
		// no effect

	case value.OpPushc:
		idx, err := m.readByte()
		if err != nil {
			return true, err
		}
		if int(idx) >= len(m.mod.Constants) {
			return true, errf(InvalidConstantIndex, "pushc: constant index %d out of range", idx)
		}
		if err := m.stack.push(m.mod.Constants[idx]); err != nil {
			return true, err
		}

	case value.OpPop:
		if _, err := m.stack.pop(); err != nil {
			return true, err
		}

	case value.OpLoadv:
		idx, err := m.readByte()
		if err != nil {
			return true, err
		}
		v, err := m.loadLocal(int(idx))
		if err != nil {
			return true, err
		}
		if err := m.stack.push(v); err != nil {
			return true, err
		}

	case value.OpStorev:
		idx, err := m.readByte()
		if err != nil {
			return true, err
		}
		v, err := m.stack.pop()
		if err != nil {
			return true, err
		}
		if err := m.storeLocal(int(idx), v); err != nil {
			return true, err
		}

	case value.OpHalt:
		return true, nil

	case value.OpCall:
		if err := m.execCall(); err != nil {
			return true, err
		}

	case value.OpRet:
		halted, err := m.execRet()
		if err != nil {
			return true, err
		}
		if halted {
			return true, nil
		}

	case value.OpBr:
		if err := m.execBr(); err != nil {
			return true, err
		}

	case value.OpJmp:
		if err := m.execJmp(); err != nil {
			return true, err
		}

	case value.OpIadd:
		if err := m.binOp(func(x, y int64) (int64, error) { return x + y, nil }); err != nil {
			return true, err
		}

	case value.OpIsub:
		if err := m.binOp(func(x, y int64) (int64, error) { return x - y, nil }); err != nil {
			return true, err
		}

	case value.OpImul:
		if err := m.binOp(func(x, y int64) (int64, error) { return x * y, nil }); err != nil {
			return true, err
		}

	case value.OpIdiv:
		if err := m.binOp(func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, errf(DivideByZero, "division by zero")
			}
			return x / y, nil
		}); err != nil {
			return true, err
		}

	case value.OpIand:
		if err := m.binOp(func(x, y int64) (int64, error) { return x & y, nil }); err != nil {
			return true, err
		}

	case value.OpIor:
		if err := m.binOp(func(x, y int64) (int64, error) { return x | y, nil }); err != nil {
			return true, err
		}

	case value.OpIcmp:
		if err := m.execIcmp(); err != nil {
			return true, err
		}

	case value.OpPrint:
		if err := m.execPrint(w); err != nil {
			return true, err
		}

	default:
		return true, errf(UnknownOpcode, "0x%02x", byte(op))
	}

	return false, nil
}

func (m *Machine) readByte() (byte, error) {
	if m.pc < 0 || m.pc >= int64(len(m.mod.Code)) {
		return 0, errf(PcOutOfBounds, "immediate read at pc %d out of bounds", m.pc)
	}
	b := m.mod.Code[m.pc]
	m.pc++
	return b, nil
}

func (m *Machine) loadLocal(idx int) (value.HValue, error) {
	f := m.curFrame()
	slot := f.FP + idx
	v, err := m.stack.get(slot)
	if err != nil {
		if m.strictLocals {
			return value.HValue{}, errf(StackUnderflow, "loadv: slot %d (fp=%d, idx=%d) not allocated", slot, f.FP, idx)
		}
		return value.HValue{}, err
	}
	return v, nil
}

func (m *Machine) storeLocal(idx int, v value.HValue) error {
	f := m.curFrame()
	slot := f.FP + idx
	if err := m.stack.set(slot, v); err != nil {
		if m.strictLocals {
			return errf(StackUnderflow, "storev: slot %d (fp=%d, idx=%d) not allocated", slot, f.FP, idx)
		}
		return err
	}
	return nil
}

// execCall implements the call convention: pop the callee, derive fp
// from its arity, push a new frame, jump to its offset.
func (m *Machine) execCall() error {
	callee, err := m.stack.pop()
	if err != nil {
		return err
	}
	if callee.Type != value.TypeFunc {
		return errf(TypeMismatch, "call: top of stack is %s, not hfunc", callee.Type)
	}

	arity := int(callee.Func.Arity)
	fp := m.stack.len() - arity
	if fp < 0 {
		return errf(StackUnderflow, "call: arity %d exceeds stack depth %d", arity, m.stack.len())
	}

	if m.maxFrameDepth > 0 && len(m.frames)+1 > m.maxFrameDepth {
		return errf(StackOverflow, "frame depth %d exceeds max %d", len(m.frames)+1, m.maxFrameDepth)
	}

	m.frames = append(m.frames, Frame{
		Func:    callee.Func,
		FP:      fp,
		RetAddr: m.pc,
	})
	m.pc = callee.Func.Offset
	return nil
}

// execRet implements the return convention: pop the frame, pop the
// return value, truncate the stack to fp, push the return value back.
// Returns true if returning from the entry frame halts the machine.
func (m *Machine) execRet() (bool, error) {
	frame := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	m.pc = frame.RetAddr

	retVal, err := m.stack.pop()
	if err != nil {
		return false, err
	}
	m.stack.truncate(frame.FP)
	if err := m.stack.push(retVal); err != nil {
		return false, err
	}

	return len(m.frames) == 0, nil
}

func (m *Machine) execBr() error {
	hi, err := m.readByte()
	if err != nil {
		return err
	}
	lo, err := m.readByte()
	if err != nil {
		return err
	}
	cond, err := m.stack.pop()
	if err != nil {
		return err
	}
	if cond.Type != value.TypeInt {
		return errf(TypeMismatch, "br: condition is %s, not hint", cond.Type)
	}
	if cond.Int != 0 && cond.Int != 1 {
		return errf(InvalidBool, "br: condition %d is not 0 or 1", cond.Int)
	}
	if cond.Bool() {
		m.pc += int64(ReadSignedOffset(hi, lo))
	}
	return nil
}

func (m *Machine) execJmp() error {
	hi, err := m.readByte()
	if err != nil {
		return err
	}
	lo, err := m.readByte()
	if err != nil {
		return err
	}
	m.pc += int64(ReadSignedOffset(hi, lo))
	return nil
}

// binOp implements the two-operand arithmetic contract: pop x (top),
// pop y (next), push f(x, y). isub's x-minus-y ordering falls directly
// out of this shared helper.
func (m *Machine) binOp(f func(x, y int64) (int64, error)) error {
	x, err := m.stack.pop()
	if err != nil {
		return err
	}
	y, err := m.stack.pop()
	if err != nil {
		return err
	}
	if x.Type != value.TypeInt {
		return errf(TypeMismatch, "arithmetic: operand is %s, not hint", x.Type)
	}
	if y.Type != value.TypeInt {
		return errf(TypeMismatch, "arithmetic: operand is %s, not hint", y.Type)
	}
	result, err := f(x.Int, y.Int)
	if err != nil {
		return err
	}
	return m.stack.push(value.Hint(result))
}

func (m *Machine) execIcmp() error {
	cmpByte, err := m.readByte()
	if err != nil {
		return err
	}
	x, err := m.stack.pop()
	if err != nil {
		return err
	}
	if x.Type != value.TypeInt {
		return errf(TypeMismatch, "icmp: operand is %s, not hint", x.Type)
	}

	var result bool
	switch value.CmpCode(cmpByte) {
	case value.CmpEq:
		result = x.Int == 0
	case value.CmpNeq:
		result = x.Int != 0
	case value.CmpLt:
		result = x.Int < 0
	case value.CmpLeq:
		result = x.Int <= 0
	case value.CmpGt:
		result = x.Int > 0
	case value.CmpGeq:
		result = x.Int >= 0
	default:
		return errf(UnknownCmp, "0x%02x", cmpByte)
	}

	out := int64(0)
	if result {
		out = 1
	}
	return m.stack.push(value.Hint(out))
}

func (m *Machine) execPrint(w io.Writer) error {
	v, err := m.stack.peek()
	if err != nil {
		return errf(StackUnderflow, "print: stack is empty")
	}
	_, werr := fmt.Fprintf(w, "%s\n", v)
	return werr
}

// ReadSignedOffset interprets (hi<<8)|lo as an unsigned 16-bit value and
// reinterprets it as a two's-complement signed 16-bit displacement;
// br/jmp widen it to int64 before adding it to pc. The displacement is applied to pc
// after both immediate bytes have been consumed, which is why br/jmp
// read their immediates before calling this.
func ReadSignedOffset(hi, lo byte) int16 {
	u := uint16(hi)<<8 | uint16(lo)
	return int16(u)
}
