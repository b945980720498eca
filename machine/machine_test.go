package machine

import (
	"bytes"
	"testing"

	"github.com/joek13/hissvm/module"
	"github.com/joek13/hissvm/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runToHalt(t *testing.T, m *Machine, w *bytes.Buffer) error {
	t.Helper()
	for {
		halted, err := m.Step(w)
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

func TestMachine_Init_Invariants(t *testing.T) {
	mod := &module.Module{
		Constants: []value.HValue{value.Hfunc(0, 0)},
		Code:      []byte{byte(value.OpHalt)},
	}
	m, err := New(mod)
	require.NoError(t, err)

	assert.Equal(t, 0, m.StackLen())
	frames := m.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, 0, frames[0].FP)
	assert.EqualValues(t, 0, frames[0].RetAddr)
}

func TestMachine_Addition(t *testing.T) {
	// main: pushc 2; pushc 3; pushc 1; call; print; halt
	// add:  loadv 0; loadv 1; iadd; ret
	mainOffset := int64(0)

	main := []byte{
		byte(value.OpPushc), 2,
		byte(value.OpPushc), 3,
		byte(value.OpPushc), 1,
		byte(value.OpCall),
		byte(value.OpPrint),
		byte(value.OpHalt),
	}
	addOffset := int64(len(main))
	add := []byte{
		byte(value.OpLoadv), 0,
		byte(value.OpLoadv), 1,
		byte(value.OpIadd),
		byte(value.OpRet),
	}

	mod := &module.Module{
		Constants: []value.HValue{
			value.Hfunc(mainOffset, 0),
			value.Hfunc(addOffset, 2),
			value.Hint(4),
			value.Hint(6),
		},
		Code: append(append([]byte{}, main...), add...),
	}

	m, err := New(mod)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runToHalt(t, m, &out))
	assert.Equal(t, "10\n", out.String())
}

func TestMachine_SubtractionOrdering(t *testing.T) {
	// pushc A(10); pushc B(3); isub -> top(3) minus next(10) = -7
	code := []byte{
		byte(value.OpPushc), 1,
		byte(value.OpPushc), 2,
		byte(value.OpIsub),
		byte(value.OpHalt),
	}
	mod := &module.Module{
		Constants: []value.HValue{
			value.Hfunc(0, 0),
			value.Hint(10),
			value.Hint(3),
		},
		Code: code,
	}
	m, err := New(mod)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runToHalt(t, m, &out))

	v, err := m.stack.peek()
	require.NoError(t, err)
	assert.EqualValues(t, -7, v.Int)
}

func TestMachine_ConditionalBranch(t *testing.T) {
	build := func(condConst value.HValue) *module.Module {
		// pushc ONE; br 0x00 0x04; pushc FAIL; print; halt; pushc OK; print; halt
		code := []byte{
			byte(value.OpPushc), 1,
			byte(value.OpBr), 0x00, 0x04,
			byte(value.OpPushc), 2,
			byte(value.OpPrint),
			byte(value.OpHalt),
			byte(value.OpPushc), 3,
			byte(value.OpPrint),
			byte(value.OpHalt),
		}
		return &module.Module{
			Constants: []value.HValue{
				value.Hfunc(0, 0),
				condConst,
				value.Hint(0),
				value.Hint(42),
			},
			Code: code,
		}
	}

	t.Run("taken", func(t *testing.T) {
		mod := build(value.Hint(1))
		m, err := New(mod)
		require.NoError(t, err)
		var out bytes.Buffer
		require.NoError(t, runToHalt(t, m, &out))
		assert.Equal(t, "42\n", out.String())
	})

	t.Run("not taken", func(t *testing.T) {
		mod := build(value.Hint(0))
		m, err := New(mod)
		require.NoError(t, err)
		var out bytes.Buffer
		require.NoError(t, runToHalt(t, m, &out))
		assert.Equal(t, "0\n", out.String())
	})
}

func TestMachine_RecursiveFibonacci(t *testing.T) {
	// fib(n) = n<2 ? n : fib(n-1)+fib(n-2)
	// main: pushc 10; pushc fib(1); call; print; halt
	// fib:  pushc 2; loadv 0; isub; icmp lt; br L_BASE
	//       pushc 1; loadv 0; isub; pushc fib(1); call
	//       pushc 2; loadv 0; isub; pushc fib(1); call
	//       iadd; ret
	// L_BASE: loadv 0; ret
	mainCode := []byte{
		byte(value.OpPushc), 2, // 10
		byte(value.OpPushc), 1, // fib func const
		byte(value.OpCall),
		byte(value.OpPrint),
		byte(value.OpHalt),
	}

	// fib body, with a placeholder branch displacement patched below.
	// isub computes (last pushed) - (first pushed), so each "n - k" below
	// pushes the constant k first, then loadv 0.
	recCode := []byte{
		byte(value.OpPushc), 3, // hint(2)
		byte(value.OpLoadv), 0,
		byte(value.OpIsub), // n - 2
		byte(value.OpIcmp), byte(value.CmpLt),
		byte(value.OpBr), 0, 0, // -> baseOffset, patched

		byte(value.OpPushc), 4, // hint(1)
		byte(value.OpLoadv), 0,
		byte(value.OpIsub), // n - 1
		byte(value.OpPushc), 1, // fib func const
		byte(value.OpCall),

		byte(value.OpPushc), 3, // hint(2)
		byte(value.OpLoadv), 0,
		byte(value.OpIsub), // n - 2
		byte(value.OpPushc), 1, // fib func const
		byte(value.OpCall),

		byte(value.OpIadd),
		byte(value.OpRet),
	}
	baseCode := []byte{
		byte(value.OpLoadv), 0,
		byte(value.OpRet),
	}

	fibOffset := int64(len(mainCode))
	brImmOffset := 8 // index of hi byte within recCode, for the br at offset 7-9
	pcAfterImm := int64(len(mainCode)) + int64(brImmOffset) + 2
	baseOffset := int64(len(mainCode)) + int64(len(recCode))
	disp := int16(baseOffset - pcAfterImm)
	recCode[brImmOffset] = byte(disp >> 8)
	recCode[brImmOffset+1] = byte(disp)

	code := append(append(append([]byte{}, mainCode...), recCode...), baseCode...)

	mod := &module.Module{
		Constants: []value.HValue{
			value.Hfunc(0, 0),
			value.Hfunc(fibOffset, 1),
			value.Hint(10),
			value.Hint(2),
			value.Hint(1),
		},
		Code: code,
	}

	m, err := New(mod)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runToHalt(t, m, &out))
	assert.Equal(t, "55\n", out.String())
}

func TestReadSignedOffset(t *testing.T) {
	cases := []struct {
		hi, lo byte
		want   int16
	}{
		{0x00, 0x00, 0},
		{0x00, 0x03, 3},
		{0x7F, 0xFF, 32767},
		{0x80, 0x00, -32768},
		{0xFF, 0xFF, -1},
	}
	for _, c := range cases {
		got := ReadSignedOffset(c.hi, c.lo)
		assert.Equal(t, c.want, got)

		u := uint32(c.hi)<<8 | uint32(c.lo)
		want := int32(u)
		if u >= 0x8000 {
			want -= 0x10000
		}
		assert.EqualValues(t, want, got)
	}
}

func TestMachine_PrintOnEmptyStackIsRuntimeError(t *testing.T) {
	mod := &module.Module{
		Constants: []value.HValue{value.Hfunc(0, 0)},
		Code:      []byte{byte(value.OpPrint)},
	}
	m, err := New(mod)
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = m.Step(&out)
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, StackUnderflow, merr.Kind)
}

func TestMachine_DivideByZero(t *testing.T) {
	// idiv pops x (top, dividend) then y (next, divisor) and computes
	// x/y; pushing the zero divisor first makes it the divisor.
	mod := &module.Module{
		Constants: []value.HValue{
			value.Hfunc(0, 0),
			value.Hint(0),
			value.Hint(5),
		},
		Code: []byte{
			byte(value.OpPushc), 1,
			byte(value.OpPushc), 2,
			byte(value.OpIdiv),
		},
	}
	m, err := New(mod)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, stepN(m, &out, 2))
	_, err = m.Step(&out)
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, DivideByZero, merr.Kind)
}

func stepN(m *Machine, w *bytes.Buffer, n int) error {
	for i := 0; i < n; i++ {
		if _, err := m.Step(w); err != nil {
			return err
		}
	}
	return nil
}

func TestDisassemble(t *testing.T) {
	code := []byte{
		byte(value.OpNoop),
		byte(value.OpPushc), 0x02,
		byte(value.OpJmp), 0x00, 0x01,
		byte(value.OpHalt),
	}
	instrs, err := Disassemble(code)
	require.NoError(t, err)
	require.Len(t, instrs, 4)
	assert.Equal(t, value.OpNoop, instrs[0].Op)
	assert.Equal(t, value.OpPushc, instrs[1].Op)
	assert.Equal(t, []byte{0x02}, instrs[1].Immediates)
	assert.Equal(t, value.OpJmp, instrs[2].Op)
	assert.Equal(t, []byte{0x00, 0x01}, instrs[2].Immediates)
	assert.Equal(t, 6, instrs[3].Offset)
}

func TestDisassemble_UnknownOpcode(t *testing.T) {
	_, err := Disassemble([]byte{0xAB})
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, UnknownOpcode, merr.Kind)
}
