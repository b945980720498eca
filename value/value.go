// Package value defines HValue, the tagged union of runtime values the
// machine and assembler pass around: signed 64-bit integers (also used to
// encode booleans) and function references.
package value

import "fmt"

// Type is the wire tag byte identifying an HValue variant.
type Type byte

const (
	TypeInt  Type = 0x01
	TypeFunc Type = 0x02
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "hint"
	case TypeFunc:
		return "hfunc"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// Func is a function reference: a byte offset into the code segment and
// the number of arguments it consumes.
type Func struct {
	Offset int64
	Arity  uint8
}

// HValue is the tagged union of runtime values. Exactly one of the
// accessors is meaningful for a given Type; consumption sites must check
// Type before reading Int or Func.
type HValue struct {
	Type Type
	Int  int64
	Func Func
}

// Hint constructs an Int-tagged value.
func Hint(i int64) HValue {
	return HValue{Type: TypeInt, Int: i}
}

// Hfunc constructs a Func-tagged value.
func Hfunc(offset int64, arity uint8) HValue {
	return HValue{Type: TypeFunc, Func: Func{Offset: offset, Arity: arity}}
}

// Bool renders an Int value as a boolean per the 0/1 convention. It
// panics if called on a value whose Int field is not 0 or 1; callers that
// need a runtime error instead should check explicitly.
func (v HValue) Bool() bool {
	switch v.Int {
	case 0:
		return false
	case 1:
		return true
	default:
		panic(fmt.Sprintf("value: %d is not a valid bool", v.Int))
	}
}

// String renders v the way the `print` opcode does.
func (v HValue) String() string {
	switch v.Type {
	case TypeInt:
		return fmt.Sprintf("%d", v.Int)
	case TypeFunc:
		return fmt.Sprintf("func(offset=%d, arity=%d)", v.Func.Offset, v.Func.Arity)
	default:
		return fmt.Sprintf("<invalid value, type=%s>", v.Type)
	}
}
