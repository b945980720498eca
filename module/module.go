// Package module decodes the binary module format emitted by the
// assembler: a magic prefix, a constant pool, and a trailing code
// segment.
package module

import (
	"fmt"

	"github.com/joek13/hissvm/value"
)

// Magic is the four-byte prefix identifying the binary format.
var Magic = [4]byte{'h', 'i', 's', 's'}

// Module is the immutable, in-memory decoding of a binary module: a
// constant pool (by convention constants[0] is the entry point Func) and
// the raw code segment. Offsets inside Func constants and branch
// displacements inside the code are both relative to the start of Code.
type Module struct {
	Constants []value.HValue
	Code      []byte
}

// Entry returns the entry-point function, constants[0], by convention.
func (m *Module) Entry() (value.Func, error) {
	if len(m.Constants) == 0 {
		return value.Func{}, fmt.Errorf("module: empty constant pool, no entry point")
	}
	c := m.Constants[0]
	if c.Type != value.TypeFunc {
		return value.Func{}, fmt.Errorf("module: constants[0] is %s, not hfunc", c.Type)
	}
	return c.Func, nil
}
