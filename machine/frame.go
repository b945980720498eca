package machine

import "github.com/joek13/hissvm/value"

// Frame is a call-activation record: the callee being executed, the
// frame pointer marking where its locals begin on the value stack, and
// the code offset to resume the caller at on return.
type Frame struct {
	Func    value.Func
	FP      int
	RetAddr int64
}
