// Package asm implements the textual assembler: a tokeniser, a
// two-section grammar parser, and a label-resolving emitter that
// produces the binary module format.
package asm

import (
	"encoding/binary"

	"go.uber.org/zap"
)

type patch struct {
	offset   int // index into constBuf where the 8-byte field starts
	label    string
	line     int
	resolved bool
}

// Assembler holds the state accumulated while emitting a single module:
// the encoded constant pool, the encoded code segment, the forward-
// reference patch list, and the set of labels already defined. It is a
// struct built up via a constructor plus a logger, consumed once.
type Assembler struct {
	tz *Tokenizer

	constBuf     []byte
	numConstants int
	maxConstants int

	codeBuf      []byte
	labelOffsets map[string]int
	patches      []*patch

	logger *zap.Logger
}

// Opt configures an Assembler using the functional-options idiom.
type Opt func(*Assembler) *Assembler

// WithLogger overrides the Assembler's logger.
func WithLogger(l *zap.Logger) Opt {
	return func(a *Assembler) *Assembler {
		a.logger = l
		return a
	}
}

// WithMaxConstants caps the constant pool below the wire format's
// 255-entry ceiling.
func WithMaxConstants(max int) Opt {
	return func(a *Assembler) *Assembler {
		a.maxConstants = max
		return a
	}
}

// New constructs an Assembler that will tokenise src.
func New(src string, opts ...Opt) *Assembler {
	a := &Assembler{
		tz:           NewTokenizer(src),
		labelOffsets: make(map[string]int),
		maxConstants: 255,
		logger:       zap.L(),
	}
	for _, opt := range opts {
		a = opt(a)
	}
	a.logger = a.logger.Named("asm")
	return a
}

// ReadModule tokenises and parses the source, resolves labels, and
// returns the binary module: four magic bytes, the constant count, the
// encoded constant pool, then the raw code bytes. The partial buffer is
// discarded on the first error.
func (a *Assembler) ReadModule() ([]byte, error) {
	if err := a.parseModule(); err != nil {
		return nil, err
	}

	for _, p := range a.patches {
		if !p.resolved {
			return nil, errf(UnresolvedReference, p.line, "label %q was never defined", p.label)
		}
	}

	if a.numConstants > 255 {
		return nil, errf(OutOfRange, 0, "constant pool has %d entries, exceeds wire limit of 255", a.numConstants)
	}

	out := make([]byte, 0, 5+len(a.constBuf)+len(a.codeBuf))
	out = append(out, 'h', 'i', 's', 's')
	out = append(out, byte(a.numConstants))
	out = append(out, a.constBuf...)
	out = append(out, a.codeBuf...)

	a.logger.Debug("assembled module",
		zap.Int("constants", a.numConstants),
		zap.Int("code_len", len(a.codeBuf)),
	)

	return out, nil
}

// defineLabel records name as resolved at the current code offset and
// patches every pending forward reference to it. Re-defining an
// already-resolved label is a DuplicateLabel error.
func (a *Assembler) defineLabel(name string, line int) error {
	if _, exists := a.labelOffsets[name]; exists {
		return errf(DuplicateLabel, line, "%q", name)
	}
	offset := len(a.codeBuf)
	a.labelOffsets[name] = offset

	for _, p := range a.patches {
		if p.label == name && !p.resolved {
			binary.BigEndian.PutUint64(a.constBuf[p.offset:p.offset+8], uint64(offset))
			p.resolved = true
		}
	}
	return nil
}

// emitConstHeader writes a constant's type tag byte into constBuf and
// bumps the constant count, enforcing maxConstants.
func (a *Assembler) emitConstHeader(tag byte, line int) error {
	if a.numConstants >= a.maxConstants {
		return errf(OutOfRange, line, "constant pool exceeds configured max of %d", a.maxConstants)
	}
	a.constBuf = append(a.constBuf, tag)
	a.numConstants++
	return nil
}

// emitInt64 appends v to constBuf as a big-endian 8-byte field.
func (a *Assembler) emitInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	a.constBuf = append(a.constBuf, b[:]...)
}

// emitPlaceholderOffset appends eight 0xFF placeholder bytes to constBuf
// and records a pending patch for label.
func (a *Assembler) emitPlaceholderOffset(label string, line int) {
	offset := len(a.constBuf)
	a.constBuf = append(a.constBuf, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	a.patches = append(a.patches, &patch{offset: offset, label: label, line: line})
}

func fitsByte(v int64) bool {
	return v >= 0 && v <= 255
}
