package module

import (
	"encoding/binary"

	"github.com/joek13/hissvm/value"
	"go.uber.org/zap"
)

// Loader validates and decodes a byte buffer into a Module. It holds no
// state across calls; Read may be called repeatedly with different
// buffers.
type Loader struct {
	logger *zap.Logger
}

// LoaderOpt configures a Loader using the functional-options idiom.
type LoaderOpt func(*Loader) *Loader

// WithLoaderLogger overrides the Loader's logger.
func WithLoaderLogger(l *zap.Logger) LoaderOpt {
	return func(ld *Loader) *Loader {
		ld.logger = l
		return ld
	}
}

// NewLoader constructs a Loader with the given options applied.
func NewLoader(opts ...LoaderOpt) *Loader {
	ld := &Loader{
		logger: zap.L(),
	}
	for _, opt := range opts {
		ld = opt(ld)
	}
	ld.logger = ld.logger.Named("module")
	return ld
}

// reader is a small cursor over buf tracking how many bytes have been
// consumed, so every read can check against the buffer length before
// slicing.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, errf(UnexpectedEof, "expected 1 byte at offset %d, have %d remaining", r.pos, r.remaining())
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readN(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, errf(UnexpectedEof, "expected %d bytes at offset %d, have %d remaining", n, r.pos, r.remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readInt64() (int64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// Read decodes buf into a Module: the magic prefix, the constant count,
// that many constants, then aliases the remainder as the code segment
// (no copy). Fails fast on the first malformed read.
func (ld *Loader) Read(buf []byte) (*Module, error) {
	r := &reader{buf: buf}

	magic, err := r.readN(4)
	if err != nil {
		return nil, errf(MissingMagicBytes, "buffer too short for magic prefix")
	}
	for i, b := range magic {
		if b != Magic[i] {
			return nil, errf(MissingMagicBytes, "got %q, want %q", magic, Magic)
		}
	}

	count, err := r.readByte()
	if err != nil {
		return nil, errf(UnexpectedEof, "missing constant count byte")
	}

	consts := make([]value.HValue, 0, count)
	for i := 0; i < int(count); i++ {
		v, err := ld.readConstant(r)
		if err != nil {
			return nil, err
		}
		consts = append(consts, v)
	}

	ld.logger.Debug("loaded module",
		zap.Int("constants", len(consts)),
		zap.Int("code_len", r.remaining()),
	)

	return &Module{
		Constants: consts,
		Code:      buf[r.pos:],
	}, nil
}

func (ld *Loader) readConstant(r *reader) (value.HValue, error) {
	tagByte, err := r.readByte()
	if err != nil {
		return value.HValue{}, errf(UnexpectedEof, "missing constant type tag")
	}

	switch value.Type(tagByte) {
	case value.TypeInt:
		i, err := r.readInt64()
		if err != nil {
			return value.HValue{}, err
		}
		return value.Hint(i), nil
	case value.TypeFunc:
		arity, err := r.readByte()
		if err != nil {
			return value.HValue{}, err
		}
		offset, err := r.readInt64()
		if err != nil {
			return value.HValue{}, err
		}
		return value.Hfunc(offset, arity), nil
	default:
		return value.HValue{}, errf(UnknownTypeTag, "0x%02x", tagByte)
	}
}
