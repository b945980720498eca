package module

import (
	"testing"

	"github.com/joek13/hissvm/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Read_HintAndHfunc(t *testing.T) {
	// hint(16)
	hint := append([]byte{byte(value.TypeInt)}, 0, 0, 0, 0, 0, 0, 0, 16)
	// hfunc(arity=2, offset=5)
	hfunc := append([]byte{byte(value.TypeFunc), 2}, 0, 0, 0, 0, 0, 0, 0, 5)

	buf := []byte{'h', 'i', 's', 's', 2}
	buf = append(buf, hfunc...)
	buf = append(buf, hint...)
	buf = append(buf, []byte{0x00, 0x20}...) // noop, halt

	ld := NewLoader()
	m, err := ld.Read(buf)
	require.NoError(t, err)
	require.Len(t, m.Constants, 2)

	assert.Equal(t, value.TypeFunc, m.Constants[0].Type)
	assert.EqualValues(t, 5, m.Constants[0].Func.Offset)
	assert.EqualValues(t, 2, m.Constants[0].Func.Arity)

	assert.Equal(t, value.TypeInt, m.Constants[1].Type)
	assert.EqualValues(t, 16, m.Constants[1].Int)

	assert.Equal(t, []byte{0x00, 0x20}, m.Code)
}

func TestLoader_Read_MissingMagic(t *testing.T) {
	ld := NewLoader()
	_, err := ld.Read([]byte{'x', 'x', 'x', 'x'})
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, MissingMagicBytes, lerr.Kind)
}

func TestLoader_Read_TruncatedBuffer(t *testing.T) {
	ld := NewLoader()
	_, err := ld.Read([]byte{'h', 'i', 's', 's'})
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, UnexpectedEof, lerr.Kind)
}

func TestLoader_Read_UnknownTypeTag(t *testing.T) {
	buf := []byte{'h', 'i', 's', 's', 1, 0xFE}
	ld := NewLoader()
	_, err := ld.Read(buf)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, UnknownTypeTag, lerr.Kind)
}

func TestLoader_Read_EmptyCodeIsAliased(t *testing.T) {
	buf := []byte{'h', 'i', 's', 's', 0}
	ld := NewLoader()
	m, err := ld.Read(buf)
	require.NoError(t, err)
	assert.Empty(t, m.Code)
}

func TestModule_Entry(t *testing.T) {
	m := &Module{Constants: []value.HValue{value.Hfunc(3, 0)}}
	f, err := m.Entry()
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.Offset)

	bad := &Module{Constants: []value.HValue{value.Hint(1)}}
	_, err = bad.Entry()
	assert.Error(t, err)

	empty := &Module{}
	_, err = empty.Entry()
	assert.Error(t, err)
}
