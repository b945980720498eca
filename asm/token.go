package asm

import (
	"fmt"

	"github.com/joek13/hissvm/value"
)

// Kind classifies a token. Classification is positional, not keyworded:
// the same word "hint" is a Htype token, but "foo:" is always a Label
// regardless of what "foo" says.
type Kind int

const (
	KindEOF Kind = iota
	KindLBrace
	KindRBrace
	KindSection
	KindLabel
	// KindIdent is produced only for $-prefixed label references; the
	// grammar has no other source of a bare identifier token.
	KindIdent
	KindInt
	KindHtype
	KindInstr
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "eof"
	case KindLBrace:
		return "lbrace"
	case KindRBrace:
		return "rbrace"
	case KindSection:
		return "section"
	case KindLabel:
		return "label"
	case KindIdent:
		return "ident"
	case KindInt:
		return "int"
	case KindHtype:
		return "htype"
	case KindInstr:
		return "instr"
	default:
		return "unknown"
	}
}

// Token is one classified lexeme. Only the field matching Kind is
// meaningful: Text for Section/Label/Ident/Htype, Int for Int, Op for
// Instr.
type Token struct {
	Kind Kind
	Text string
	Int  int64
	Op   value.Opcode
	Line int
}

func (t Token) String() string {
	switch t.Kind {
	case KindInt:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Int)
	case KindInstr:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Op)
	case KindEOF, KindLBrace, KindRBrace:
		return t.Kind.String()
	default:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Text)
	}
}
