package asm

import "github.com/joek13/hissvm/value"

func (a *Assembler) expect(kind Kind) (Token, error) {
	tok, err := a.tz.Next()
	if err != nil {
		return tok, err
	}
	if tok.Kind != kind {
		return tok, errf(UnexpectedToken, tok.Line, "expected %s, got %s", kind, tok)
	}
	return tok, nil
}

func (a *Assembler) expectSection(name string) error {
	tok, err := a.expect(KindSection)
	if err != nil {
		return err
	}
	if tok.Text != name {
		return errf(UnexpectedToken, tok.Line, "expected section %q, got %q", name, tok.Text)
	}
	return nil
}

// parseModule parses the fixed two-section grammar:
//
//	.constants { <constant>* } .code { <code-item>* }
func (a *Assembler) parseModule() error {
	if err := a.expectSection("constants"); err != nil {
		return err
	}
	if _, err := a.expect(KindLBrace); err != nil {
		return err
	}
	if err := a.parseConstants(); err != nil {
		return err
	}
	if _, err := a.expect(KindRBrace); err != nil {
		return err
	}

	if err := a.expectSection("code"); err != nil {
		return err
	}
	if _, err := a.expect(KindLBrace); err != nil {
		return err
	}
	if err := a.parseCode(); err != nil {
		return err
	}
	if _, err := a.expect(KindRBrace); err != nil {
		return err
	}

	return nil
}

// parseConstants consumes `<constant>*` until the closing brace. Each
// constant is `hint <int>` or `hfunc <int> <int-or-$label>`.
func (a *Assembler) parseConstants() error {
	for {
		tok, err := a.tz.Peek()
		if err != nil {
			return err
		}
		if tok.Kind == KindRBrace {
			return nil
		}

		htok, err := a.expect(KindHtype)
		if err != nil {
			return err
		}

		switch htok.Text {
		case "hint":
			itok, err := a.expect(KindInt)
			if err != nil {
				return err
			}
			if err := a.emitConstHeader(byte(value.TypeInt), htok.Line); err != nil {
				return err
			}
			a.emitInt64(itok.Int)

		case "hfunc":
			atok, err := a.expect(KindInt)
			if err != nil {
				return err
			}
			if !fitsByte(atok.Int) {
				return errf(OutOfRange, atok.Line, "arity %d does not fit in a byte", atok.Int)
			}

			next, err := a.tz.Next()
			if err != nil {
				return err
			}

			if err := a.emitConstHeader(byte(value.TypeFunc), htok.Line); err != nil {
				return err
			}
			a.constBuf = append(a.constBuf, byte(atok.Int))

			switch next.Kind {
			case KindInt:
				a.emitInt64(next.Int)
			case KindIdent:
				a.emitPlaceholderOffset(next.Text, next.Line)
			default:
				return errf(UnexpectedToken, next.Line, "expected int or $label, got %s", next)
			}
		}
	}
}

// parseCode consumes `<code-item>*` until the closing brace: label
// definitions, opcode mnemonics (with their immediates), and any
// standalone integer literal used as a raw immediate byte.
func (a *Assembler) parseCode() error {
	for {
		tok, err := a.tz.Peek()
		if err != nil {
			return err
		}
		if tok.Kind == KindRBrace {
			return nil
		}
		if _, err := a.tz.Next(); err != nil {
			return err
		}

		switch tok.Kind {
		case KindLabel:
			if err := a.defineLabel(tok.Text, tok.Line); err != nil {
				return err
			}

		case KindInstr:
			a.codeBuf = append(a.codeBuf, byte(tok.Op))
			n := tok.Op.Immediates()
			for i := 0; i < n; i++ {
				itok, err := a.expect(KindInt)
				if err != nil {
					return err
				}
				if !fitsByte(itok.Int) {
					return errf(OutOfRange, itok.Line, "immediate %d does not fit in a byte", itok.Int)
				}
				a.codeBuf = append(a.codeBuf, byte(itok.Int))
			}

		case KindInt:
			if !fitsByte(tok.Int) {
				return errf(OutOfRange, tok.Line, "immediate %d does not fit in a byte", tok.Int)
			}
			a.codeBuf = append(a.codeBuf, byte(tok.Int))

		default:
			return errf(UnexpectedToken, tok.Line, "unexpected %s in .code", tok)
		}
	}
}
