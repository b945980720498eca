package asm

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/joek13/hissvm/value"
)

type rawWord struct {
	text string
	line int
}

// Tokenizer classifies whitespace-separated words into Tokens using
// positional rules. Lines whose first non-whitespace character is '#'
// are stripped before splitting.
type Tokenizer struct {
	words []rawWord
	pos   int
}

// NewTokenizer reads src line by line, discards comment lines, and
// splits the remainder on ASCII whitespace.
func NewTokenizer(src string) *Tokenizer {
	var words []rawWord
	scanner := bufio.NewScanner(strings.NewReader(src))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		for _, w := range strings.Fields(line) {
			words = append(words, rawWord{text: w, line: lineNo})
		}
	}
	return &Tokenizer{words: words}
}

// Peek returns the next token without consuming it.
func (t *Tokenizer) Peek() (Token, error) {
	if t.pos >= len(t.words) {
		return Token{Kind: KindEOF}, nil
	}
	return classify(t.words[t.pos])
}

// Next returns and consumes the next token.
func (t *Tokenizer) Next() (Token, error) {
	tok, err := t.Peek()
	if err != nil {
		return tok, err
	}
	if t.pos < len(t.words) {
		t.pos++
	}
	return tok, nil
}

func classify(w rawWord) (Token, error) {
	s := w.text
	line := w.line

	switch {
	case s == "{":
		return Token{Kind: KindLBrace, Line: line}, nil
	case s == "}":
		return Token{Kind: KindRBrace, Line: line}, nil
	case strings.HasPrefix(s, "."):
		name := strings.TrimSuffix(strings.TrimPrefix(s, "."), ":")
		return Token{Kind: KindSection, Text: name, Line: line}, nil
	case strings.HasSuffix(s, ":") && len(s) > 1:
		return Token{Kind: KindLabel, Text: strings.TrimSuffix(s, ":"), Line: line}, nil
	case strings.HasPrefix(s, "$") && len(s) > 1:
		return Token{Kind: KindIdent, Text: s[1:], Line: line}, nil
	}

	if n, ok := parseInt(s); ok {
		return Token{Kind: KindInt, Int: n, Line: line}, nil
	}

	if s == "hint" || s == "hfunc" {
		return Token{Kind: KindHtype, Text: s, Line: line}, nil
	}

	if op, ok := value.OpcodeFromMnemonic(s); ok {
		return Token{Kind: KindInstr, Op: op, Line: line}, nil
	}

	return Token{}, errf(InvalidToken, line, "%q", s)
}

// parseInt accepts decimal, 0x hex, 0b binary, and 0o octal literals,
// with an optional leading '-'.
func parseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
