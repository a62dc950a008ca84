package parse

import (
	"context"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

type (
	Token interface{}

	Char    byte
	Op      string
	Keyword string
	Ident   string
	Number  string

	// String is a format string literal including the quotes.
	String string

	// Bad is a byte no token starts with.
	Bad byte

	Spaces uint64
)

var spaces = NewSpaces(' ', '\t', '\r', '\n', '\v', '\f')

var keywords = map[string]bool{
	"const":    true,
	"int":      true,
	"void":     true,
	"if":       true,
	"else":     true,
	"while":    true,
	"break":    true,
	"continue": true,
	"return":   true,
	"printf":   true,
}

func (s *State) next(ctx context.Context, st int) (tk Token, tst int, i int) {
	if tr := tlog.SpanFromContext(ctx); tr.If("next_token") {
		defer func(st int) {
			tr.Printw("next token", "st", st, "tk", tk, "tst", tst, "i", i, "from", loc.Callers(1, 3))
		}(st)
	}

	st = s.skipSpaces(st)
	i = st

	if i == len(s.b) {
		return nil, st, i
	}

	b := s.b
	c := b[i]

	if i+1 < len(b) {
		switch op := string(b[i : i+2]); op {
		case "<=", ">=", "==", "!=", "&&", "||":
			return Op(op), st, i + 2
		}
	}

	switch c {
	case '+', '-', '*', '/', '%', '<', '>', '!', '=', ';', ',', '(', ')', '[', ']', '{', '}':
		return Char(c), st, i + 1
	case '"':
		i++

		for i < len(b) && b[i] != '"' && b[i] != '\n' {
			if b[i] == '\\' {
				i++
			}

			i++
		}

		if i >= len(b) || b[i] != '"' {
			return Bad(c), st, st
		}

		return String(b[st : i+1]), st, i + 1
	}

	switch {
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_':
		e := skipIdent(b, i)

		if keywords[string(b[i:e])] {
			return Keyword(b[i:e]), st, e
		}

		return Ident(b[i:e]), st, e
	case c >= '0' && c <= '9':
		e := skipNum(b, i)
		return Number(b[i:e]), st, e
	default:
		return Bad(c), st, st
	}
}

// skipSpaces skips whitespace and comments.
func (s *State) skipSpaces(i int) int {
	b := s.b

	for {
		i = spaces.Skip(b, i)

		if i+1 >= len(b) || b[i] != '/' {
			return i
		}

		switch b[i+1] {
		case '/':
			for i < len(b) && b[i] != '\n' {
				i++
			}
		case '*':
			i += 2

			for i+1 < len(b) && !(b[i] == '*' && b[i+1] == '/') {
				i++
			}

			i = min(i+2, len(b))
		default:
			return i
		}
	}
}

func NewSpaces(skip ...byte) (ss Spaces) {
	for _, q := range skip {
		if q >= 64 {
			panic("too high char code")
		}

		ss |= 1 << q
	}

	return
}

func (s Spaces) Skip(b []byte, st int) (i int) {
	i = st

	for i < len(b) && b[i] < 64 && s&(1<<b[i]) != 0 {
		i++
	}

	return
}

func skipNum(b []byte, i int) int {
	for i < len(b) && (b[i] >= '0' && b[i] <= '9' || b[i] >= 'a' && b[i] <= 'f' || b[i] >= 'A' && b[i] <= 'F' || b[i] == 'x' || b[i] == 'X') {
		i++
	}

	return i
}

func skipIdent(b []byte, i int) int {
	for i < len(b) && (b[i] >= 'a' && b[i] <= 'z' || b[i] >= 'A' && b[i] <= 'Z' || b[i] >= '0' && b[i] <= '9' || b[i] == '_') {
		i++
	}

	return i
}

func (c Char) String() string {
	return string(c)
}
