package format

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("syntax error")

// ErrExtension is returned for file names whose extension does not
// identify a supported format.
var ErrExtension = errors.New("invalid file extension")

// tokenizer splits its input into whitespace-separated tokens and keeps
// track of the line each token came from.
type tokenizer struct {
	sc     *bufio.Scanner
	fields []string
	line   int
	peeked bool
	tok    string
	eof    bool
}

func newTokenizer(r io.Reader) *tokenizer {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &tokenizer{sc: sc}
}

func (t *tokenizer) fill() error {
	for len(t.fields) == 0 {
		if !t.sc.Scan() {
			if err := t.sc.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		t.line++
		t.fields = strings.Fields(t.sc.Text())
	}
	return nil
}

// next returns the next token, or io.EOF at the end of the input.
func (t *tokenizer) next() (string, error) {
	if t.peeked {
		t.peeked = false
		return t.tok, nil
	}
	if err := t.fill(); err != nil {
		return "", err
	}
	tok := t.fields[0]
	t.fields = t.fields[1:]
	return tok, nil
}

// peek returns the next token without consuming it.
func (t *tokenizer) peek() (string, error) {
	if t.peeked {
		return t.tok, nil
	}
	tok, err := t.next()
	if err != nil {
		return "", err
	}
	t.tok = tok
	t.peeked = true
	return tok, nil
}

func (t *tokenizer) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, t.line, fmt.Sprintf(format, args...))
}

// int reads the next integer, skipping "Label:" tokens in front of it.
func (t *tokenizer) int(what string) (int, error) {
	for {
		tok, err := t.next()
		if err == io.EOF {
			return 0, t.errorf("unexpected end of input, expected %s", what)
		}
		if err != nil {
			return 0, err
		}
		if strings.HasSuffix(tok, ":") {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return 0, t.errorf("expected %s, got %q", what, tok)
		}
		return n, nil
	}
}

// ints reads n integers. The result grows as values are read, so a
// count larger than the input fails on EOF instead of allocating it.
func (t *tokenizer) ints(n int, what string) ([]int, error) {
	out := make([]int, 0, min(n, 64))
	for len(out) < n {
		x, err := t.int(what)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// expect consumes the next token and checks that it equals want.
func (t *tokenizer) expect(want string) error {
	tok, err := t.next()
	if err == io.EOF {
		return t.errorf("unexpected end of input, expected %q", want)
	}
	if err != nil {
		return err
	}
	if tok != want {
		return t.errorf("expected %q, got %q", want, tok)
	}
	return nil
}

// keyword reads "NAME: value" and returns value.
func (t *tokenizer) keyword(name string) (int, error) {
	if err := t.expect(name + ":"); err != nil {
		return 0, err
	}
	return t.int(name)
}
