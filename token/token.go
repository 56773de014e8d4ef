// Package token implements the line tokenizer: it splits one source line
// into a label, a command, and comma-separated arguments, honoring
// quoting and bracketing.
package token

import (
	"strings"

	"github.com/noddybox/casm-go/asmerr"
)

// Quote identifies how an argument token was wrapped: 0 for unquoted,
// else the opening delimiter.
type Quote byte

const (
	NoQuote     Quote = 0
	SingleQuote Quote = '\''
	DoubleQuote Quote = '"'
	ParenQuote  Quote = '('
	BracketQuote Quote = '['
)

// Token is one argument: its text and how it was quoted.
type Token struct {
	Text  string
	Quote Quote
}

// Line is the tokenized form of one source line.
type Line struct {
	Label       string
	Command     string
	Args        []Token
	Comment     string
	FirstColumn bool // true if the raw line's first character was non-whitespace
}

// CodePage translates a single character (already stripped of its quotes)
// into its code-page integer value. Real code-page tables are an external
// collaborator; the zero value is plain ASCII identity.
type CodePage func(ch byte) int

func asciiCodePage(ch byte) int { return int(ch) }

var closers = map[byte]byte{
	'\'': '\'',
	'"':  '"',
	'(':  ')',
	'[':  ']',
}

// Tokenize splits one raw source line. pos is used only to annotate errors.
func Tokenize(pos asmerr.Position, raw string, cp CodePage) (Line, error) {
	if cp == nil {
		cp = asciiCodePage
	}

	firstColumn := len(raw) > 0 && raw[0] != ' ' && raw[0] != '\t'

	body, comment := stripComment(raw)

	line := Line{FirstColumn: firstColumn, Comment: comment}

	i := 0
	n := len(body)
	skipWS := func() {
		for i < n && (body[i] == ' ' || body[i] == '\t') {
			i++
		}
	}

	skipWS()
	if i >= n {
		return line, nil
	}

	// First token: label if the line started in column 1, else the command.
	// Label/command tokens end at whitespace as well as the argument
	// separator, so "JP later" and "LD A, 1" split into a command token
	// ("JP"/"LD") followed by its arguments rather than swallowing the
	// first argument into the command.
	first, nextI, err := readToken(pos, body, i, true)
	if err != nil {
		return line, err
	}
	i = nextI

	if firstColumn {
		label := strings.TrimSuffix(first.Text, ":")
		line.Label = label
		skipWS()
		if i >= n {
			return line, nil
		}
		cmd, nextI2, err := readToken(pos, body, i, true)
		if err != nil {
			return line, err
		}
		i = nextI2
		line.Command = cmd.Text
	} else {
		line.Command = first.Text
	}

	// Remaining tokens are comma-separated arguments; unquoted argument
	// text may itself contain whitespace (e.g. "1 + 2"), so only the
	// comma separator ends an unquoted argument token.
	for {
		skipWS()
		if i >= n {
			break
		}
		if body[i] == ',' {
			i++
			continue
		}
		arg, nextI, err := readToken(pos, body, i, false)
		if err != nil {
			return line, err
		}
		i = nextI
		arg = collapseSingleChar(arg, cp)
		line.Args = append(line.Args, arg)
	}

	return line, nil
}

// stripComment removes a trailing `;`-introduced comment that is not inside
// a quoted string, and returns the remaining body plus the comment text.
func stripComment(raw string) (body, comment string) {
	inQuote := byte(0)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inQuote = c
		case ';':
			return raw[:i], strings.TrimSpace(raw[i+1:])
		}
	}
	return raw, ""
}

// readToken reads one token starting at body[i], handling quoting. stopOnSpace
// additionally ends an unquoted token at the first whitespace, used for the
// label/command token so it doesn't absorb the first argument. It returns
// the token and the index just past it.
func readToken(pos asmerr.Position, body string, i int, stopOnSpace bool) (Token, int, error) {
	n := len(body)
	c := body[i]

	if closer, quoted := closers[c]; quoted {
		openCh := c
		start := i + 1
		j := start
		for j < n {
			if body[j] == closer && closingIsHonored(body, j, closer) {
				text := body[start:j]
				return Token{Text: strings.TrimSpace(text), Quote: Quote(openCh)}, j + 1, nil
			}
			j++
		}
		return Token{}, n, asmerr.New(pos, asmerr.KindSyntax, "unterminated quoted string starting with %q", openCh)
	}

	start := i
	for i < n && body[i] != ',' && !(stopOnSpace && (body[i] == ' ' || body[i] == '\t')) {
		i++
	}
	return Token{Text: strings.TrimSpace(body[start:i]), Quote: NoQuote}, i, nil
}

// closingIsHonored reports whether a closing quote only ends the token
// if followed by whitespace, the comma separator, or end of line.
func closingIsHonored(body string, j int, closer byte) bool {
	if body[j] != closer {
		return false
	}
	if j+1 >= len(body) {
		return true
	}
	switch body[j+1] {
	case ' ', '\t', ',':
		return true
	default:
		return false
	}
}

// collapseSingleChar turns a single-character quoted token ('A' or "A")
// into its code-page-translated integer value as plain text, with the
// quoting cleared.
func collapseSingleChar(t Token, cp CodePage) Token {
	if (t.Quote == SingleQuote || t.Quote == DoubleQuote) && len(t.Text) == 1 {
		return Token{Text: itoa(cp(t.Text[0])), Quote: NoQuote}
	}
	return t
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	p := len(buf)
	for n > 0 {
		p--
		buf[p] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		p--
		buf[p] = '-'
	}
	return string(buf[p:])
}
