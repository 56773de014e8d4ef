// Package macro implements the macro recorder/player: bodies are recorded
// verbatim during pass 1 and replayed on every pass with positional
// (`\N`, `\*`) and named (`@NAME`) argument substitution, preserving the
// argument's original quoting.
package macro

import (
	"strconv"
	"strings"

	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/intstack"
	"github.com/noddybox/casm-go/token"
)

// MaxInvocationDepth caps nested macro invocations.
const MaxInvocationDepth = 1024

// Line is one recorded body line, kept as raw source text so it can be
// re-tokenized after substitution.
type Line struct {
	Text string
}

// Macro is a recorded definition.
type Macro struct {
	Name       string
	Parameters []string
	Body       []Line
	Pos        asmerr.Position
}

// Store holds every macro defined so far.
type Store struct {
	byName map[string]*Macro
	order  []*Macro
}

// New creates an empty Store.
func New() *Store {
	return &Store{byName: make(map[string]*Macro)}
}

func fold(name string) string { return strings.ToLower(name) }

// Define records a new macro. It is an error to redefine an existing name.
func (s *Store) Define(m *Macro) error {
	key := fold(m.Name)
	if _, exists := s.byName[key]; exists {
		return asmerr.New(m.Pos, asmerr.KindMacro, "macro %q already defined", m.Name)
	}
	s.byName[key] = m
	s.order = append(s.order, m)
	return nil
}

// Lookup finds a macro by name.
func (s *Store) Lookup(name string) (*Macro, bool) {
	m, ok := s.byName[fold(name)]
	return m, ok
}

// Clear empties the store (used when resetting between independent runs).
func (s *Store) Clear() {
	s.byName = make(map[string]*Macro)
	s.order = nil
}

// Invocation is one active macro playback: a (definition, arguments,
// cursor) triple living on the invocation stack.
type Invocation struct {
	def    *Macro
	args   []token.Token
	cursor int
}

// Stack is the invocation stack the pass driver consults for the currently
// playing macro(s); invocations may nest up to MaxInvocationDepth.
type Stack struct {
	frames intstack.Stack[*Invocation]
}

// Begin starts playback of def with the given arguments, enforcing arity
// and the depth cap. It does not check recursion by name: casm macros may
// legitimately recurse so long as they terminate via a conditional driven
// by another directive.
func (s *Stack) Begin(pos asmerr.Position, def *Macro, args []token.Token) (*Invocation, error) {
	if s.frames.Len() >= MaxInvocationDepth {
		return nil, asmerr.New(pos, asmerr.KindMacro, "macro invocation depth exceeded (%d)", MaxInvocationDepth)
	}
	if len(def.Parameters) > 0 && len(def.Parameters) != len(args) {
		return nil, asmerr.New(pos, asmerr.KindMacro, "macro %q expects %d argument(s), got %d",
			def.Name, len(def.Parameters), len(args))
	}
	inv := &Invocation{def: def, args: args}
	s.frames.Push(inv)
	return inv, nil
}

// End pops the current invocation.
func (s *Stack) End() {
	s.frames.Pop()
}

// Active reports the currently playing invocation, if any.
func (s *Stack) Active() (*Invocation, bool) {
	return s.frames.Peek()
}

// Depth reports how many invocations are currently nested.
func (s *Stack) Depth() int { return s.frames.Len() }

// Next returns the next expanded body line of inv, or ok=false once its
// body is exhausted.
func (inv *Invocation) Next() (text string, ok bool) {
	if inv.cursor >= len(inv.def.Body) {
		return "", false
	}
	line := inv.def.Body[inv.cursor]
	inv.cursor++
	return Substitute(line.Text, inv.def.Parameters, inv.args), true
}

// Substitute expands `\N`, `\*`, and `@NAME` markers in one body line.
// Argument text is re-injected with its original quote character restored
// so downstream tokenization sees exactly what the caller wrote.
func Substitute(line string, params []string, args []token.Token) string {
	var sb strings.Builder
	n := len(line)
	for i := 0; i < n; i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < n && line[i+1] == '*':
			sb.WriteString(joinQuoted(args, ", "))
			i++
		case c == '\\' && i+1 < n && isDigit(line[i+1]):
			j := i + 1
			for j < n && isDigit(line[j]) {
				j++
			}
			num, _ := strconv.Atoi(line[i+1 : j])
			sb.WriteString(argText(args, num-1))
			i = j - 1
		case c == '@':
			j := i + 1
			for j < n && isIdentChar(line[j]) {
				j++
			}
			name := line[i+1 : j]
			if name == "" {
				sb.WriteByte(c)
				continue
			}
			sb.WriteString(namedArgText(name, params, args))
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDigit(c)
}

func requote(t token.Token) string {
	if t.Quote == token.NoQuote {
		return t.Text
	}
	closer := byte(t.Quote)
	switch t.Quote {
	case token.ParenQuote:
		closer = ')'
	case token.BracketQuote:
		closer = ']'
	}
	return string(byte(t.Quote)) + t.Text + string(closer)
}

func argText(args []token.Token, idx int) string {
	if idx < 0 || idx >= len(args) {
		return ""
	}
	return requote(args[idx])
}

func namedArgText(name string, params []string, args []token.Token) string {
	for i, p := range params {
		if strings.EqualFold(p, name) {
			return argText(args, i)
		}
	}
	return ""
}

func joinQuoted(args []token.Token, sep string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = requote(a)
	}
	return strings.Join(parts, sep)
}
