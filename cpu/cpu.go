// Package cpu defines the backend contract every per-architecture encoder
// implements, plus the shared addressing-mode classifier machinery every
// concrete backend is built on.
package cpu

import (
	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/token"
)

// Status is a handler's outcome.
type Status int

const (
	OK Status = iota
	Warning
	NotKnown
	Failed
)

// Env is the slice of the pass driver a backend needs: PC/bank access,
// the label resolver, pass state, and byte emission. assemble.Assembler
// implements this.
type Env interface {
	PC() int
	Emit(b byte)
	EmitWord(v int, msbFirst bool)
	Lookup(name string) (int, bool)
	FinalPass() bool
	MarkIncomplete()
	RequestPasses(n int)
	Eval(pos asmerr.Position, text string) (int, error)
	Warn(pos asmerr.Position, format string, args ...any)
}

// Option is one entry of a backend's static option table.
type Option struct {
	Name string
	Tag  int
}

// Backend is the interface every per-architecture encoder implements.
type Backend interface {
	// Name is the CPU/ARCH identifier this backend answers to, e.g. "Z80".
	Name() string
	// Init resets per-assembly option state, possibly calling
	// env.RequestPasses for backends needing a third pass.
	Init(env Env)
	// Options returns the static option-name table.
	Options() []Option
	// SetOption applies one registered option.
	SetOption(env Env, tag int, args []token.Token) error
	// Handler encodes one instruction line.
	Handler(env Env, pos asmerr.Position, label string, command string, args []token.Token) Status
}

// MatchMode selects how a classifier row's identifier is compared.
type MatchMode int

const (
	Exact MatchMode = iota
	StartsWith
)

// ValueMode says whether (and how) trailing text after a matched
// identifier should be evaluated as an expression.
type ValueMode int

const (
	NoValue ValueMode = iota
	ValueExpr
	OffsetExpr // trailing text after e.g. "(IX+" up to the closing paren
)

// TypeFlags is a bitmask describing a matched mode's attributes, tested by
// encoders instead of enumerating every mode tag.
type TypeFlags uint32

const (
	Is8Bit TypeFlags = 1 << iota
	Is16Bit
	IsMemory
	IsIndex
	IsSP
	IsAlternate
	IsValue
	IsIOPort
)

// ModeDescriptor is one row of a backend's addressing-mode table.
type ModeDescriptor struct {
	Tag        string
	QuoteChar  token.Quote // 0 means the token must be unquoted
	Match      MatchMode
	Value      ValueMode
	Identifier string
	Flags      TypeFlags
}

// Mode is the result of classifying one argument token.
type Mode struct {
	Tag   string
	Flags TypeFlags
	// ValueText is the expression text to evaluate for ValueExpr/OffsetExpr
	// rows, empty otherwise.
	ValueText string
}

// Classify walks table in order and returns the first row whose pattern
// matches t ("first match wins").
func Classify(table []ModeDescriptor, t token.Token) (Mode, bool) {
	for _, row := range table {
		if t.Quote != row.QuoteChar {
			continue
		}
		switch row.Match {
		case Exact:
			if equalFold(t.Text, row.Identifier) {
				return buildMode(row, t, len(row.Identifier)), true
			}
		case StartsWith:
			if hasPrefixFold(t.Text, row.Identifier) {
				return buildMode(row, t, len(row.Identifier)), true
			}
		}
	}
	return Mode{}, false
}

func buildMode(row ModeDescriptor, t token.Token, matchedLen int) Mode {
	m := Mode{Tag: row.Tag, Flags: row.Flags}
	switch row.Value {
	case ValueExpr:
		m.ValueText = t.Text
	case OffsetExpr:
		rest := t.Text[matchedLen:]
		m.ValueText = rest
	}
	return m
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return equalFold(s[:len(prefix)], prefix)
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 32
	}
	return c
}
