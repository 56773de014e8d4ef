package macro_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/macro"
	"github.com/noddybox/casm-go/token"
)

var pos = asmerr.Position{Path: "t.asm", Line: 1}

func TestDefineDuplicateIsError(t *testing.T) {
	s := macro.New()
	require.NoError(t, s.Define(&macro.Macro{Name: "push2", Pos: pos}))
	err := s.Define(&macro.Macro{Name: "PUSH2", Pos: pos})
	assert.Error(t, err)
}

func TestLookupCaseInsensitive(t *testing.T) {
	s := macro.New()
	require.NoError(t, s.Define(&macro.Macro{Name: "push2", Pos: pos}))

	m, ok := s.Lookup("PUSH2")
	require.True(t, ok)
	assert.Equal(t, "push2", m.Name)

	_, ok = s.Lookup("nope")
	assert.False(t, ok)
}

// TestNamedArgumentSubstitution checks a macro with @name substitution
// expanding `push2 BC, DE` into two lines.
func TestNamedArgumentSubstitution(t *testing.T) {
	def := &macro.Macro{
		Name:       "push2",
		Parameters: []string{"r1", "r2"},
		Body: []macro.Line{
			{Text: "  PUSH @r1"},
			{Text: "  PUSH @r2"},
		},
		Pos: pos,
	}

	var stack macro.Stack
	args := []token.Token{{Text: "BC"}, {Text: "DE"}}
	inv, err := stack.Begin(pos, def, args)
	require.NoError(t, err)

	line1, ok := inv.Next()
	require.True(t, ok)
	assert.Equal(t, "  PUSH BC", line1)

	line2, ok := inv.Next()
	require.True(t, ok)
	assert.Equal(t, "  PUSH DE", line2)

	_, ok = inv.Next()
	assert.False(t, ok)
}

func TestPositionalSubstitution(t *testing.T) {
	def := &macro.Macro{
		Name: "m",
		Body: []macro.Line{{Text: "XYZ \\1"}},
		Pos:  pos,
	}
	var stack macro.Stack
	args := []token.Token{{Text: "hl", Quote: token.ParenQuote}}
	inv, err := stack.Begin(pos, def, args)
	require.NoError(t, err)

	line, ok := inv.Next()
	require.True(t, ok)
	assert.Equal(t, "XYZ (hl)", line, "argument quoting must be preserved on substitution")
}

func TestStarSubstitutionJoinsAllArguments(t *testing.T) {
	def := &macro.Macro{
		Name: "m",
		Body: []macro.Line{{Text: "DB \\*"}},
		Pos:  pos,
	}
	var stack macro.Stack
	args := []token.Token{{Text: "1"}, {Text: "2"}, {Text: "3"}}
	inv, err := stack.Begin(pos, def, args)
	require.NoError(t, err)

	line, ok := inv.Next()
	require.True(t, ok)
	assert.Equal(t, "DB 1, 2, 3", line)
}

func TestUnknownNamedArgumentInsertsEmptyText(t *testing.T) {
	def := &macro.Macro{
		Name:       "m",
		Parameters: []string{"r1"},
		Body:       []macro.Line{{Text: "X@missing Y"}},
		Pos:        pos,
	}
	var stack macro.Stack
	inv, err := stack.Begin(pos, def, []token.Token{{Text: "A"}})
	require.NoError(t, err)

	line, ok := inv.Next()
	require.True(t, ok)
	assert.Equal(t, "X Y", line)
}

func TestBodyLineWithNoMarkersIsUnchanged(t *testing.T) {
	out := macro.Substitute("NOP", nil, nil)
	assert.Equal(t, "NOP", out)
}

func TestArityMismatchIsError(t *testing.T) {
	def := &macro.Macro{Name: "m", Parameters: []string{"r1", "r2"}, Pos: pos}
	var stack macro.Stack
	_, err := stack.Begin(pos, def, []token.Token{{Text: "A"}})
	assert.Error(t, err)
}

func TestDepthCapEnforced(t *testing.T) {
	def := &macro.Macro{Name: "m", Pos: pos}
	var stack macro.Stack
	for i := 0; i < macro.MaxInvocationDepth; i++ {
		_, err := stack.Begin(pos, def, nil)
		require.NoError(t, err)
	}
	_, err := stack.Begin(pos, def, nil)
	assert.Error(t, err)
}

func TestActiveAndEnd(t *testing.T) {
	def := &macro.Macro{Name: "m", Pos: pos}
	var stack macro.Stack
	_, ok := stack.Active()
	assert.False(t, ok)

	inv, err := stack.Begin(pos, def, nil)
	require.NoError(t, err)

	active, ok := stack.Active()
	require.True(t, ok)
	assert.Same(t, inv, active)

	stack.End()
	_, ok = stack.Active()
	assert.False(t, ok)
}
