package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/token"
)

func tokenize(t *testing.T, raw string) token.Line {
	t.Helper()
	line, err := token.Tokenize(asmerr.Position{Path: "t.asm", Line: 1}, raw, nil)
	require.NoError(t, err)
	return line
}

func TestLabelAndCommand(t *testing.T) {
	line := tokenize(t, "later: LD A, 1")
	assert.Equal(t, "later", line.Label)
	assert.Equal(t, "LD", line.Command)
	require.Len(t, line.Args, 2)
	assert.Equal(t, "A", line.Args[0].Text)
	assert.Equal(t, "1", line.Args[1].Text)
}

func TestNoLabelWhenIndented(t *testing.T) {
	line := tokenize(t, "      JP later")
	assert.Empty(t, line.Label)
	assert.Equal(t, "JP", line.Command)
	require.Len(t, line.Args, 1)
	assert.Equal(t, "later", line.Args[0].Text)
}

func TestLabelColonStripped(t *testing.T) {
	line := tokenize(t, "loop:")
	assert.Equal(t, "loop", line.Label)
	assert.Empty(t, line.Command)
}

func TestCommentStripped(t *testing.T) {
	line := tokenize(t, "  NOP ; does nothing")
	assert.Equal(t, "NOP", line.Command)
	assert.Equal(t, "does nothing", line.Comment)
}

func TestCommentInsideQuoteNotStripped(t *testing.T) {
	line := tokenize(t, `  DB "a;b"`)
	require.Len(t, line.Args, 1)
	assert.Equal(t, "a;b", line.Args[0].Text)
	assert.Empty(t, line.Comment)
}

func TestParenthesizedArgument(t *testing.T) {
	line := tokenize(t, "  LD A, (HL)")
	require.Len(t, line.Args, 2)
	assert.Equal(t, "HL", line.Args[1].Text)
	assert.Equal(t, token.ParenQuote, line.Args[1].Quote)
}

func TestBracketedArgument(t *testing.T) {
	line := tokenize(t, "  LD A, [HL]")
	require.Len(t, line.Args, 2)
	assert.Equal(t, "HL", line.Args[1].Text)
	assert.Equal(t, token.BracketQuote, line.Args[1].Quote)
}

func TestSingleCharLiteralCollapsesToCodePoint(t *testing.T) {
	line := tokenize(t, "  DB 'A'")
	require.Len(t, line.Args, 1)
	assert.Equal(t, "65", line.Args[0].Text)
	assert.Equal(t, token.NoQuote, line.Args[0].Quote)
}

func TestClosingQuoteNotHonoredMidWord(t *testing.T) {
	// A closing quote immediately followed by a non-separator character
	// does not end the token: the first '"' here is swallowed into the
	// token text, and only the second one (followed by a comma) actually
	// closes it.
	line := tokenize(t, `  DB "ab"cd", 1`)
	require.Len(t, line.Args, 2)
	assert.Equal(t, `ab"cd`, line.Args[0].Text)
}

func TestUnterminatedStringIsError(t *testing.T) {
	_, err := token.Tokenize(asmerr.Position{Path: "t.asm", Line: 1}, `  DB "abc`, nil)
	require.Error(t, err)
}

func TestMultipleCommaSeparatedArgs(t *testing.T) {
	line := tokenize(t, "  DB 1, 2, 3")
	require.Len(t, line.Args, 3)
	assert.Equal(t, "1", line.Args[0].Text)
	assert.Equal(t, "2", line.Args[1].Text)
	assert.Equal(t, "3", line.Args[2].Text)
}

func TestBlankLine(t *testing.T) {
	line := tokenize(t, "")
	assert.Empty(t, line.Label)
	assert.Empty(t, line.Command)
	assert.Empty(t, line.Args)
}
