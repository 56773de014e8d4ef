package asmerr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noddybox/casm-go/asmerr"
)

func TestPositionString(t *testing.T) {
	p := asmerr.Position{Path: "main.asm", Line: 12}
	assert.Equal(t, "main.asm:12", p.String())
}

func TestErrorFormatting(t *testing.T) {
	err := asmerr.New(asmerr.Position{Path: "x.asm", Line: 3}, asmerr.KindSyntax, "bad token %q", "@@")
	assert.Equal(t, `x.asm:3: error: bad token "@@"`, err.Error())
}

func TestWarningFormatting(t *testing.T) {
	w := asmerr.NewWarning(asmerr.Position{Path: "x.asm", Line: 5}, "unused label %q", "foo")
	assert.Equal(t, `x.asm:5: warning: unused label "foo"`, w.String())
}

func TestListAccumulatesAndQuiet(t *testing.T) {
	var l asmerr.List
	assert.False(t, l.HasErrors())

	l.AddWarning(asmerr.NewWarning(asmerr.Position{}, "first"))
	assert.Len(t, l.Warnings, 1)

	l.SetQuiet(true)
	l.AddWarning(asmerr.NewWarning(asmerr.Position{}, "suppressed"))
	assert.Len(t, l.Warnings, 1, "warnings added after SetQuiet(true) should be dropped")

	l.AddError(asmerr.New(asmerr.Position{Path: "a", Line: 1}, asmerr.KindSyntax, "boom"))
	assert.True(t, l.HasErrors())
	assert.Equal(t, "a:1", l.First().Pos.String())
}
