package alias_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noddybox/casm-go/alias"
)

func TestResolveUnaliasedReturnsUnchanged(t *testing.T) {
	tbl := alias.New()
	assert.Equal(t, "LD", tbl.Resolve("LD"))
}

func TestSetAndResolveCaseInsensitive(t *testing.T) {
	tbl := alias.New()
	tbl.Set("MOV", "LD")
	assert.Equal(t, "LD", tbl.Resolve("mov"))
	assert.Equal(t, "LD", tbl.Resolve("MOV"))
}

func TestClearRemovesAllAliases(t *testing.T) {
	tbl := alias.New()
	tbl.Set("MOV", "LD")
	tbl.Clear()
	assert.Equal(t, "MOV", tbl.Resolve("MOV"))
}

func TestSetOverwritesExisting(t *testing.T) {
	tbl := alias.New()
	tbl.Set("MOV", "LD")
	tbl.Set("MOV", "LDX")
	assert.Equal(t, "LDX", tbl.Resolve("MOV"))
}
