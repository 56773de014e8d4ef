package output_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noddybox/casm-go/label"
	"github.com/noddybox/casm-go/membank"
	"github.com/noddybox/casm-go/output"

	_ "github.com/noddybox/casm-go/output/casmlib"
	_ "github.com/noddybox/casm-go/output/intelhex"
	_ "github.com/noddybox/casm-go/output/raw"
)

func TestLookupFindsRegisteredFormats(t *testing.T) {
	for _, name := range []string{"raw", "intelhex", "casmlib"} {
		_, ok := output.Lookup(name)
		assert.True(t, ok, "expected %q to be registered", name)
	}
}

func TestStubFormatsReturnErrUnsupported(t *testing.T) {
	sink, ok := output.Lookup("speccy-tap")
	require.True(t, ok)
	err := sink.Write(&bytes.Buffer{}, membank.New(membank.DefaultSpaceSize), label.New())
	assert.ErrorIs(t, err, output.ErrUnsupported)
}

func TestNamesIncludesEveryStub(t *testing.T) {
	names := output.Names()
	for _, want := range []string{"c64-tap", "c64-prg", "c64-t64", "zx81-p", "gb-rom", "snes-rom", "nes-ines"} {
		assert.Contains(t, names, want)
	}
}
