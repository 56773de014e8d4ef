package intelhex_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noddybox/casm-go/label"
	"github.com/noddybox/casm-go/membank"
	"github.com/noddybox/casm-go/output/intelhex"
)

func TestWriteEmitsOneRecordPerRowPlusEOF(t *testing.T) {
	mem := membank.New(membank.DefaultSpaceSize)
	mem.SetPC(0)
	mem.PCWrite(0x42)

	var buf bytes.Buffer
	require.NoError(t, intelhex.Sink{NullByte: 0}.Write(&buf, mem, label.New()))

	want := ":1000000042000000000000000000000000000000AE\n:00000001FF\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteSkipsAllNullRows(t *testing.T) {
	mem := membank.New(membank.DefaultSpaceSize)
	mem.SetPC(0)
	for i := 0; i < 16; i++ {
		mem.PCWrite(0xff)
	}

	var buf bytes.Buffer
	require.NoError(t, intelhex.Sink{NullByte: 0xff}.Write(&buf, mem, label.New()))

	// The only row is entirely the configured null byte, so it is skipped
	// and only the end-of-file record remains.
	assert.Equal(t, ":00000001FF\n", buf.String())
}

func TestWriteOnUnusedBankWritesNothing(t *testing.T) {
	mem := membank.New(membank.DefaultSpaceSize)
	var buf bytes.Buffer
	require.NoError(t, intelhex.Sink{}.Write(&buf, mem, label.New()))
	assert.Empty(t, buf.String())
}
