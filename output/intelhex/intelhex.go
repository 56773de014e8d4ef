// Package intelhex implements Intel HEX output, bit-exact: one
// ":10aaaa00<16 bytes><checksum>" record per populated 16-byte row,
// skipping rows that are entirely the configured null-fill byte, and a
// trailing ":00000001FF" end-of-file record.
package intelhex

import (
	"fmt"
	"io"

	"github.com/noddybox/casm-go/label"
	"github.com/noddybox/casm-go/membank"
	"github.com/noddybox/casm-go/output"
)

func init() { output.Register(Sink{NullByte: 0xff}) }

const rowWidth = 16

// Sink writes a bank as Intel HEX. NullByte is the fill value a
// fully-unwritten row is compared against before being skipped; Bank
// selects which bank to emit.
type Sink struct {
	Bank     int
	NullByte byte
}

func (Sink) Name() string { return "intelhex" }

func (s Sink) Write(w io.Writer, mem *membank.Model, labels *label.Store) error {
	b := mem.Bank(s.Bank)
	if !b.Used() {
		return nil
	}

	start := (b.MinWritten() / rowWidth) * rowWidth
	end := ((b.MaxWritten() / rowWidth) + 1) * rowWidth

	for addr := start; addr < end; addr += rowWidth {
		row := make([]byte, rowWidth)
		allNull := true
		for i := 0; i < rowWidth; i++ {
			v := mem.Read(s.Bank, addr+i)
			row[i] = v
			if v != s.NullByte {
				allNull = false
			}
		}
		if allNull {
			continue
		}
		if err := writeRecord(w, addr, 0x00, row); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, ":00000001FF\n")
	return err
}

func writeRecord(w io.Writer, addr int, recType byte, data []byte) error {
	sum := byte(len(data)) + byte(addr>>8) + byte(addr) + recType
	for _, b := range data {
		sum += b
	}
	cksum := byte(0x100 - int(sum))

	if _, err := fmt.Fprintf(w, ":%02X%04X%02X", len(data), addr&0xffff, recType); err != nil {
		return err
	}
	for _, b := range data {
		if _, err := fmt.Fprintf(w, "%02X", b); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%02X\n", cksum)
	return err
}
