// Package casmlib implements a self-describing library blob format: magic
// "CASMLIBv2%" (10 bytes), an 11-digit bank count, each bank as (8-hex
// bank number, 8-hex min address, 8-hex length, raw bytes), followed by
// the serialized label blob from the label package. It round-trips
// through label.Store's own WriteBlob/ReadBlob, so this package only
// handles bank framing.
package casmlib

import (
	"bufio"
	"fmt"
	"io"

	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/label"
	"github.com/noddybox/casm-go/membank"
	"github.com/noddybox/casm-go/output"
)

const magic = "CASMLIBv2%"

func init() { output.Register(Sink{}) }

// Sink writes every populated bank plus the label store as one library
// blob.
type Sink struct{}

func (Sink) Name() string { return "casmlib" }

func (Sink) Write(w io.Writer, mem *membank.Model, labels *label.Store) error {
	return Write(w, mem, labels)
}

// Write is Sink.Write without the output.Sink indirection, for callers
// that already hold concrete types (e.g. INCLUDE-time library loading).
func Write(w io.Writer, mem *membank.Model, labels *label.Store) error {
	bw := bufio.NewWriter(w)

	if _, err := io.WriteString(bw, magic); err != nil {
		return err
	}

	var used []int
	for _, n := range mem.Banks() {
		if mem.Bank(n).Used() {
			used = append(used, n)
		}
	}

	if _, err := fmt.Fprintf(bw, "%011d", len(used)); err != nil {
		return err
	}

	for _, n := range used {
		b := mem.Bank(n)
		length := b.MaxWritten() - b.MinWritten() + 1
		if _, err := fmt.Fprintf(bw, "%08X%08X%08X", uint32(n), uint32(b.MinWritten()), uint32(length)); err != nil {
			return err
		}
		var werr error
		b.ForEach(func(addr int, value byte) {
			if werr == nil {
				werr = bw.WriteByte(value)
			}
		})
		if werr != nil {
			return werr
		}
	}

	if err := labels.WriteBlob(bw); err != nil {
		return err
	}

	return bw.Flush()
}

// Read loads a library blob written by Write, applying each bank's bytes
// to mem at its original bank number shifted by addressOffset (wrapped to
// the model's address space) and importing every label into labels as a
// global, each value likewise shifted by addressOffset -- letting a
// library be reloaded and relocated to a different base address.
func Read(r io.Reader, mem *membank.Model, labels *label.Store, addressOffset int) error {
	br := bufio.NewReader(r)

	gotMagic := make([]byte, len(magic))
	if _, err := io.ReadFull(br, gotMagic); err != nil {
		return asmerr.New(asmerr.Position{}, asmerr.KindIO, "casmlib: reading magic: %v", err)
	}
	if string(gotMagic) != magic {
		return asmerr.New(asmerr.Position{}, asmerr.KindIO, "casmlib: bad magic %q", gotMagic)
	}

	count, err := readDecimal(br, 11)
	if err != nil {
		return asmerr.New(asmerr.Position{}, asmerr.KindIO, "casmlib: reading bank count: %v", err)
	}

	for i := 0; i < count; i++ {
		bankNum, err := readHex(br, 8)
		if err != nil {
			return asmerr.New(asmerr.Position{}, asmerr.KindIO, "casmlib: reading bank %d number: %v", i, err)
		}
		min, err := readHex(br, 8)
		if err != nil {
			return asmerr.New(asmerr.Position{}, asmerr.KindIO, "casmlib: reading bank %d min: %v", i, err)
		}
		length, err := readHex(br, 8)
		if err != nil {
			return asmerr.New(asmerr.Position{}, asmerr.KindIO, "casmlib: reading bank %d length: %v", i, err)
		}

		buf := make([]byte, length)
		if _, err := io.ReadFull(br, buf); err != nil {
			return asmerr.New(asmerr.Position{}, asmerr.KindIO, "casmlib: reading bank %d data: %v", i, err)
		}

		mem.SetAddressBank(bankNum)
		mem.SetPC(min + addressOffset)
		for _, v := range buf {
			mem.PCWrite(v)
		}
	}

	return labels.ReadBlob(br, addressOffset)
}

func readDecimal(r *bufio.Reader, n int) (int, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(string(buf), "%d", &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readHex(r *bufio.Reader, n int) (int, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(string(buf), "%X", &v); err != nil {
		return 0, err
	}
	return v, nil
}
