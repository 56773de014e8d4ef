// Package raw implements casm's plainest output format: the concatenated
// written region of each bank, bit-exact. A run with more than one
// populated bank writes one file per bank through the driver-supplied
// template; this package itself only ever emits a single bank, letting
// the caller drive the template expansion.
package raw

import (
	"fmt"
	"io"

	"github.com/noddybox/casm-go/label"
	"github.com/noddybox/casm-go/membank"
	"github.com/noddybox/casm-go/output"
)

func init() { output.Register(Sink{}) }

// Sink writes one bank's [min_written, max_written] region verbatim.
type Sink struct {
	// Bank selects which bank to emit; zero by default.
	Bank int
}

func (Sink) Name() string { return "raw" }

func (s Sink) Write(w io.Writer, mem *membank.Model, labels *label.Store) error {
	b := mem.Bank(s.Bank)
	if !b.Used() {
		return nil
	}
	buf := make([]byte, 0, b.MaxWritten()-b.MinWritten()+1)
	b.ForEach(func(addr int, value byte) {
		buf = append(buf, value)
	})
	_, err := w.Write(buf)
	return err
}

// WriteAll writes every populated bank to its own file, with path
// produced by template(bankNumber).
func WriteAll(mem *membank.Model, labels *label.Store, newWriter func(bank int) (io.WriteCloser, error)) error {
	for _, n := range mem.Banks() {
		b := mem.Bank(n)
		if !b.Used() {
			continue
		}
		wc, err := newWriter(n)
		if err != nil {
			return fmt.Errorf("raw: opening output for bank %d: %w", n, err)
		}
		err = (Sink{Bank: n}).Write(wc, mem, labels)
		cerr := wc.Close()
		if err != nil {
			return err
		}
		if cerr != nil {
			return cerr
		}
	}
	return nil
}
