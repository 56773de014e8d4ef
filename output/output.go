// Package output defines the sink contract every finished assembly is
// handed to (accumulated banks go to an external output sink), plus a
// handful of concrete bit-exact formats. Formats not implemented here
// (Spectrum TAP, Commodore TAP/PRG/T64, ZX81 .P, Gameboy/SNES/NES ROM)
// are registered as stubs that return ErrUnsupported, so the CLI can name
// them without silently mis-encoding a ROM.
package output

import (
	"errors"
	"io"

	"github.com/noddybox/casm-go/label"
	"github.com/noddybox/casm-go/membank"
)

// ErrUnsupported is returned by a stub Sink for a format whose bit-exact
// layout isn't implemented.
var ErrUnsupported = errors.New("output: format not implemented")

// Sink writes the finalized state of one assembly run: every populated
// memory bank, and (for formats that carry them) the label table.
type Sink interface {
	Name() string
	Write(w io.Writer, mem *membank.Model, labels *label.Store) error
}

var registry = map[string]Sink{}

// Register adds a sink under its own Name(), overwriting any prior
// registration for that name.
func Register(s Sink) { registry[s.Name()] = s }

// Lookup returns the sink registered under name.
func Lookup(name string) (Sink, bool) {
	s, ok := registry[name]
	return s, ok
}

// Names returns every registered sink name, in registration order is not
// guaranteed; callers that need a stable order should sort the result.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return out
}

type stub struct{ name string }

func (s stub) Name() string { return s.name }
func (s stub) Write(w io.Writer, mem *membank.Model, labels *label.Store) error {
	return ErrUnsupported
}

func init() {
	for _, name := range []string{
		"speccy-tap", "c64-tap", "c64-prg", "c64-t64",
		"zx81-p", "gb-rom", "snes-rom", "nes-ines",
	} {
		Register(stub{name: name})
	}
}
