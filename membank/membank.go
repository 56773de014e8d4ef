// Package membank implements a banked, sparse memory model: each bank is
// a map of fixed-size pages allocated on first touch, addresses wrap
// within a configurable modulus, and every bank tracks the range of
// addresses actually written.
package membank

const pageSize = 1024

// DefaultSpaceSize is the 16-bit address space most backends use.
const DefaultSpaceSize = 0x10000

// WordMode selects byte order for word writes.
type WordMode int

const (
	LSBFirst WordMode = iota
	MSBFirst
)

type page [pageSize]byte

// Bank is one addressable memory bank.
type Bank struct {
	pages      map[int]*page
	minWritten int
	maxWritten int
	used       bool
}

func newBank() *Bank {
	return &Bank{pages: make(map[int]*page)}
}

// MinWritten, MaxWritten, Used report the written range (only meaningful
// when Used is true).
func (b *Bank) MinWritten() int { return b.minWritten }
func (b *Bank) MaxWritten() int { return b.maxWritten }
func (b *Bank) Used() bool      { return b.used }

func (b *Bank) pageFor(addr int, alloc bool) *page {
	idx := addr / pageSize
	p, ok := b.pages[idx]
	if !ok {
		if !alloc {
			return nil
		}
		p = &page{}
		b.pages[idx] = p
	}
	return p
}

func (b *Bank) write(addr int, value byte) {
	p := b.pageFor(addr, true)
	p[addr%pageSize] = value
	if !b.used {
		b.minWritten, b.maxWritten = addr, addr
		b.used = true
	} else {
		if addr < b.minWritten {
			b.minWritten = addr
		}
		if addr > b.maxWritten {
			b.maxWritten = addr
		}
	}
}

func (b *Bank) read(addr int) byte {
	p := b.pageFor(addr, false)
	if p == nil {
		return 0
	}
	return p[addr%pageSize]
}

// ForEach calls fn with every address and byte value written into the
// bank, between MinWritten and MaxWritten inclusive, in ascending address
// order. It is a no-op on an unused bank.
func (b *Bank) ForEach(fn func(addr int, value byte)) {
	if !b.used {
		return
	}
	for addr := b.minWritten; addr <= b.maxWritten; addr++ {
		fn(addr, b.read(addr))
	}
}

func (b *Bank) reset() {
	b.pages = make(map[int]*page)
	b.minWritten, b.maxWritten = 0, 0
	b.used = false
}

// Model owns every bank plus the program counter and current-bank
// selector shared by the pass driver and CPU backends.
type Model struct {
	SpaceSize int
	WordMode  WordMode

	banks       map[int]*Bank
	currentBank int
	pc          int
}

// New creates a memory model with the given address-space modulus (use
// DefaultSpaceSize for 16-bit targets, 0x1000000 for 65C816).
func New(spaceSize int) *Model {
	return &Model{
		SpaceSize: spaceSize,
		banks:     map[int]*Bank{0: newBank()},
	}
}

// PC returns the current program counter.
func (m *Model) PC() int { return m.pc }

// SetPC sets the program counter, wrapping to the address space.
func (m *Model) SetPC(v int) { m.pc = wrap(v, m.SpaceSize) }

// SetAddressBank selects the current bank, creating it on first use.
func (m *Model) SetAddressBank(n int) {
	if _, ok := m.banks[n]; !ok {
		m.banks[n] = newBank()
	}
	m.currentBank = n
}

// CurrentBank reports the selected bank number.
func (m *Model) CurrentBank() int { return m.currentBank }

// Bank returns bank n, creating it if it does not yet exist.
func (m *Model) Bank(n int) *Bank {
	b, ok := m.banks[n]
	if !ok {
		b = newBank()
		m.banks[n] = b
	}
	return b
}

// Banks returns every bank number currently in use, in ascending order.
func (m *Model) Banks() []int {
	out := make([]int, 0, len(m.banks))
	for n := range m.banks {
		out = append(out, n)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// PCWrite writes one byte at the current bank and PC, then advances PC.
func (m *Model) PCWrite(value byte) {
	b := m.Bank(m.currentBank)
	b.write(m.pc, value)
	m.pc = wrap(m.pc+1, m.SpaceSize)
}

// PCWriteWord writes two bytes honoring mode (or the model's WordMode when
// mode is nil).
func (m *Model) PCWriteWord(value int, mode *WordMode) {
	lo := byte(value & 0xff)
	hi := byte((value >> 8) & 0xff)
	wm := m.WordMode
	if mode != nil {
		wm = *mode
	}
	if wm == LSBFirst {
		m.PCWrite(lo)
		m.PCWrite(hi)
	} else {
		m.PCWrite(hi)
		m.PCWrite(lo)
	}
}

// PCAdd moves the program counter by delta without writing.
func (m *Model) PCAdd(delta int) {
	m.pc = wrap(m.pc+delta, m.SpaceSize)
}

// Read returns the byte at (bank, addr), or 0 for an untouched location.
func (m *Model) Read(bank, addr int) byte {
	b, ok := m.banks[bank]
	if !ok {
		return 0
	}
	return b.read(wrap(addr, m.SpaceSize))
}

// ResetWriteMarkers clears every bank's written-range tracking at the
// start of a pass -- later passes still need to re-derive them
// deterministically, so the bytes are cleared too; only the bank map
// survives across passes.
func (m *Model) ResetWriteMarkers() {
	for _, b := range m.banks {
		b.reset()
	}
	m.pc = 0
	m.currentBank = 0
}

func wrap(v, modulus int) int {
	v %= modulus
	if v < 0 {
		v += modulus
	}
	return v
}
