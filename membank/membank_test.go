package membank_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noddybox/casm-go/membank"
)

func TestPCWriteAdvancesAndTracksRange(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.SetPC(0x8000)

	m.PCWrite(0xC3)
	assert.Equal(t, 0x8001, m.PC())

	b := m.Bank(0)
	assert.True(t, b.Used())
	assert.Equal(t, 0x8000, b.MinWritten())
	assert.Equal(t, 0x8000, b.MaxWritten())

	m.PCWrite(0x04)
	assert.Equal(t, 0x8000, b.MinWritten())
	assert.Equal(t, 0x8001, b.MaxWritten())
}

func TestPCWrapsToAddressSpace(t *testing.T) {
	m := membank.New(0x100)
	m.SetPC(0xff)
	m.PCWrite(1)
	assert.Equal(t, 0, m.PC())
}

func TestPCWriteWordLSBFirst(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.SetPC(0x8000)
	lsb := membank.LSBFirst
	m.PCWriteWord(0x8004, &lsb)

	assert.Equal(t, byte(0x04), m.Read(0, 0x8000))
	assert.Equal(t, byte(0x80), m.Read(0, 0x8001))
}

func TestPCWriteWordMSBFirst(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.SetPC(0x8000)
	msb := membank.MSBFirst
	m.PCWriteWord(0x8004, &msb)

	assert.Equal(t, byte(0x80), m.Read(0, 0x8000))
	assert.Equal(t, byte(0x04), m.Read(0, 0x8001))
}

func TestPCWriteWordUsesModelDefaultWhenModeNil(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.WordMode = membank.MSBFirst
	m.SetPC(0x1000)
	m.PCWriteWord(0x0203, nil)

	assert.Equal(t, byte(0x02), m.Read(0, 0x1000))
	assert.Equal(t, byte(0x03), m.Read(0, 0x1001))
}

func TestReadUntouchedIsZero(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	assert.Equal(t, byte(0), m.Read(0, 0x1234))
	assert.Equal(t, byte(0), m.Read(99, 0))
}

func TestPCAddMovesWithoutWriting(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.SetPC(0x10)
	m.PCAdd(5)
	assert.Equal(t, 0x15, m.PC())
	assert.False(t, m.Bank(0).Used())
}

func TestBanksCreatedOnFirstUse(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.SetAddressBank(3)
	assert.Equal(t, 3, m.CurrentBank())
	m.PCWrite(1)
	assert.Contains(t, m.Banks(), 3)
}

func TestBanksSortedAscending(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.SetAddressBank(5)
	m.SetAddressBank(1)
	m.SetAddressBank(3)
	assert.Equal(t, []int{0, 1, 3, 5}, m.Banks())
}

func TestResetWriteMarkersClearsBytesAndPC(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.SetPC(0x100)
	m.PCWrite(0xAA)
	m.SetAddressBank(1)

	m.ResetWriteMarkers()

	assert.Equal(t, 0, m.PC())
	assert.Equal(t, 0, m.CurrentBank())
	assert.False(t, m.Bank(0).Used())
	assert.Equal(t, byte(0), m.Read(0, 0x100))
}

func TestForEachVisitsWrittenRangeInOrder(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.SetPC(0x10)
	m.PCWrite(1)
	m.PCWrite(2)
	m.PCWrite(3)

	var addrs []int
	var values []byte
	m.Bank(0).ForEach(func(addr int, value byte) {
		addrs = append(addrs, addr)
		values = append(values, value)
	})

	assert.Equal(t, []int{0x10, 0x11, 0x12}, addrs)
	assert.Equal(t, []byte{1, 2, 3}, values)
}

func TestForEachOnUnusedBankIsNoop(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	called := false
	m.Bank(0).ForEach(func(addr int, value byte) { called = true })
	assert.False(t, called)
}

func TestSpansMultiplePages(t *testing.T) {
	m := membank.New(membank.DefaultSpaceSize)
	m.SetPC(1020)
	for i := 0; i < 10; i++ {
		m.PCWrite(byte(i))
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, byte(i), m.Read(0, 1020+i))
	}
}
