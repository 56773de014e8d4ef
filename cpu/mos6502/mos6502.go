// Package mos6502 implements the MOS 6502 backend: a zero-page/absolute
// auto-selecting encoder that requests a third assembly pass whenever
// ZP_AUTO is active, since an operand's eventual value (not yet known on
// pass 1) decides instruction length.
package mos6502

import (
	"strings"

	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/cpu"
	"github.com/noddybox/casm-go/token"
)

// ZPMode selects how absolute-range operands are encoded.
type ZPMode int

const (
	ZPAuto ZPMode = iota
	ZPOn
	ZPOff
)

const optZP = 0

// addrMode enumerates the 6502 addressing modes the classifier resolves
// to; the opcode tables below are keyed by these.
type addrMode int

const (
	modeImplied addrMode = iota
	modeAccumulator
	modeImmediate
	modeZeroPage
	modeZeroPageX
	modeZeroPageY
	modeAbsolute
	modeAbsoluteX
	modeAbsoluteY
	modeIndirect
	modeIndirectX
	modeIndirectY
	modeRelative
)

// Backend implements cpu.Backend for the 6502.
type Backend struct {
	zp ZPMode
}

func New() *Backend { return &Backend{zp: ZPAuto} }

func (b *Backend) Name() string { return "6502" }

func (b *Backend) Init(env cpu.Env) {
	b.zp = ZPAuto
	if b.zp == ZPAuto {
		env.RequestPasses(3)
	}
}

func (b *Backend) Options() []cpu.Option {
	return []cpu.Option{{Name: "zp", Tag: optZP}}
}

func (b *Backend) SetOption(env cpu.Env, tag int, args []token.Token) error {
	if tag != optZP || len(args) != 1 {
		return nil
	}
	switch strings.ToLower(args[0].Text) {
	case "on":
		b.zp = ZPOn
	case "off":
		b.zp = ZPOff
	case "auto":
		b.zp = ZPAuto
		env.RequestPasses(3)
	}
	return nil
}

// operand is a classified argument: its addressing mode and evaluated
// value (where applicable).
type operand struct {
	mode  addrMode
	value int
}

func (b *Backend) classify(env cpu.Env, pos asmerr.Position, args []token.Token) (operand, error) {
	if len(args) == 0 {
		return operand{mode: modeImplied}, nil
	}
	t := args[0]
	text := strings.ToUpper(strings.TrimSpace(t.Text))

	if len(args) == 1 && t.Quote == token.NoQuote && text == "A" {
		return operand{mode: modeAccumulator}, nil
	}

	if strings.HasPrefix(text, "#") {
		v, err := env.Eval(pos, text[1:])
		if err != nil {
			return operand{}, err
		}
		return operand{mode: modeImmediate, value: v}, nil
	}

	if t.Quote == token.ParenQuote {
		if len(args) == 2 && strings.ToUpper(args[1].Text) == "X" {
			v, err := env.Eval(pos, text)
			if err != nil {
				return operand{}, err
			}
			return operand{mode: modeIndirectX, value: v}, nil
		}
		if strings.HasSuffix(text, ",X") {
			v, err := env.Eval(pos, strings.TrimSuffix(text, ",X"))
			if err != nil {
				return operand{}, err
			}
			return operand{mode: modeIndirectX, value: v}, nil
		}
		v, err := env.Eval(pos, text)
		if err != nil {
			return operand{}, err
		}
		if len(args) == 2 && strings.ToUpper(args[1].Text) == "Y" {
			return operand{mode: modeIndirectY, value: v}, nil
		}
		return operand{mode: modeIndirect, value: v}, nil
	}

	indexed := addrMode(0)
	exprText := text
	if len(args) == 2 {
		switch strings.ToUpper(args[1].Text) {
		case "X":
			indexed = modeAbsoluteX
		case "Y":
			indexed = modeAbsoluteY
		}
	} else if strings.HasSuffix(text, ",X") {
		indexed = modeAbsoluteX
		exprText = strings.TrimSuffix(text, ",X")
	} else if strings.HasSuffix(text, ",Y") {
		indexed = modeAbsoluteY
		exprText = strings.TrimSuffix(text, ",Y")
	}

	v, err := env.Eval(pos, exprText)
	if err != nil {
		return operand{}, err
	}

	base := modeAbsolute
	baseX := modeAbsoluteX
	baseY := modeAbsoluteY

	inZP := v >= 0 && v <= 0xff
	useZP := b.zp == ZPOn || (b.zp == ZPAuto && inZP && env.FinalPass())
	// On non-final passes under ZP_AUTO, optimistically predict zero-page
	// once the value is known to fit; set_needed_passes already guarantees
	// a pass exists to correct a misprediction once labels converge.
	if b.zp == ZPAuto && !env.FinalPass() && inZP {
		useZP = true
	}

	if indexed == modeAbsoluteX {
		if useZP {
			return operand{mode: modeZeroPageX, value: v}, nil
		}
		return operand{mode: baseX, value: v}, nil
	}
	if indexed == modeAbsoluteY {
		if useZP {
			return operand{mode: modeZeroPageY, value: v}, nil
		}
		return operand{mode: baseY, value: v}, nil
	}
	if useZP {
		return operand{mode: modeZeroPage, value: v}, nil
	}
	return operand{mode: base, value: v}, nil
}

// opcodeTable maps a mnemonic to its addressing-mode -> opcode-byte table.
// Only LDX and STX have a ZERO_PAGE_INDEX_Y entry; for the other
// mnemonics Handler encodes a zero-page ,Y operand through the
// ABSOLUTE_INDEX_Y entry with a 16-bit operand.
var opcodeTable = map[string]map[addrMode]byte{
	"LDA": {modeImmediate: 0xA9, modeZeroPage: 0xA5, modeZeroPageX: 0xB5, modeAbsolute: 0xAD, modeAbsoluteX: 0xBD, modeAbsoluteY: 0xB9, modeIndirectX: 0xA1, modeIndirectY: 0xB1},
	"LDX": {modeImmediate: 0xA2, modeZeroPage: 0xA6, modeZeroPageY: 0xB6, modeAbsolute: 0xAE, modeAbsoluteY: 0xBE},
	"LDY": {modeImmediate: 0xA0, modeZeroPage: 0xA4, modeZeroPageX: 0xB4, modeAbsolute: 0xAC, modeAbsoluteX: 0xBC},
	"STA": {modeZeroPage: 0x85, modeZeroPageX: 0x95, modeAbsolute: 0x8D, modeAbsoluteX: 0x9D, modeAbsoluteY: 0x99, modeIndirectX: 0x81, modeIndirectY: 0x91},
	"STX": {modeZeroPage: 0x86, modeZeroPageY: 0x96, modeAbsolute: 0x8E},
	"STY": {modeZeroPage: 0x84, modeZeroPageX: 0x94, modeAbsolute: 0x8C},
	"ADC": {modeImmediate: 0x69, modeZeroPage: 0x65, modeZeroPageX: 0x75, modeAbsolute: 0x6D, modeAbsoluteX: 0x7D, modeAbsoluteY: 0x79, modeIndirectX: 0x61, modeIndirectY: 0x71},
	"SBC": {modeImmediate: 0xE9, modeZeroPage: 0xE5, modeZeroPageX: 0xF5, modeAbsolute: 0xED, modeAbsoluteX: 0xFD, modeAbsoluteY: 0xF9, modeIndirectX: 0xE1, modeIndirectY: 0xF1},
	"AND": {modeImmediate: 0x29, modeZeroPage: 0x25, modeZeroPageX: 0x35, modeAbsolute: 0x2D, modeAbsoluteX: 0x3D, modeAbsoluteY: 0x39, modeIndirectX: 0x21, modeIndirectY: 0x31},
	"ORA": {modeImmediate: 0x09, modeZeroPage: 0x05, modeZeroPageX: 0x15, modeAbsolute: 0x0D, modeAbsoluteX: 0x1D, modeAbsoluteY: 0x19, modeIndirectX: 0x01, modeIndirectY: 0x11},
	"EOR": {modeImmediate: 0x49, modeZeroPage: 0x45, modeZeroPageX: 0x55, modeAbsolute: 0x4D, modeAbsoluteX: 0x5D, modeAbsoluteY: 0x59, modeIndirectX: 0x41, modeIndirectY: 0x51},
	"CMP": {modeImmediate: 0xC9, modeZeroPage: 0xC5, modeZeroPageX: 0xD5, modeAbsolute: 0xCD, modeAbsoluteX: 0xDD, modeAbsoluteY: 0xD9, modeIndirectX: 0xC1, modeIndirectY: 0xD1},
	"CPX": {modeImmediate: 0xE0, modeZeroPage: 0xE4, modeAbsolute: 0xEC},
	"CPY": {modeImmediate: 0xC0, modeZeroPage: 0xC4, modeAbsolute: 0xCC},
	"INC": {modeZeroPage: 0xE6, modeZeroPageX: 0xF6, modeAbsolute: 0xEE, modeAbsoluteX: 0xFE},
	"DEC": {modeZeroPage: 0xC6, modeZeroPageX: 0xD6, modeAbsolute: 0xCE, modeAbsoluteX: 0xDE},
	"ASL": {modeAccumulator: 0x0A, modeZeroPage: 0x06, modeZeroPageX: 0x16, modeAbsolute: 0x0E, modeAbsoluteX: 0x1E},
	"LSR": {modeAccumulator: 0x4A, modeZeroPage: 0x46, modeZeroPageX: 0x56, modeAbsolute: 0x4E, modeAbsoluteX: 0x5E},
	"ROL": {modeAccumulator: 0x2A, modeZeroPage: 0x26, modeZeroPageX: 0x36, modeAbsolute: 0x2E, modeAbsoluteX: 0x3E},
	"ROR": {modeAccumulator: 0x6A, modeZeroPage: 0x66, modeZeroPageX: 0x76, modeAbsolute: 0x6E, modeAbsoluteX: 0x7E},
	"BIT": {modeZeroPage: 0x24, modeAbsolute: 0x2C},
	"JMP": {modeAbsolute: 0x4C, modeIndirect: 0x6C},
	"JSR": {modeAbsolute: 0x20},
}

var impliedTable = map[string]byte{
	"BRK": 0x00, "NOP": 0xEA, "RTI": 0x40, "RTS": 0x60,
	"PHA": 0x48, "PLA": 0x68, "PHP": 0x08, "PLP": 0x28,
	"TAX": 0xAA, "TXA": 0x8A, "TAY": 0xA8, "TYA": 0x98,
	"TSX": 0xBA, "TXS": 0x9A,
	"DEX": 0xCA, "DEY": 0x88, "INX": 0xE8, "INY": 0xC8,
	"CLC": 0x18, "SEC": 0x38, "CLI": 0x58, "SEI": 0x78,
	"CLV": 0xB8, "CLD": 0xD8, "SED": 0xF8,
}

var branchTable = map[string]byte{
	"BPL": 0x10, "BMI": 0x30, "BVC": 0x50, "BVS": 0x70,
	"BCC": 0x90, "BCS": 0xB0, "BNE": 0xD0, "BEQ": 0xF0,
}

func (b *Backend) Handler(env cpu.Env, pos asmerr.Position, label string, command string, args []token.Token) cpu.Status {
	mnem := strings.ToUpper(command)

	if opc, ok := impliedTable[mnem]; ok && len(args) == 0 {
		env.Emit(opc)
		return cpu.OK
	}

	if opc, ok := branchTable[mnem]; ok {
		if len(args) != 1 {
			return cpu.Failed
		}
		target, err := env.Eval(pos, strings.ToUpper(args[0].Text))
		if err != nil {
			return cpu.Failed
		}
		offset := target - (env.PC() + 2)
		if env.FinalPass() && (offset < -128 || offset > 127) {
			env.Warn(pos, "branch offset %d out of range", offset)
			return cpu.Failed
		}
		env.Emit(opc)
		env.Emit(byte(int8(offset)))
		return cpu.OK
	}

	modes, ok := opcodeTable[mnem]
	if !ok {
		return cpu.NotKnown
	}

	op, err := b.classify(env, pos, args)
	if err != nil {
		return cpu.Failed
	}

	opc, ok := modes[op.mode]
	if !ok && op.mode == modeZeroPageY {
		op.mode = modeAbsoluteY
		opc, ok = modes[op.mode]
	}
	if !ok {
		return cpu.Failed
	}

	env.Emit(opc)
	switch op.mode {
	case modeImplied, modeAccumulator:
	case modeImmediate, modeZeroPage, modeZeroPageX, modeZeroPageY, modeIndirectX, modeIndirectY:
		env.Emit(byte(op.value))
	default:
		env.EmitWord(op.value, false)
	}
	return cpu.OK
}
