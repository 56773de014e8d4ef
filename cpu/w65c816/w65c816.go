// Package w65c816 implements a reduced 65C816 backend: the 24-bit address
// space variant of the 6502 family, run with a 0x1000000 address-space
// modulus rather than the 6502's 0x10000. Scope here covers the common
// ALU group shared with the 6502 plus BRL's long relative branch; it does
// not model emulation/native mode switching in depth.
package w65c816

import (
	"strings"

	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/cpu"
	"github.com/noddybox/casm-go/token"
)

type addrMode int

const (
	modeImplied addrMode = iota
	modeImmediate
	modeDirectPage
	modeAbsolute
	modeDirectPageX
	modeAbsoluteX
	modeAbsoluteY
	modeAccumulator
)

// Backend implements cpu.Backend for the 65C816.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "65C816" }

func (b *Backend) Init(env cpu.Env) {}

func (b *Backend) Options() []cpu.Option { return nil }

func (b *Backend) SetOption(env cpu.Env, tag int, args []token.Token) error { return nil }

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

	indexed := addrMode(0)
	exprText := text
	if len(args) == 2 {
		switch strings.ToUpper(args[1].Text) {
		case "X":
			indexed = modeAbsoluteX
		case "Y":
			indexed = modeAbsoluteY
		}
	}

	v, err := env.Eval(pos, exprText)
	if err != nil {
		return operand{}, err
	}

	inDP := v >= 0 && v <= 0xff

	if indexed == modeAbsoluteX {
		if inDP {
			return operand{mode: modeDirectPageX, value: v}, nil
		}
		return operand{mode: modeAbsoluteX, value: v}, nil
	}
	if indexed == modeAbsoluteY {
		return operand{mode: modeAbsoluteY, value: v}, nil
	}
	if inDP {
		return operand{mode: modeDirectPage, value: v}, nil
	}
	return operand{mode: modeAbsolute, value: v}, nil
}

// opcodeTable follows the 6502's common ALU group layout, which the
// 65C816 preserves. DEC/INC's ABSOLUTE_INDEX_X entries use the correct
// 0xDE/0xFE encoding.
var opcodeTable = map[string]map[addrMode]byte{
	"LDA": {modeImmediate: 0xA9, modeDirectPage: 0xA5, modeDirectPageX: 0xB5, modeAbsolute: 0xAD, modeAbsoluteX: 0xBD, modeAbsoluteY: 0xB9},
	"STA": {modeDirectPage: 0x85, modeDirectPageX: 0x95, modeAbsolute: 0x8D, modeAbsoluteX: 0x9D, modeAbsoluteY: 0x99},
	"ADC": {modeImmediate: 0x69, modeDirectPage: 0x65, modeDirectPageX: 0x75, modeAbsolute: 0x6D, modeAbsoluteX: 0x7D, modeAbsoluteY: 0x79},
	"SBC": {modeImmediate: 0xE9, modeDirectPage: 0xE5, modeDirectPageX: 0xF5, modeAbsolute: 0xED, modeAbsoluteX: 0xFD, modeAbsoluteY: 0xF9},
	"AND": {modeImmediate: 0x29, modeDirectPage: 0x25, modeDirectPageX: 0x35, modeAbsolute: 0x2D, modeAbsoluteX: 0x3D, modeAbsoluteY: 0x39},
	"ORA": {modeImmediate: 0x09, modeDirectPage: 0x05, modeDirectPageX: 0x15, modeAbsolute: 0x0D, modeAbsoluteX: 0x1D, modeAbsoluteY: 0x19},
	"EOR": {modeImmediate: 0x49, modeDirectPage: 0x45, modeDirectPageX: 0x55, modeAbsolute: 0x4D, modeAbsoluteX: 0x5D, modeAbsoluteY: 0x59},
	"CMP": {modeImmediate: 0xC9, modeDirectPage: 0xC5, modeDirectPageX: 0xD5, modeAbsolute: 0xCD, modeAbsoluteX: 0xDD, modeAbsoluteY: 0xD9},
	"INC": {modeAccumulator: 0x1A, modeDirectPage: 0xE6, modeDirectPageX: 0xF6, modeAbsolute: 0xEE, modeAbsoluteX: 0xFE},
	"DEC": {modeAccumulator: 0x3A, modeDirectPage: 0xC6, modeDirectPageX: 0xD6, modeAbsolute: 0xCE, modeAbsoluteX: 0xDE},
}

var impliedTable = map[string]byte{
	"NOP": 0xEA, "BRK": 0x00, "COP": 0x02, "RTI": 0x40, "RTS": 0x60, "RTL": 0x6B,
	"PHA": 0x48, "PLA": 0x68, "PHP": 0x08, "PLP": 0x28, "PHB": 0x8B, "PLB": 0xAB,
	"PHD": 0x0B, "PLD": 0x2B, "PHK": 0x4B, "PHX": 0xDA, "PLX": 0xFA, "PHY": 0x5A, "PLY": 0x7A,
	"TAX": 0xAA, "TXA": 0x8A, "TAY": 0xA8, "TYA": 0x98, "TSX": 0xBA, "TXS": 0x9A,
	"TCD": 0x5B, "TDC": 0x7B, "TCS": 0x1B, "TSC": 0x3B, "TXY": 0x9B, "TYX": 0xBB,
	"CLC": 0x18, "SEC": 0x38, "CLI": 0x58, "SEI": 0x78, "CLV": 0xB8, "CLD": 0xD8, "SED": 0xF8,
	"XCE": 0xFB, "XBA": 0xEB, "STP": 0xDB, "WAI": 0xCB,
	"DEX": 0xCA, "DEY": 0x88, "INX": 0xE8, "INY": 0xC8,
}

var branchTable = map[string]byte{
	"BPL": 0x10, "BMI": 0x30, "BVC": 0x50, "BVS": 0x70,
	"BCC": 0x90, "BCS": 0xB0, "BNE": 0xD0, "BEQ": 0xF0, "BRA": 0x80,
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
		return b.relBranch(env, pos, opc, strings.ToUpper(args[0].Text), 2, -128, 127)
	}

	if mnem == "BRL" {
		if len(args) != 1 {
			return cpu.Failed
		}
		return b.relBranch(env, pos, 0x82, strings.ToUpper(args[0].Text), 3, -32768, 32767)
	}

	if mnem == "JML" || mnem == "JSL" {
		if len(args) != 1 {
			return cpu.Failed
		}
		v, err := env.Eval(pos, args[0].Text)
		if err != nil {
			return cpu.Failed
		}
		if mnem == "JML" {
			env.Emit(0x5C)
		} else {
			env.Emit(0x22)
		}
		env.EmitWord(v&0xffff, false)
		env.Emit(byte((v >> 16) & 0xff))
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
	if !ok {
		return cpu.Failed
	}

	env.Emit(opc)
	switch op.mode {
	case modeImplied, modeAccumulator:
	case modeImmediate, modeDirectPage, modeDirectPageX:
		env.Emit(byte(op.value))
	default:
		env.EmitWord(op.value, false)
	}
	return cpu.OK
}

func (b *Backend) relBranch(env cpu.Env, pos asmerr.Position, opcode byte, targetExpr string, instrLen, lo, hi int) cpu.Status {
	target, err := env.Eval(pos, targetExpr)
	if err != nil {
		return cpu.Failed
	}
	offset := target - (env.PC() + instrLen)
	if env.FinalPass() && (offset < lo || offset > hi) {
		env.Warn(pos, "branch offset %d out of range", offset)
		return cpu.Failed
	}
	env.Emit(opcode)
	if instrLen == 3 {
		env.EmitWord(offset&0xffff, false)
	} else {
		env.Emit(byte(int8(offset)))
	}
	return cpu.OK
}
