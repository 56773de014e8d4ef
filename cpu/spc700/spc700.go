// Package spc700 implements a reduced SPC-700 backend (the SNES's sound
// coprocessor CPU). Like the 6502, it supports ZP_ON/ZP_OFF/ZP_AUTO
// direct-page auto-selection and so may also request a third pass.
package spc700

import (
	"strings"

	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/cpu"
	"github.com/noddybox/casm-go/token"
)

// DPMode selects how low-memory operands are encoded.
type DPMode int

const (
	DPAuto DPMode = iota
	DPOn
	DPOff
)

const optDP = 0

type addrMode int

const (
	modeImplied addrMode = iota
	modeImmediate
	modeDirectPage
	modeAbsolute
	modeDirectPageX
	modeAbsoluteX
	modeAbsoluteY
	modeIndirectX
	modeIndirectY
	modeRelative
)

// Backend implements cpu.Backend for the SPC-700.
type Backend struct {
	dp DPMode
}

func New() *Backend { return &Backend{dp: DPAuto} }

func (b *Backend) Name() string { return "SPC700" }

func (b *Backend) Init(env cpu.Env) {
	b.dp = DPAuto
	env.RequestPasses(3)
}

func (b *Backend) Options() []cpu.Option {
	return []cpu.Option{{Name: "dp", Tag: optDP}}
}

func (b *Backend) SetOption(env cpu.Env, tag int, args []token.Token) error {
	if tag != optDP || len(args) != 1 {
		return nil
	}
	switch strings.ToLower(args[0].Text) {
	case "on":
		b.dp = DPOn
	case "off":
		b.dp = DPOff
	case "auto":
		b.dp = DPAuto
		env.RequestPasses(3)
	}
	return nil
}

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
	useDP := b.dp == DPOn || (b.dp == DPAuto && inDP)

	if indexed == modeAbsoluteX {
		if useDP {
			return operand{mode: modeDirectPageX, value: v}, nil
		}
		return operand{mode: modeAbsoluteX, value: v}, nil
	}
	if indexed == modeAbsoluteY {
		return operand{mode: modeAbsoluteY, value: v}, nil
	}
	if useDP {
		return operand{mode: modeDirectPage, value: v}, nil
	}
	return operand{mode: modeAbsolute, value: v}, nil
}

var opcodeTable = map[string]map[addrMode]byte{
	"MOV": {modeImmediate: 0xE8, modeDirectPage: 0xE4, modeDirectPageX: 0xF4, modeAbsolute: 0xE5, modeAbsoluteX: 0xF5, modeAbsoluteY: 0xF6},
	"ADC": {modeImmediate: 0x88, modeDirectPage: 0x84, modeDirectPageX: 0x94, modeAbsolute: 0x85, modeAbsoluteX: 0x95, modeAbsoluteY: 0x96},
	"SBC": {modeImmediate: 0xA8, modeDirectPage: 0xA4, modeDirectPageX: 0xB4, modeAbsolute: 0xA5, modeAbsoluteX: 0xB5, modeAbsoluteY: 0xB6},
	"CMP": {modeImmediate: 0x68, modeDirectPage: 0x64, modeDirectPageX: 0x74, modeAbsolute: 0x65, modeAbsoluteX: 0x75, modeAbsoluteY: 0x76},
	"AND": {modeImmediate: 0x28, modeDirectPage: 0x24, modeDirectPageX: 0x34, modeAbsolute: 0x25, modeAbsoluteX: 0x35, modeAbsoluteY: 0x36},
	"OR":  {modeImmediate: 0x08, modeDirectPage: 0x04, modeDirectPageX: 0x14, modeAbsolute: 0x05, modeAbsoluteX: 0x15, modeAbsoluteY: 0x16},
	"EOR": {modeImmediate: 0x48, modeDirectPage: 0x44, modeDirectPageX: 0x54, modeAbsolute: 0x45, modeAbsoluteX: 0x55, modeAbsoluteY: 0x56},
	"INC": {modeDirectPage: 0xAB, modeAbsolute: 0xAC},
	"DEC": {modeDirectPage: 0x8B, modeAbsolute: 0x8C},
}

var impliedTable = map[string]byte{
	"NOP": 0x00, "SLEEP": 0xEF, "STOP": 0xFF, "RET": 0x6F, "RETI": 0x7F,
	"PUSH_A": 0x2D, "PUSH_X": 0x4D, "PUSH_Y": 0x6D, "PUSH_PSW": 0x0D,
	"POP_A": 0xAE, "POP_X": 0xCE, "POP_Y": 0xEE, "POP_PSW": 0x8E,
	"CLRC": 0x60, "SETC": 0x80, "EI": 0xA0, "DI": 0xC0,
}

var branchTable = map[string]byte{
	"BRA": 0x2F, "BEQ": 0xF0, "BNE": 0xD0, "BCS": 0xB0, "BCC": 0x90,
	"BVS": 0x70, "BVC": 0x50, "BMI": 0x30, "BPL": 0x10,
}

func (b *Backend) Handler(env cpu.Env, pos asmerr.Position, label string, command string, args []token.Token) cpu.Status {
	mnem := strings.ToUpper(command)

	if mnem == "PUSH" || mnem == "POP" {
		if len(args) != 1 {
			return cpu.Failed
		}
		key := mnem + "_" + strings.ToUpper(strings.TrimSpace(args[0].Text))
		if opc, ok := impliedTable[key]; ok {
			env.Emit(opc)
			return cpu.OK
		}
		return cpu.Failed
	}

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

	// The only two-operand form wired here is <op> A, <src>, with <src>
	// classified like a one-operand form; other register combinations
	// (including <dst>, A) fall through to NotKnown, letting the driver try
	// a macro defining them.
	var operandArgs []token.Token
	switch {
	case len(args) == 1:
		operandArgs = args
	case len(args) == 2 && strings.EqualFold(args[0].Text, "A"):
		operandArgs = args[1:]
	default:
		return cpu.NotKnown
	}

	op, err := b.classify(env, pos, operandArgs)
	if err != nil {
		return cpu.Failed
	}

	opc, ok := modes[op.mode]
	if !ok {
		return cpu.Failed
	}

	env.Emit(opc)
	switch op.mode {
	case modeImmediate, modeDirectPage, modeDirectPageX:
		env.Emit(byte(op.value))
	default:
		env.EmitWord(op.value, false)
	}
	return cpu.OK
}
