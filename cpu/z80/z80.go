// Package z80 implements the Zilog Z80 backend. Addressing modes are
// classified with cpu.Classify against a table ordered the classic way a
// register-mode table is ordered: specific register/indirection forms
// first, the ADDRESS/VALUE catch-alls last.
package z80

import (
	"strings"

	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/cpu"
	"github.com/noddybox/casm-go/token"
)

const (
	flag8Bit    = cpu.Is8Bit
	flag16Bit   = cpu.Is16Bit
	flagMemory  = cpu.IsMemory
	flagIndex   = cpu.IsIndex
	flagSP      = cpu.IsSP
	flagAlt     = cpu.IsAlternate
	flagValue   = cpu.IsValue
	flagIOPort  = cpu.IsIOPort
)

// regCode is the 3-bit register encoding used throughout the 8-bit LD/ALU
// opcode groups: B C D E H L (HL) A = 0..7.
var regCode = map[string]int{
	"B": 0, "C": 1, "D": 2, "E": 3, "H": 4, "L": 5, "(HL)": 6, "A": 7,
}

var pairCodeSP = map[string]int{"BC": 0, "DE": 1, "HL": 2, "SP": 3}
var pairCodeAF = map[string]int{"BC": 0, "DE": 1, "HL": 2, "AF": 3}

var modeTable = []cpu.ModeDescriptor{
	{Tag: "A", Match: cpu.Exact, Identifier: "A", Flags: flag8Bit},
	{Tag: "B", Match: cpu.Exact, Identifier: "B", Flags: flag8Bit},
	{Tag: "C", Match: cpu.Exact, Identifier: "C", Flags: flag8Bit},
	{Tag: "D", Match: cpu.Exact, Identifier: "D", Flags: flag8Bit},
	{Tag: "E", Match: cpu.Exact, Identifier: "E", Flags: flag8Bit},
	{Tag: "H", Match: cpu.Exact, Identifier: "H", Flags: flag8Bit},
	{Tag: "L", Match: cpu.Exact, Identifier: "L", Flags: flag8Bit},
	{Tag: "F", Match: cpu.Exact, Identifier: "F", Flags: flag8Bit},
	{Tag: "IXH", Match: cpu.Exact, Identifier: "IXH", Flags: flag8Bit | flagIndex},
	{Tag: "IXL", Match: cpu.Exact, Identifier: "IXL", Flags: flag8Bit | flagIndex},
	{Tag: "IYH", Match: cpu.Exact, Identifier: "IYH", Flags: flag8Bit | flagIndex},
	{Tag: "IYL", Match: cpu.Exact, Identifier: "IYL", Flags: flag8Bit | flagIndex},
	{Tag: "I", Match: cpu.Exact, Identifier: "I", Flags: flag8Bit},
	{Tag: "R", Match: cpu.Exact, Identifier: "R", Flags: flag8Bit},

	{Tag: "AF'", Match: cpu.Exact, Identifier: "AF'", Flags: flag16Bit | flagAlt},
	{Tag: "AF", Match: cpu.Exact, Identifier: "AF", Flags: flag16Bit},
	{Tag: "BC", Match: cpu.Exact, Identifier: "BC", Flags: flag16Bit},
	{Tag: "DE", Match: cpu.Exact, Identifier: "DE", Flags: flag16Bit},
	{Tag: "HL", Match: cpu.Exact, Identifier: "HL", Flags: flag16Bit},
	{Tag: "SP", Match: cpu.Exact, Identifier: "SP", Flags: flag16Bit | flagSP},
	{Tag: "IX", Match: cpu.Exact, Identifier: "IX", Flags: flag16Bit | flagIndex},
	{Tag: "IY", Match: cpu.Exact, Identifier: "IY", Flags: flag16Bit | flagIndex},

	{Tag: "(C)", QuoteChar: token.ParenQuote, Match: cpu.Exact, Identifier: "C", Flags: flagMemory | flagIOPort},
	{Tag: "(BC)", QuoteChar: token.ParenQuote, Match: cpu.Exact, Identifier: "BC", Flags: flagMemory},
	{Tag: "(DE)", QuoteChar: token.ParenQuote, Match: cpu.Exact, Identifier: "DE", Flags: flagMemory},
	{Tag: "(HL)", QuoteChar: token.ParenQuote, Match: cpu.Exact, Identifier: "HL", Flags: flagMemory},
	{Tag: "(SP)", QuoteChar: token.ParenQuote, Match: cpu.Exact, Identifier: "SP", Flags: flagMemory},
	{Tag: "(IX+d)", QuoteChar: token.ParenQuote, Match: cpu.StartsWith, Value: cpu.OffsetExpr, Identifier: "IX+", Flags: flagMemory | flagIndex},
	{Tag: "(IY+d)", QuoteChar: token.ParenQuote, Match: cpu.StartsWith, Value: cpu.OffsetExpr, Identifier: "IY+", Flags: flagMemory | flagIndex},
	{Tag: "(IX)", QuoteChar: token.ParenQuote, Match: cpu.Exact, Identifier: "IX", Flags: flagMemory | flagIndex},
	{Tag: "(IY)", QuoteChar: token.ParenQuote, Match: cpu.Exact, Identifier: "IY", Flags: flagMemory | flagIndex},

	{Tag: "ADDRESS", QuoteChar: token.ParenQuote, Match: cpu.StartsWith, Value: cpu.ValueExpr, Identifier: "", Flags: flagMemory | flagValue},
	{Tag: "VALUE", Match: cpu.StartsWith, Value: cpu.ValueExpr, Identifier: "", Flags: flagValue},
}

// classify wraps cpu.Classify and also evaluates any expression text the
// matched row carries.
func classify(env cpu.Env, pos asmerr.Position, t token.Token) (cpu.Mode, int, bool, error) {
	m, ok := cpu.Classify(modeTable, t)
	if !ok {
		return cpu.Mode{}, 0, false, nil
	}
	if m.Flags&flagValue == 0 && m.Tag != "(IX+d)" && m.Tag != "(IY+d)" {
		return m, 0, true, nil
	}
	v, err := env.Eval(pos, m.ValueText)
	if err != nil {
		return m, 0, true, err
	}
	return m, v, true, nil
}

// Backend implements cpu.Backend for the Z80.
type Backend struct {
	zpUnused int // no zero-page concept on Z80; present only for symmetry with 6502
}

// New creates a Z80 backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "Z80" }

func (b *Backend) Init(env cpu.Env) {}

func (b *Backend) Options() []cpu.Option { return nil }

func (b *Backend) SetOption(env cpu.Env, tag int, args []token.Token) error { return nil }

func upperAll(args []token.Token) []token.Token {
	out := make([]token.Token, len(args))
	for i, a := range args {
		out[i] = token.Token{Text: strings.ToUpper(a.Text), Quote: a.Quote}
	}
	return out
}

// Handler implements the instruction set: implied opcodes written as
// fixed byte sequences, register-pair/ALU groups computed arithmetically
// from the mode index, JR/DJNZ handled via
// pc-relative branch math.
func (b *Backend) Handler(env cpu.Env, pos asmerr.Position, label string, command string, rawArgs []token.Token) cpu.Status {
	args := upperAll(rawArgs)
	switch strings.ToUpper(command) {
	case "NOP":
		env.Emit(0x00)
	case "HALT":
		env.Emit(0x76)
	case "DI":
		env.Emit(0xF3)
	case "EI":
		env.Emit(0xFB)
	case "EXX":
		env.Emit(0xD9)
	case "RET":
		if len(args) == 0 {
			env.Emit(0xC9)
			return cpu.OK
		}
		cc, ok := condCode(args[0].Text)
		if !ok {
			return cpu.Failed
		}
		env.Emit(byte(0xC0 | cc<<3))
	case "LD":
		return b.handleLD(env, pos, args)
	case "PUSH":
		return b.handlePushPop(env, pos, args, 0xC5)
	case "POP":
		return b.handlePushPop(env, pos, args, 0xC1)
	case "JP":
		return b.handleJP(env, pos, args)
	case "JR":
		return b.handleJR(env, pos, args)
	case "DJNZ":
		return b.handleRelBranch(env, pos, args, 0x10)
	case "CALL":
		return b.handleCALL(env, pos, args)
	case "INC":
		return b.handleIncDec(env, pos, args, true)
	case "DEC":
		return b.handleIncDec(env, pos, args, false)
	case "ADD", "ADC", "SUB", "SBC", "AND", "OR", "XOR", "CP":
		return b.handleALU(env, pos, strings.ToUpper(command), args)
	case "EX":
		return b.handleEX(env, pos, args)
	default:
		return cpu.NotKnown
	}
	return cpu.OK
}

var condTable = map[string]int{"NZ": 0, "Z": 1, "NC": 2, "C": 3, "PO": 4, "PE": 5, "P": 6, "M": 7}

func condCode(s string) (int, bool) {
	c, ok := condTable[s]
	return c, ok
}

func (b *Backend) handleLD(env cpu.Env, pos asmerr.Position, args []token.Token) cpu.Status {
	if len(args) != 2 {
		return cpu.Failed
	}
	dst, dstVal, ok, err := classify(env, pos, args[0])
	if !ok || err != nil {
		return cpu.Failed
	}
	src, srcVal, ok, err := classify(env, pos, args[1])
	if !ok || err != nil {
		return cpu.Failed
	}

	// 8-bit register/memory to 8-bit register/memory: LD r, r'
	if dc, dok := regCode[dst.Tag]; dok {
		if sc, sok := regCode[src.Tag]; sok {
			if dst.Tag == "(HL)" && src.Tag == "(HL)" {
				return cpu.Failed // LD (HL),(HL) is HALT, not a valid LD
			}
			env.Emit(byte(0x40 | dc<<3 | sc))
			return cpu.OK
		}
		if src.Flags&flagValue != 0 {
			env.Emit(byte(0x06 | dc<<3))
			env.Emit(byte(srcVal))
			return cpu.OK
		}
	}

	// 16-bit register = immediate value
	if dst.Flags&flag16Bit != 0 && src.Flags&flagValue != 0 {
		if code, ok := pairCodeSP[dst.Tag]; ok {
			env.Emit(byte(0x01 | code<<4))
			env.EmitWord(srcVal, false)
			return cpu.OK
		}
	}

	// A <-> (BC)/(DE)/(addr)
	if dst.Tag == "A" && src.Tag == "(BC)" {
		env.Emit(0x0A)
		return cpu.OK
	}
	if dst.Tag == "A" && src.Tag == "(DE)" {
		env.Emit(0x1A)
		return cpu.OK
	}
	if dst.Tag == "(BC)" && src.Tag == "A" {
		env.Emit(0x02)
		return cpu.OK
	}
	if dst.Tag == "(DE)" && src.Tag == "A" {
		env.Emit(0x12)
		return cpu.OK
	}
	if dst.Tag == "A" && src.Tag == "ADDRESS" {
		env.Emit(0x3A)
		env.EmitWord(srcVal, false)
		return cpu.OK
	}
	if dst.Tag == "ADDRESS" && src.Tag == "A" {
		env.Emit(0x32)
		env.EmitWord(dstVal, false)
		return cpu.OK
	}
	if dst.Tag == "HL" && src.Tag == "ADDRESS" {
		env.Emit(0x2A)
		env.EmitWord(srcVal, false)
		return cpu.OK
	}
	if dst.Tag == "ADDRESS" && src.Tag == "HL" {
		env.Emit(0x22)
		env.EmitWord(dstVal, false)
		return cpu.OK
	}
	if dst.Tag == "SP" && src.Tag == "HL" {
		env.Emit(0xF9)
		return cpu.OK
	}
	if dst.Tag == "(HL)" && src.Flags&flagValue != 0 {
		env.Emit(0x36)
		env.Emit(byte(srcVal))
		return cpu.OK
	}

	return cpu.Failed
}

func (b *Backend) handlePushPop(env cpu.Env, pos asmerr.Position, args []token.Token, base byte) cpu.Status {
	if len(args) != 1 {
		return cpu.Failed
	}
	m, _, ok, err := classify(env, pos, args[0])
	if !ok || err != nil {
		return cpu.Failed
	}
	code, ok := pairCodeAF[m.Tag]
	if !ok {
		return cpu.Failed
	}
	env.Emit(base | byte(code<<4))
	return cpu.OK
}

func (b *Backend) handleJP(env cpu.Env, pos asmerr.Position, args []token.Token) cpu.Status {
	if len(args) == 1 {
		m, v, ok, err := classify(env, pos, args[0])
		if !ok || err != nil {
			return cpu.Failed
		}
		if m.Tag == "(HL)" {
			env.Emit(0xE9)
			return cpu.OK
		}
		env.Emit(0xC3)
		env.EmitWord(v, false)
		return cpu.OK
	}
	if len(args) == 2 {
		cc, ok := condCode(args[0].Text)
		if !ok {
			return cpu.Failed
		}
		v, err := env.Eval(pos, args[1].Text)
		if err != nil {
			return cpu.Failed
		}
		env.Emit(byte(0xC2 | cc<<3))
		env.EmitWord(v, false)
		return cpu.OK
	}
	return cpu.Failed
}

func (b *Backend) handleJR(env cpu.Env, pos asmerr.Position, args []token.Token) cpu.Status {
	if len(args) == 1 {
		return b.handleRelBranch(env, pos, args, 0x18)
	}
	if len(args) == 2 {
		var cc byte
		switch args[0].Text {
		case "NZ":
			cc = 0x20
		case "Z":
			cc = 0x28
		case "NC":
			cc = 0x30
		case "C":
			cc = 0x38
		default:
			return cpu.Failed
		}
		return b.emitRelBranch(env, pos, cc, args[1].Text)
	}
	return cpu.Failed
}

func (b *Backend) handleRelBranch(env cpu.Env, pos asmerr.Position, args []token.Token, opcode byte) cpu.Status {
	if len(args) != 1 {
		return cpu.Failed
	}
	return b.emitRelBranch(env, pos, opcode, args[0].Text)
}

// emitRelBranch computes offset = target - (PC + length), with the
// instruction length (2 bytes for JR/DJNZ) known up
// front since these are fixed-size encodings.
func (b *Backend) emitRelBranch(env cpu.Env, pos asmerr.Position, opcode byte, targetExpr string) cpu.Status {
	target, err := env.Eval(pos, targetExpr)
	if err != nil {
		return cpu.Failed
	}
	instrLen := 2
	offset := target - (env.PC() + instrLen)
	if env.FinalPass() && (offset < -128 || offset > 127) {
		env.Warn(pos, "branch offset %d out of range", offset)
		return cpu.Failed
	}
	env.Emit(opcode)
	env.Emit(byte(int8(offset)))
	return cpu.OK
}

func (b *Backend) handleCALL(env cpu.Env, pos asmerr.Position, args []token.Token) cpu.Status {
	if len(args) == 1 {
		v, err := env.Eval(pos, args[0].Text)
		if err != nil {
			return cpu.Failed
		}
		env.Emit(0xCD)
		env.EmitWord(v, false)
		return cpu.OK
	}
	if len(args) == 2 {
		cc, ok := condCode(args[0].Text)
		if !ok {
			return cpu.Failed
		}
		v, err := env.Eval(pos, args[1].Text)
		if err != nil {
			return cpu.Failed
		}
		env.Emit(byte(0xC4 | cc<<3))
		env.EmitWord(v, false)
		return cpu.OK
	}
	return cpu.Failed
}

func (b *Backend) handleIncDec(env cpu.Env, pos asmerr.Position, args []token.Token, inc bool) cpu.Status {
	if len(args) != 1 {
		return cpu.Failed
	}
	m, _, ok, err := classify(env, pos, args[0])
	if !ok || err != nil {
		return cpu.Failed
	}
	if code, ok := regCode[m.Tag]; ok {
		if inc {
			env.Emit(byte(0x04 | code<<3))
		} else {
			env.Emit(byte(0x05 | code<<3))
		}
		return cpu.OK
	}
	if code, ok := pairCodeSP[m.Tag]; ok {
		if inc {
			env.Emit(byte(0x03 | code<<4))
		} else {
			env.Emit(byte(0x0B | code<<4))
		}
		return cpu.OK
	}
	return cpu.Failed
}

// aluBase maps each ALU mnemonic to the opcode base used in the
// "0x80 + group*8 + r" arithmetic family.
var aluBase = map[string]byte{
	"ADD": 0x80, "ADC": 0x88, "SUB": 0x90, "SBC": 0x98,
	"AND": 0xA0, "XOR": 0xA8, "OR": 0xB0, "CP": 0xB8,
}
var aluImmediate = map[string]byte{
	"ADD": 0xC6, "ADC": 0xCE, "SUB": 0xD6, "SBC": 0xDE,
	"AND": 0xE6, "XOR": 0xEE, "OR": 0xF6, "CP": 0xFE,
}

func (b *Backend) handleALU(env cpu.Env, pos asmerr.Position, op string, args []token.Token) cpu.Status {
	var operand token.Token
	switch {
	case len(args) == 1:
		operand = args[0]
	case len(args) == 2 && args[0].Text == "A":
		operand = args[1]
	case op == "ADD" && len(args) == 2 && args[0].Text == "HL":
		return b.handleAddHL(env, pos, args[1])
	default:
		return cpu.Failed
	}

	m, v, ok, err := classify(env, pos, operand)
	if !ok || err != nil {
		return cpu.Failed
	}
	if code, ok := regCode[m.Tag]; ok {
		env.Emit(aluBase[op] | byte(code))
		return cpu.OK
	}
	if m.Flags&flagValue != 0 {
		env.Emit(aluImmediate[op])
		env.Emit(byte(v))
		return cpu.OK
	}
	return cpu.Failed
}

func (b *Backend) handleAddHL(env cpu.Env, pos asmerr.Position, arg token.Token) cpu.Status {
	m, _, ok, err := classify(env, pos, arg)
	if !ok || err != nil {
		return cpu.Failed
	}
	code, ok := pairCodeSP[m.Tag]
	if !ok {
		return cpu.Failed
	}
	env.Emit(byte(0x09 | code<<4))
	return cpu.OK
}

func (b *Backend) handleEX(env cpu.Env, pos asmerr.Position, args []token.Token) cpu.Status {
	if len(args) != 2 {
		return cpu.Failed
	}
	lhs, _, ok, err := classify(env, pos, args[0])
	if !ok || err != nil {
		return cpu.Failed
	}
	rhs, _, ok, err := classify(env, pos, args[1])
	if !ok || err != nil {
		return cpu.Failed
	}
	switch {
	case lhs.Tag == "DE" && rhs.Tag == "HL":
		env.Emit(0xEB)
	case lhs.Tag == "AF" && rhs.Tag == "AF'":
		env.Emit(0x08)
	case lhs.Tag == "(SP)" && rhs.Tag == "HL":
		env.Emit(0xE3)
	default:
		return cpu.Failed
	}
	return cpu.OK
}
