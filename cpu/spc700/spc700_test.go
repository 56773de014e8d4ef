package spc700_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/cpu"
	"github.com/noddybox/casm-go/cpu/spc700"
	"github.com/noddybox/casm-go/expr"
	"github.com/noddybox/casm-go/token"
)

type fakeEnv struct {
	pc     int
	bytes  []byte
	labels map[string]int
	final  bool
	passes int
}

func newFakeEnv(pc int) *fakeEnv {
	return &fakeEnv{pc: pc, labels: map[string]int{}, final: true}
}

func (e *fakeEnv) PC() int { return e.pc }
func (e *fakeEnv) Emit(b byte) {
	e.bytes = append(e.bytes, b)
	e.pc++
}
func (e *fakeEnv) EmitWord(v int, msbFirst bool) {
	lo, hi := byte(v), byte(v>>8)
	if msbFirst {
		e.Emit(hi)
		e.Emit(lo)
	} else {
		e.Emit(lo)
		e.Emit(hi)
	}
}
func (e *fakeEnv) Lookup(name string) (int, bool) { v, ok := e.labels[name]; return v, ok }
func (e *fakeEnv) FinalPass() bool                { return e.final }
func (e *fakeEnv) MarkIncomplete()                {}
func (e *fakeEnv) RequestPasses(n int)            { e.passes = n }
func (e *fakeEnv) Eval(pos asmerr.Position, text string) (int, error) {
	return expr.Eval(pos, text, e)
}
func (e *fakeEnv) Warn(pos asmerr.Position, format string, args ...any) {}

var pos = asmerr.Position{Path: "t.asm", Line: 1}

func arg(text string, q token.Quote) token.Token { return token.Token{Text: text, Quote: q} }

func TestInitRequestsThirdPass(t *testing.T) {
	b := spc700.New()
	env := newFakeEnv(0)
	b.Init(env)
	assert.Equal(t, 3, env.passes)
}

func TestDirectPageAutoSelection(t *testing.T) {
	b := spc700.New()
	env := newFakeEnv(0)

	status := b.Handler(env, pos, "", "MOV", []token.Token{arg("A", token.NoQuote), arg("0x10", token.NoQuote)})
	require.Equal(t, cpu.OK, status)
	assert.Equal(t, []byte{0xE4, 0x10}, env.bytes)

	env.bytes = nil
	status = b.Handler(env, pos, "", "MOV", []token.Token{arg("A", token.NoQuote), arg("0x2000", token.NoQuote)})
	require.Equal(t, cpu.OK, status)
	assert.Equal(t, []byte{0xE5, 0x00, 0x20}, env.bytes)
}

func TestDPOptionForcesDirectPage(t *testing.T) {
	b := spc700.New()
	env := newFakeEnv(0)
	require.NoError(t, b.SetOption(env, 0, []token.Token{{Text: "on"}}))

	status := b.Handler(env, pos, "", "MOV", []token.Token{arg("A", token.NoQuote), arg("0x2000", token.NoQuote)})
	require.Equal(t, cpu.OK, status)
	assert.Equal(t, []byte{0xE4, 0x00}, env.bytes)
}

func TestImmediateMode(t *testing.T) {
	b := spc700.New()
	env := newFakeEnv(0)
	status := b.Handler(env, pos, "", "MOV", []token.Token{arg("A", token.NoQuote), arg("#5", token.NoQuote)})
	require.Equal(t, cpu.OK, status)
	assert.Equal(t, []byte{0xE8, 0x05}, env.bytes)
}

func TestImpliedInstructions(t *testing.T) {
	b := spc700.New()
	env := newFakeEnv(0)
	require.Equal(t, cpu.OK, b.Handler(env, pos, "", "NOP", nil))
	require.Equal(t, cpu.OK, b.Handler(env, pos, "", "RET", nil))
	assert.Equal(t, []byte{0x00, 0x6F}, env.bytes)
}

func TestPushPop(t *testing.T) {
	b := spc700.New()
	env := newFakeEnv(0)
	require.Equal(t, cpu.OK, b.Handler(env, pos, "", "PUSH", []token.Token{arg("A", token.NoQuote)}))
	require.Equal(t, cpu.OK, b.Handler(env, pos, "", "POP", []token.Token{arg("Y", token.NoQuote)}))
	assert.Equal(t, []byte{0x2D, 0xEE}, env.bytes)
}

func TestBranchInRange(t *testing.T) {
	b := spc700.New()
	env := newFakeEnv(0x10)
	env.labels["LOOP"] = 0x10
	status := b.Handler(env, pos, "", "BNE", []token.Token{arg("loop", token.NoQuote)})
	require.Equal(t, cpu.OK, status)
	assert.Equal(t, []byte{0xD0, 0xFE}, env.bytes)
}

func TestUnknownMnemonicIsNotKnown(t *testing.T) {
	b := spc700.New()
	env := newFakeEnv(0)
	status := b.Handler(env, pos, "", "FROB", nil)
	assert.Equal(t, cpu.NotKnown, status)
}
