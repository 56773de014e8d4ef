// Package assemble implements the multi-pass driver: it orchestrates N
// passes over the buffered source, dispatches each line to the built-in
// directives, the active CPU backend, or a macro, and owns every other
// process-singleton (labels, macros, memory, aliases).
package assemble

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/noddybox/casm-go/alias"
	"github.com/noddybox/casm-go/asmerr"
	"github.com/noddybox/casm-go/cpu"
	"github.com/noddybox/casm-go/expr"
	"github.com/noddybox/casm-go/label"
	"github.com/noddybox/casm-go/listing"
	"github.com/noddybox/casm-go/macro"
	"github.com/noddybox/casm-go/membank"
	"github.com/noddybox/casm-go/sourcebuf"
	"github.com/noddybox/casm-go/token"
)

// MaxPasses bounds the auto-pass escalation a backend may request via
// RequestPasses, capped here against a runaway backend.
const MaxPasses = 8

// frame is one active macro invocation, paired with the namespace/scope it
// opened so playback can tear both down together.
type frame struct {
	inv       *macro.Invocation
	namespace string
}

// Assembler is the single owner of every process-wide singleton involved
// in an assembly run: PC, bank selector, word mode, pass number, memory
// banks, label store, macro store, alias table, and the active CPU backend.
type Assembler struct {
	Source   *sourcebuf.Buffer
	Labels   *label.Store
	Macros   *macro.Store
	Mem      *membank.Model
	Aliases  *alias.Table
	Listing  *listing.Listing
	Diags    asmerr.List

	backends map[string]cpu.Backend
	active   cpu.Backend

	// AddressSpaces overrides the memory model's modulus per CPU name when
	// set (config's per-CPU address_space table), applied on SelectCPU.
	AddressSpaces map[string]int

	macroStack  macro.Stack
	frames      []frame
	recording   *macro.Macro
	recordDepth int

	nullCmd string

	pass        int
	maxPasses   int
	final       bool
	incomplete  bool
	curPos      asmerr.Position
	curPath     string

	cursor       sourcebuf.Bookmark
	cursorJumped bool
}

// New creates an Assembler with an empty 16-bit default memory model.
func New() *Assembler {
	return &Assembler{
		Source:    sourcebuf.New(),
		Labels:    label.New(),
		Macros:    macro.New(),
		Mem:       membank.New(membank.DefaultSpaceSize),
		Aliases:   alias.New(),
		Listing:   listing.New(io.Discard),
		backends:  make(map[string]cpu.Backend),
		maxPasses: 2,
	}
}

// Register adds a CPU backend, selectable later by its Name() via the
// CPU/ARCH directive.
func (a *Assembler) Register(b cpu.Backend) {
	a.backends[strings.ToUpper(b.Name())] = b
}

// SelectCPU activates a previously registered backend.
func (a *Assembler) SelectCPU(name string) error {
	b, ok := a.backends[strings.ToUpper(name)]
	if !ok {
		return fmt.Errorf("unknown CPU/ARCH %q", name)
	}
	a.active = b
	if v, ok := a.AddressSpaces[strings.ToUpper(name)]; ok {
		a.Mem.SpaceSize = v
	}
	a.active.Init(a)
	return nil
}

// --- cpu.Env / expr.Resolver implementation ---------------------------

func (a *Assembler) PC() int { return a.Mem.PC() }

func (a *Assembler) Emit(b byte) {
	a.Mem.PCWrite(b)
}

func (a *Assembler) EmitWord(v int, msbFirst bool) {
	mode := membank.LSBFirst
	if msbFirst {
		mode = membank.MSBFirst
	}
	a.Mem.PCWriteWord(v, &mode)
}

func (a *Assembler) Lookup(name string) (int, bool) {
	return a.Labels.Lookup(name)
}

func (a *Assembler) FinalPass() bool { return a.final }

func (a *Assembler) MarkIncomplete() { a.incomplete = true }

func (a *Assembler) RequestPasses(n int) {
	if a.final {
		return
	}
	if n > MaxPasses {
		n = MaxPasses
	}
	if n > a.maxPasses {
		a.maxPasses = n
	}
}

func (a *Assembler) Eval(pos asmerr.Position, text string) (int, error) {
	return expr.Eval(pos, text, a)
}

func (a *Assembler) Warn(pos asmerr.Position, format string, args ...any) {
	a.Diags.AddWarning(asmerr.NewWarning(pos, format, args...))
}

// --- driving the passes -------------------------------------------------

// LoadMain loads the initial source file.
func (a *Assembler) LoadMain(path string) (sourcebuf.Bookmark, error) {
	return a.Source.Load(path)
}

// Run executes passes until convergence or a fatal error.
func (a *Assembler) Run(start sourcebuf.Bookmark) error {
	for {
		a.final = a.pass+1 >= a.maxPasses
		a.pass++
		a.incomplete = false

		if err := a.runPass(start); err != nil {
			return err
		}
		if a.Diags.HasErrors() {
			return a.Diags.First()
		}
		if a.incomplete && !a.final {
			// spec §4.3: an undefined label on a non-final pass marks the
			// pass incomplete, requiring another iteration -- guarantee
			// the driver schedules at least one more pass before it may
			// declare a pass final, even if no backend called
			// RequestPasses.
			need := a.pass + 2
			if need > MaxPasses {
				need = MaxPasses
			}
			if need > a.maxPasses {
				a.maxPasses = need
			}
		}
		if a.final {
			break
		}
		if a.pass >= MaxPasses {
			return fmt.Errorf("assemble: exceeded maximum pass count (%d) without converging", MaxPasses)
		}
	}
	return nil
}

func (a *Assembler) runPass(start sourcebuf.Bookmark) error {
	a.Mem.ResetWriteMarkers()
	a.Aliases.Clear()
	a.Labels.ResetNamespace()
	a.recording = nil
	a.recordDepth = 0
	a.frames = nil
	a.macroStack = macro.Stack{}

	for _, b := range a.backends {
		b.Init(a)
	}

	a.cursor = start
	for {
		// Pull from an active macro invocation first.
		if len(a.frames) > 0 {
			top := &a.frames[len(a.frames)-1]
			text, ok := top.inv.Next()
			if !ok {
				a.macroStack.End()
				if err := a.Labels.ScopePop(); err != nil {
					return err
				}
				a.frames = a.frames[:len(a.frames)-1]
				continue
			}
			if _, err := a.processLine(a.curPos, text); err != nil {
				return err
			}
			if a.Diags.HasErrors() {
				return nil
			}
			continue
		}

		path, no, text, ok := a.Source.Line(a.cursor)
		if !ok {
			break
		}
		a.curPos = asmerr.Position{Path: path, Line: no}
		a.curPath = path

		stop, err := a.processLine(a.curPos, text)
		if err != nil {
			return err
		}
		if a.Diags.HasErrors() {
			return nil
		}
		if stop {
			break
		}
		if a.cursorJumped {
			a.cursorJumped = false
		} else {
			a.cursor = a.Source.Next(a.cursor)
		}
	}

	return nil
}

// processLine tokenizes and dispatches one line. The bool return reports
// whether the pass should stop early (END).
func (a *Assembler) processLine(pos asmerr.Position, raw string) (stop bool, err error) {
	if a.final {
		a.Listing.Line(a.PC(), nil, raw)
	}

	line, terr := token.Tokenize(pos, raw, nil)
	if terr != nil {
		a.Diags.AddError(toAsmErr(pos, terr))
		return false, nil
	}

	// MACRO and ENDM written in column 1 are the directives themselves, not
	// labels: move the tokenizer's label into the command slot.
	if u := strings.ToUpper(line.Label); u == "MACRO" || u == "ENDM" {
		if line.Command != "" {
			line.Args = append([]token.Token{{Text: line.Command}}, line.Args...)
		}
		line.Command, line.Label = line.Label, ""
	}

	// Macro body recording takes priority over everything else once
	// active; MACRO/ENDM only defines the macro on pass 1.
	if a.recording != nil {
		return a.recordBodyLine(pos, line)
	}

	startPC := a.PC()

	if line.Label != "" {
		if len(a.frames) > 0 && isGlobalLabelToken(line.Label) {
			a.Diags.AddError(asmerr.New(pos, asmerr.KindMacro,
				"cannot define global label %q inside a macro invocation", line.Label))
			return false, nil
		}
		name, kind, ok := label.Sanitise(line.Label)
		if ok {
			a.Labels.Set(name, startPC, kind)
		}
	}

	if line.Command == "" {
		return false, nil
	}

	cmd := a.Aliases.Resolve(line.Command)

	if handled, stop, err := a.dispatchDirective(pos, cmd, line); handled {
		return stop, err
	}

	if a.active != nil {
		status := a.active.Handler(a, pos, line.Label, cmd, line.Args)
		switch status {
		case cpu.OK, cpu.Warning:
			return false, nil
		case cpu.Failed:
			a.Diags.AddError(asmerr.New(pos, asmerr.KindIllegalArgument, "failed to assemble %q", cmd))
			return false, nil
		case cpu.NotKnown:
			// fall through to macro lookup
		}
	}

	if m, ok := a.Macros.Lookup(cmd); ok {
		return false, a.beginMacro(pos, m, line.Args)
	}

	if a.nullCmd != "" {
		return false, nil
	}

	a.Diags.AddError(asmerr.New(pos, asmerr.KindUnknownCommand, "unknown command %q", cmd))
	return false, nil
}

func isGlobalLabelToken(raw string) bool {
	return !strings.HasPrefix(raw, ".")
}

func toAsmErr(pos asmerr.Position, err error) *asmerr.Error {
	if ae, ok := err.(*asmerr.Error); ok {
		return ae
	}
	return asmerr.New(pos, asmerr.KindSyntax, "%v", err)
}

// --- macro record/play --------------------------------------------------

func (a *Assembler) recordBodyLine(pos asmerr.Position, line token.Line) (bool, error) {
	cmd := strings.ToUpper(line.Command)
	switch cmd {
	case "MACRO":
		a.recordDepth++
		a.recording.Body = append(a.recording.Body, macro.Line{Text: reconstitute(line)})
	case "ENDM":
		if a.recordDepth > 0 {
			a.recordDepth--
			a.recording.Body = append(a.recording.Body, macro.Line{Text: reconstitute(line)})
			return false, nil
		}
		if a.pass == 1 {
			if err := a.Macros.Define(a.recording); err != nil {
				a.Diags.AddError(err.(*asmerr.Error))
			}
		}
		a.recording = nil
	default:
		a.recording.Body = append(a.recording.Body, macro.Line{Text: reconstitute(line)})
	}
	return false, nil
}

// reconstitute rebuilds approximate source text for a tokenized line, used
// only while recording a macro body so that later substitution re-tokenizes
// cleanly.
func reconstitute(line token.Line) string {
	var sb strings.Builder
	if line.Label != "" {
		sb.WriteString(line.Label)
		sb.WriteString(": ")
	} else {
		sb.WriteByte(' ')
	}
	sb.WriteString(line.Command)
	for i, t := range line.Args {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		switch t.Quote {
		case token.NoQuote:
			sb.WriteString(t.Text)
		case token.ParenQuote:
			sb.WriteString("(" + t.Text + ")")
		case token.BracketQuote:
			sb.WriteString("[" + t.Text + "]")
		default:
			sb.WriteString(string(byte(t.Quote)) + t.Text + string(byte(t.Quote)))
		}
	}
	return sb.String()
}

func (a *Assembler) beginMacro(pos asmerr.Position, m *macro.Macro, args []token.Token) error {
	inv, err := a.macroStack.Begin(pos, m, args)
	if err != nil {
		a.Diags.AddError(err.(*asmerr.Error))
		return nil
	}
	ns := a.Labels.CreateNamespace()
	a.Labels.ScopePush(ns, a.PC())
	a.frames = append(a.frames, frame{inv: inv, namespace: ns})
	return nil
}

// --- directives ----------------------------------------------------------

// dispatchDirective handles the built-in directives. handled is false if
// cmd is not one of them (the caller should try the CPU backend next).
func (a *Assembler) dispatchDirective(pos asmerr.Position, cmd string, line token.Line) (handled, stop bool, err error) {
	switch strings.ToUpper(cmd) {
	case "END", ".END":
		return true, true, nil

	case "INCLUDE":
		if len(line.Args) != 1 {
			a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingArgument, "INCLUDE requires a path"))
			return true, false, nil
		}
		return true, false, a.handleInclude(pos, line.Args[0].Text)

	case "MACRO":
		return true, false, a.handleMacroStart(pos, line)

	case "ENDM":
		a.Diags.AddError(asmerr.New(pos, asmerr.KindMacro, "ENDM without matching MACRO"))
		return true, false, nil

	case "EQU":
		return true, false, a.handleEqu(pos, line)

	case "ORG":
		return true, false, a.handleOrg(pos, line)

	case "BANK":
		return true, false, a.handleBank(pos, line)

	case "DS", "DEFS":
		return true, false, a.handleDS(pos, line)

	case "DB", "DEFB", "BYTE", "TEXT":
		return true, false, a.handleDB(pos, line)

	case "DW", "DEFW", "WORD":
		return true, false, a.handleDW(pos, line)

	case "ALIGN":
		return true, false, a.handleAlign(pos, line)

	case "INCBIN":
		return true, false, a.handleIncbin(pos, line)

	case "CPU", "ARCH":
		if len(line.Args) != 1 {
			a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingArgument, "%s requires a name", cmd))
			return true, false, nil
		}
		if err := a.SelectCPU(line.Args[0].Text); err != nil {
			a.Diags.AddError(asmerr.New(pos, asmerr.KindIllegalArgument, "%v", err))
		}
		return true, false, nil

	case "OPTION", "OPT":
		return true, false, a.handleOption(pos, line)

	case "ALIAS":
		if len(line.Args) != 2 {
			a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingArgument, "ALIAS requires from, to"))
			return true, false, nil
		}
		a.Aliases.Set(line.Args[0].Text, line.Args[1].Text)
		return true, false, nil

	case "NULLCMD":
		if len(line.Args) == 1 {
			a.nullCmd = line.Args[0].Text
		} else {
			a.nullCmd = ""
		}
		return true, false, nil
	}

	return false, false, nil
}

func (a *Assembler) handleInclude(pos asmerr.Position, path string) error {
	first, _, err := a.Source.Include(a.cursor, path)
	if err != nil {
		a.Diags.AddError(toAsmErr(pos, err))
		return nil
	}
	a.cursor = first
	a.cursorJumped = true
	return nil
}

func (a *Assembler) handleMacroStart(pos asmerr.Position, line token.Line) error {
	if a.pass != 1 {
		a.recording = &macro.Macro{Name: "_skip_", Body: nil, Pos: pos}
		return nil
	}
	if len(line.Args) == 0 {
		a.Diags.AddError(asmerr.New(pos, asmerr.KindMacro, "MACRO requires a name"))
		return nil
	}
	params := make([]string, 0, len(line.Args)-1)
	for _, t := range line.Args[1:] {
		params = append(params, t.Text)
	}
	a.recording = &macro.Macro{Name: line.Args[0].Text, Parameters: params, Pos: pos}
	return nil
}

func (a *Assembler) handleEqu(pos asmerr.Position, line token.Line) error {
	if line.Label == "" || len(line.Args) != 1 {
		a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingLabel, "EQU requires a label and one expression"))
		return nil
	}
	v, err := a.Eval(pos, line.Args[0].Text)
	if err != nil {
		a.Diags.AddError(toAsmErr(pos, err))
		return nil
	}
	name, kind, ok := label.Sanitise(line.Label)
	if ok {
		a.Labels.Set(name, v, kind)
	}
	return nil
}

func (a *Assembler) handleOrg(pos asmerr.Position, line token.Line) error {
	if len(line.Args) != 1 {
		a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingArgument, "ORG requires one expression"))
		return nil
	}
	v, err := a.Eval(pos, line.Args[0].Text)
	if err != nil {
		a.Diags.AddError(toAsmErr(pos, err))
		return nil
	}
	a.Mem.SetPC(v)
	return nil
}

func (a *Assembler) handleBank(pos asmerr.Position, line token.Line) error {
	if len(line.Args) != 1 {
		a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingArgument, "BANK requires one expression"))
		return nil
	}
	v, err := a.Eval(pos, line.Args[0].Text)
	if err != nil {
		a.Diags.AddError(toAsmErr(pos, err))
		return nil
	}
	a.Mem.SetAddressBank(v)
	return nil
}

func (a *Assembler) handleDS(pos asmerr.Position, line token.Line) error {
	if len(line.Args) == 0 {
		a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingArgument, "DS requires a length"))
		return nil
	}
	n, err := a.Eval(pos, line.Args[0].Text)
	if err != nil {
		a.Diags.AddError(toAsmErr(pos, err))
		return nil
	}
	fill := byte(0)
	if len(line.Args) > 1 {
		v, err := a.Eval(pos, line.Args[1].Text)
		if err != nil {
			a.Diags.AddError(toAsmErr(pos, err))
			return nil
		}
		fill = byte(v)
	}
	for i := 0; i < n; i++ {
		a.Emit(fill)
	}
	return nil
}

func (a *Assembler) handleDB(pos asmerr.Position, line token.Line) error {
	for _, t := range line.Args {
		if t.Quote == token.DoubleQuote {
			for i := 0; i < len(t.Text); i++ {
				a.Emit(t.Text[i])
			}
			continue
		}
		v, err := a.Eval(pos, t.Text)
		if err != nil {
			a.Diags.AddError(toAsmErr(pos, err))
			continue
		}
		a.Emit(byte(v))
	}
	return nil
}

func (a *Assembler) handleDW(pos asmerr.Position, line token.Line) error {
	for _, t := range line.Args {
		v, err := a.Eval(pos, t.Text)
		if err != nil {
			a.Diags.AddError(toAsmErr(pos, err))
			continue
		}
		a.EmitWord(v, a.Mem.WordMode == membank.MSBFirst)
	}
	return nil
}

func (a *Assembler) handleAlign(pos asmerr.Position, line token.Line) error {
	if len(line.Args) != 1 {
		a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingArgument, "ALIGN requires one expression"))
		return nil
	}
	n, err := a.Eval(pos, line.Args[0].Text)
	if err != nil || n <= 0 {
		a.Diags.AddError(toAsmErr(pos, err))
		return nil
	}
	for a.PC()%n != 0 {
		a.Emit(0)
	}
	return nil
}

// handleIncbin emits a binary file verbatim at the current PC. An optional
// second and third argument give a byte offset and length within the file,
// matching the common INCBIN path[, offset[, length]] form.
func (a *Assembler) handleIncbin(pos asmerr.Position, line token.Line) error {
	if len(line.Args) == 0 || len(line.Args) > 3 {
		a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingArgument, "INCBIN requires a path"))
		return nil
	}

	data, err := a.Source.ReadBinary(sourcebuf.Resolve(a.Source.Dir(a.cursor), line.Args[0].Text))
	if err != nil {
		a.Diags.AddError(toAsmErr(pos, err))
		return nil
	}

	offset := 0
	if len(line.Args) > 1 {
		if offset, err = a.Eval(pos, line.Args[1].Text); err != nil {
			a.Diags.AddError(toAsmErr(pos, err))
			return nil
		}
	}
	length := len(data) - offset
	if len(line.Args) > 2 {
		if length, err = a.Eval(pos, line.Args[2].Text); err != nil {
			a.Diags.AddError(toAsmErr(pos, err))
			return nil
		}
	}
	if offset < 0 || offset > len(data) || length < 0 || offset+length > len(data) {
		a.Diags.AddError(asmerr.New(pos, asmerr.KindIllegalArgument,
			"INCBIN offset/length out of range for %q (%d bytes)", line.Args[0].Text, len(data)))
		return nil
	}

	for _, b := range data[offset : offset+length] {
		a.Emit(b)
	}
	return nil
}

func (a *Assembler) handleOption(pos asmerr.Position, line token.Line) error {
	if len(line.Args) == 0 {
		a.Diags.AddError(asmerr.New(pos, asmerr.KindMissingArgument, "OPTION requires a name"))
		return nil
	}

	name := line.Args[0].Text
	rest := line.Args[1:]

	if strings.HasPrefix(name, "+") || strings.HasPrefix(name, "-") {
		val := "yes"
		if name[0] == '-' {
			val = "no"
		}
		name = name[1:]
		rest = []token.Token{{Text: val}}
	}

	switch strings.ToLower(name) {
	case "quiet":
		v := true
		if len(rest) > 0 {
			v = parseTrueFalse(rest[0].Text, true)
		}
		a.Diags.SetQuiet(v)
		return nil
	case "list":
		if a.Listing != nil && len(rest) > 0 {
			a.Listing.Options.Enabled = parseTrueFalse(rest[0].Text, false)
		}
		return nil
	case "list-pc":
		if a.Listing != nil && len(rest) > 0 {
			a.Listing.Options.DumpPC = parseTrueFalse(rest[0].Text, false)
		}
		return nil
	case "list-hex":
		if a.Listing != nil && len(rest) > 0 {
			a.Listing.Options.DumpHex = parseTrueFalse(rest[0].Text, false)
		}
		return nil
	}

	if a.active != nil {
		for _, o := range a.active.Options() {
			if strings.EqualFold(o.Name, name) {
				if err := a.active.SetOption(a, o.Tag, rest); err != nil {
					a.Diags.AddError(asmerr.New(pos, asmerr.KindIllegalArgument, "%v", err))
				}
				return nil
			}
		}
	}

	a.Diags.AddWarning(asmerr.NewWarning(pos, "unknown OPTION %q", name))
	return nil
}

func parseTrueFalse(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on", "true", "1":
		return true
	case "no", "off", "false", "0":
		return false
	}
	return def
}

// ParseInt parses a plain decimal integer (strconv.Atoi) outside of a full
// expression; expr's hex, binary and character literal forms are not
// accepted here.
func ParseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
