// Package listing implements the source/object listing: it mirrors each
// assembled line with its resulting PC and bytes, and can dump the label
// table or macro invocations, but only writes anything on the final pass.
package listing

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/noddybox/casm-go/token"
)

// LabelMode selects how labels are appended to the listing.
type LabelMode int

const (
	LabelsOff LabelMode = iota
	LabelsDump
	LabelsDumpPrivate
)

// MacroMode selects how macro invocations are reflected in the listing.
type MacroMode int

const (
	MacrosOff MacroMode = iota
	MacrosInvoke
	MacrosDump
)

// Options controls what the listing records.
type Options struct {
	Enabled  bool
	DumpPC   bool
	DumpHex  bool
	RMBlank  bool
	Labels   LabelMode
	Macros   MacroMode
}

// Listing accumulates listing text across one assembly run.
type Listing struct {
	Options Options
	w       io.Writer
	bw      *bufio.Writer
}

// New creates a Listing writing to w (os.Stdout is the common case).
func New(w io.Writer) *Listing {
	return &Listing{Options: Options{RMBlank: true}, w: w, bw: bufio.NewWriter(w)}
}

// SetOutput redirects listing output, e.g. to the file named by the CLI's
// -l flag.
func (l *Listing) SetOutput(w io.Writer) {
	l.Flush()
	l.w = w
	l.bw = bufio.NewWriter(w)
}

// Flush writes any buffered listing text.
func (l *Listing) Flush() error {
	if l.bw == nil {
		return nil
	}
	return l.bw.Flush()
}

// Line emits one assembled source line, annotated per Options, guarded by
// the caller confirming this is the final pass.
func (l *Listing) Line(pc int, bytes []byte, raw string) {
	if !l.Options.Enabled {
		return
	}
	if l.Options.RMBlank && strings.TrimSpace(raw) == "" {
		return
	}

	var sb strings.Builder
	if l.Options.DumpPC {
		fmt.Fprintf(&sb, "%04X  ", pc)
	}
	if l.Options.DumpHex {
		for i, b := range bytes {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%02X", b)
		}
		for pad := len(bytes); pad < 8; pad++ {
			sb.WriteString("   ")
		}
		sb.WriteString("  ")
	}
	sb.WriteString(raw)
	sb.WriteByte('\n')
	l.bw.WriteString(sb.String())
}

// MacroInvoke records one macro call line, formatting re-quoted arguments
// the way the source line would have read.
func (l *Listing) MacroInvoke(name string, args []token.Token) {
	if !l.Options.Enabled || l.Options.Macros == MacrosOff {
		return
	}
	fmt.Fprintf(l.bw, "; %s %s\n", name, formatArgs(args))
}

func formatArgs(args []token.Token) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch a.Quote {
		case token.NoQuote:
			parts[i] = a.Text
		case token.ParenQuote:
			parts[i] = "(" + a.Text + ")"
		case token.BracketQuote:
			parts[i] = "[" + a.Text + "]"
		default:
			parts[i] = string(byte(a.Quote)) + a.Text + string(byte(a.Quote))
		}
	}
	return strings.Join(parts, ", ")
}

// LabelDumper is satisfied by label.Store, kept narrow here so listing
// does not need to import the label package just to print it.
type LabelDumper interface {
	Dump(w io.Writer, dumpPrivate bool) error
}

// DumpLabels appends the label table per Options.Labels.
func (l *Listing) DumpLabels(store LabelDumper) error {
	if l.Options.Labels == LabelsOff {
		return nil
	}
	if err := l.Flush(); err != nil {
		return err
	}
	return store.Dump(l.w, l.Options.Labels == LabelsDumpPrivate)
}
