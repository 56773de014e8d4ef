// Command casm is the assembler's command-line entry point: `casm
// <source_file>`.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/noddybox/casm-go/assemble"
	"github.com/noddybox/casm-go/config"
	"github.com/noddybox/casm-go/cpu/gbz80"
	"github.com/noddybox/casm-go/cpu/mos6502"
	"github.com/noddybox/casm-go/cpu/spc700"
	"github.com/noddybox/casm-go/cpu/w65c816"
	"github.com/noddybox/casm-go/cpu/z80"
	"github.com/noddybox/casm-go/output"
	_ "github.com/noddybox/casm-go/output/casmlib"
	_ "github.com/noddybox/casm-go/output/intelhex"
	_ "github.com/noddybox/casm-go/output/raw"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("casm", flag.ContinueOnError)
	cpuName := fs.String("cpu", "", "CPU to assemble for (overrides config default)")
	outPath := fs.String("o", "", "output file (defaults to <source> with .bin, .hex or .lib, by format)")
	format := fs.String("f", "", "output format: raw, intelhex, casmlib (overrides config default)")
	listFile := fs.String("l", "", "listing output file")
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: casm [-cpu NAME] [-o FILE] [-f FORMAT] [-l LISTFILE] <source_file>")
		return 2
	}
	source := fs.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "casm: %v\n", err)
		return 1
	}

	selected := *cpuName
	if selected == "" {
		selected = cfg.Assembler.DefaultCPU
	}
	fmtName := *format
	if fmtName == "" {
		fmtName = cfg.Output.DefaultFormat
	}

	a := assemble.New()
	a.AddressSpaces = cfg.AddressSpace
	a.Register(z80.New())
	a.Register(mos6502.New())
	a.Register(gbz80.New())
	a.Register(spc700.New())
	a.Register(w65c816.New())

	if *listFile != "" {
		f, err := os.Create(*listFile) // #nosec G304 -- user-supplied listing path
		if err != nil {
			fmt.Fprintf(os.Stderr, "casm: %v\n", err)
			return 1
		}
		defer f.Close()
		a.Listing.SetOutput(f)
		a.Listing.Options.Enabled = true
		a.Listing.Options.DumpPC = cfg.Listing.DumpPC
		a.Listing.Options.DumpHex = cfg.Listing.DumpHex
		a.Listing.Options.RMBlank = cfg.Listing.RMBlank
	}

	if err := a.SelectCPU(selected); err != nil {
		fmt.Fprintf(os.Stderr, "casm: %v\n", err)
		return 1
	}

	start, err := a.LoadMain(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "casm: %v\n", err)
		return 1
	}

	if err := a.Run(start); err != nil {
		fmt.Fprintf(os.Stderr, "casm: %v\n", err)
		return 1
	}
	for _, w := range a.Diags.Warnings {
		fmt.Fprintln(os.Stderr, w.String())
	}
	if a.Diags.HasErrors() {
		fmt.Fprint(os.Stderr, a.Diags.Error())
		return 1
	}

	if *listFile != "" {
		if err := a.Listing.DumpLabels(a.Labels); err != nil {
			fmt.Fprintf(os.Stderr, "casm: writing listing: %v\n", err)
		}
		a.Listing.Flush()
	}

	sink, ok := output.Lookup(fmtName)
	if !ok {
		fmt.Fprintf(os.Stderr, "casm: unknown output format %q\n", fmtName)
		return 1
	}

	dest := *outPath
	if dest == "" {
		dest = defaultOutputPath(source, fmtName)
	}

	out, err := os.Create(dest) // #nosec G304 -- user-supplied output path
	if err != nil {
		fmt.Fprintf(os.Stderr, "casm: %v\n", err)
		return 1
	}
	defer out.Close()

	if err := sink.Write(out, a.Mem, a.Labels); err != nil {
		fmt.Fprintf(os.Stderr, "casm: writing output: %v\n", err)
		return 1
	}

	return 0
}

func defaultOutputPath(source, format string) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	switch format {
	case "intelhex":
		return base + ".hex"
	case "casmlib":
		return base + ".lib"
	default:
		return base + ".bin"
	}
}
