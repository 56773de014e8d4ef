// Command casm-listing is an interactive terminal browser over the
// result of one assembly run: a scrollable, searchable label list on the
// left and the generated listing text on the right, built on tcell/tview.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/noddybox/casm-go/assemble"
	"github.com/noddybox/casm-go/config"
	"github.com/noddybox/casm-go/cpu/gbz80"
	"github.com/noddybox/casm-go/cpu/mos6502"
	"github.com/noddybox/casm-go/cpu/spc700"
	"github.com/noddybox/casm-go/cpu/w65c816"
	"github.com/noddybox/casm-go/cpu/z80"
)

func main() {
	cpuName := flag.String("cpu", "", "CPU to assemble for (overrides config default)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: casm-listing [-cpu NAME] <source_file>")
		os.Exit(2)
	}
	source := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "casm-listing: %v\n", err)
		os.Exit(1)
	}

	selected := *cpuName
	if selected == "" {
		selected = cfg.Assembler.DefaultCPU
	}

	a := assemble.New()
	a.AddressSpaces = cfg.AddressSpace
	a.Register(z80.New())
	a.Register(mos6502.New())
	a.Register(gbz80.New())
	a.Register(spc700.New())
	a.Register(w65c816.New())

	var listingBuf bytes.Buffer
	a.Listing.SetOutput(&listingBuf)
	a.Listing.Options.Enabled = true
	a.Listing.Options.DumpPC = true
	a.Listing.Options.DumpHex = true

	if err := a.SelectCPU(selected); err != nil {
		fmt.Fprintf(os.Stderr, "casm-listing: %v\n", err)
		os.Exit(1)
	}

	start, err := a.LoadMain(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "casm-listing: %v\n", err)
		os.Exit(1)
	}

	runErr := a.Run(start)
	a.Listing.Flush()

	app := tview.NewApplication()

	labelList := tview.NewList().ShowSecondaryText(false)
	labelList.SetBorder(true).SetTitle(" Labels ")

	listingView := tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetWrap(false)
	listingView.SetBorder(true).SetTitle(" Listing ")
	fmt.Fprint(listingView, listingBuf.String())

	statusView := tview.NewTextView().SetDynamicColors(true)
	statusView.SetBorder(true).SetTitle(" Status ")
	if runErr != nil {
		fmt.Fprintf(statusView, "[red]assembly failed: %v", runErr)
	} else if a.Diags.HasErrors() {
		fmt.Fprintf(statusView, "[red]%s", a.Diags.Error())
	} else {
		fmt.Fprintf(statusView, "[green]assembled %q for %s, %d warning(s)", source, selected, len(a.Diags.Warnings))
	}

	searchInput := tview.NewInputField().SetLabel("/ ")
	searchInput.SetBorder(true).SetTitle(" Search labels ")

	names := sortedLabelNames(a)
	populateLabelList(labelList, names, "")
	searchInput.SetChangedFunc(func(text string) {
		populateLabelList(labelList, names, text)
	})

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(searchInput, 3, 0, false).
		AddItem(labelList, 0, 1, true)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(listingView, 0, 1, false).
		AddItem(statusView, 3, 0, false)

	root := tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(right, 0, 2, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			app.Stop()
			return nil
		case '/':
			app.SetFocus(searchInput)
			return nil
		}
		if event.Key() == tcell.KeyEsc {
			app.SetFocus(labelList)
			return nil
		}
		return event
	})

	if err := app.SetRoot(root, true).SetFocus(labelList).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "casm-listing: %v\n", err)
		os.Exit(1)
	}
}

func sortedLabelNames(a *assemble.Assembler) []string {
	var names []string
	var sb strings.Builder
	a.Labels.Dump(&sb, false)
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.TrimPrefix(line, "; ")
		if line == "" || strings.HasPrefix(line, ".") {
			continue
		}
		if idx := strings.Index(line, " "); idx > 0 {
			names = append(names, strings.TrimSpace(line[:idx]))
		}
	}
	sort.Strings(names)
	return names
}

func populateLabelList(list *tview.List, names []string, filter string) {
	list.Clear()
	filter = strings.ToLower(filter)
	for _, n := range names {
		if filter != "" && !strings.Contains(strings.ToLower(n), filter) {
			continue
		}
		list.AddItem(n, "", 0, nil)
	}
}
