// Package sourcebuf loads source files (and their INCLUDE targets) into a
// linear, bookmarkable sequence of lines.
package sourcebuf

import (
	"os"
	"path/filepath"

	"github.com/noddybox/casm-go/asmerr"
)

// MaxIncludeDepth caps nested INCLUDE directives.
const MaxIncludeDepth = 1024

// line is one immutable source record.
type line struct {
	path string
	dir  string
	no   int
	text string
}

// Bookmark is an opaque handle into the buffer's line sequence.
type Bookmark int

// Buffer holds every line loaded so far, across the main file and its
// includes, in the order the pass driver should visit them.
type Buffer struct {
	lines    []line
	depth    int
	resolver func(path string) (string, error) // overridable for tests
	binary   func(path string) ([]byte, error) // overridable for tests
}

// New creates an empty Buffer backed by the OS filesystem.
func New() *Buffer {
	return &Buffer{resolver: readFile, binary: readBinary}
}

func readBinary(path string) ([]byte, error) {
	return os.ReadFile(path) // #nosec G304 -- user-supplied INCBIN path
}

// ReadBinary loads path's raw bytes, for the INCBIN directive. It does not
// affect the line buffer or include-depth counter.
func (b *Buffer) ReadBinary(path string) ([]byte, error) {
	data, err := b.binary(path)
	if err != nil {
		return nil, asmerr.New(asmerr.Position{Path: path}, asmerr.KindIO, "cannot open %s: %v", path, err)
	}
	return data, nil
}

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- user-supplied assembly source path
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Load reads path and appends its lines to the buffer, returning a bookmark
// to the first of them. Used both for the initial source file and for each
// INCLUDE target.
func (b *Buffer) Load(path string) (Bookmark, error) {
	if b.depth >= MaxIncludeDepth {
		return 0, asmerr.New(asmerr.Position{Path: path}, asmerr.KindInclude,
			"include depth exceeded (%d)", MaxIncludeDepth)
	}
	text, err := b.resolver(path)
	if err != nil {
		return 0, asmerr.New(asmerr.Position{Path: path}, asmerr.KindIO, "cannot open %s: %v", path, err)
	}

	b.depth++
	defer func() { b.depth-- }()

	start := Bookmark(len(b.lines))
	dir := filepath.Dir(path)
	for i, raw := range splitLines(text) {
		b.lines = append(b.lines, line{path: filepath.Base(path), dir: dir, no: i + 1, text: raw})
	}
	return start, nil
}

// Dir returns the directory the file containing mark was loaded from, used
// to resolve a sibling INCLUDE/INCBIN path given relative to its referrer
// rather than the process's working directory.
func (b *Buffer) Dir(mark Bookmark) string {
	if int(mark) < 0 || int(mark) >= len(b.lines) {
		return ""
	}
	return b.lines[mark].dir
}

// Resolve joins a relative path against dir (as returned by Dir), leaving
// an absolute path untouched.
func Resolve(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Include loads path and splices its lines in immediately after `at`,
// returning the bookmark of the first spliced line and the bookmark to
// resume at once the included lines are exhausted.
func (b *Buffer) Include(at Bookmark, path string) (first, resume Bookmark, err error) {
	path = Resolve(b.Dir(at), path)
	if b.depth >= MaxIncludeDepth {
		return 0, 0, asmerr.New(asmerr.Position{Path: path}, asmerr.KindInclude,
			"include depth exceeded (%d)", MaxIncludeDepth)
	}
	text, err := b.resolver(path)
	if err != nil {
		return 0, 0, asmerr.New(asmerr.Position{Path: path}, asmerr.KindIO, "cannot open %s: %v", path, err)
	}

	b.depth++
	defer func() { b.depth-- }()

	included := make([]line, 0, 16)
	dir := filepath.Dir(path)
	for i, raw := range splitLines(text) {
		included = append(included, line{path: filepath.Base(path), dir: dir, no: i + 1, text: raw})
	}

	resumeAt := at + 1
	tail := append([]line{}, b.lines[resumeAt:]...)
	b.lines = append(b.lines[:resumeAt], append(included, tail...)...)

	return resumeAt, Bookmark(int(resumeAt) + len(included)), nil
}

// Line returns the (path, line number, text) at mark, or ok=false past EOF.
func (b *Buffer) Line(mark Bookmark) (path string, no int, text string, ok bool) {
	if int(mark) < 0 || int(mark) >= len(b.lines) {
		return "", 0, "", false
	}
	l := b.lines[mark]
	return l.path, l.no, l.text, true
}

// Next returns the bookmark following mark.
func (b *Buffer) Next(mark Bookmark) Bookmark { return mark + 1 }

// Len reports how many lines are currently buffered.
func (b *Buffer) Len() int { return len(b.lines) }

func splitLines(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			end := i
			if end > start && text[end-1] == '\r' {
				end--
			}
			out = append(out, text[start:end])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
