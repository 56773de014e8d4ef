// Package alias implements the command-token alias table of spec
// component C9: `ALIAS from to` installs a mapping consulted before
// directive/backend dispatch, cleared at the start of every pass.
package alias

import "strings"

// Table maps an aliased command token to its replacement.
type Table struct {
	m map[string]string
}

// New creates an empty alias table.
func New() *Table {
	return &Table{m: make(map[string]string)}
}

func fold(s string) string { return strings.ToLower(s) }

// Set installs from -> to.
func (t *Table) Set(from, to string) {
	t.m[fold(from)] = to
}

// Resolve returns the replacement for cmd, or cmd unchanged if no alias
// was installed for it.
func (t *Table) Resolve(cmd string) string {
	if to, ok := t.m[fold(cmd)]; ok {
		return to
	}
	return cmd
}

// Clear removes every alias (done at the start of each pass per spec
// §4.6).
func (t *Table) Clear() {
	t.m = make(map[string]string)
}
