// Package pipeline implements spec.md §4.13: the left-to-right compiler
// that turns a command-line argument vector into an ordered stage list,
// resolving inter-stage links and computing output capabilities.
package pipeline

import (
	"fmt"
	"strings"
)

// clause is one `--stage arg arg key=value …` run of the argument vector,
// already split from its neighbors but not yet interpreted.
type clause struct {
	name string   // the stage keyword, e.g. "map", "hook", "input"
	args []string // everything up to the next "--" token, in order
}

// splitClauses performs the left-to-right scan of spec.md §6: a strictly
// ordered sequence of "--<stage>" clauses, each followed by positional and
// key=value arguments until the next "--" prefix or end of input.
func splitClauses(argv []string) ([]clause, error) {
	var clauses []clause
	var cur *clause

	for _, tok := range argv {
		if strings.HasPrefix(tok, "--") {
			name := strings.TrimPrefix(tok, "--")
			if name == "" {
				return nil, fmt.Errorf("empty stage name in argument %q", tok)
			}
			clauses = append(clauses, clause{name: name})
			cur = &clauses[len(clauses)-1]
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("argument %q appears before any --<stage> clause", tok)
		}
		cur.args = append(cur.args, tok)
	}
	return clauses, nil
}

// option is a parsed `key=value` clause argument.
type option struct {
	key   string
	value string
}

// splitArgs partitions a clause's arguments into bare positionals (keys,
// predicates, targets — anything without "=") and key=value options, each
// in original order but separated into the two slices the per-stage
// constructors expect.
func splitArgs(args []string) (positional []string, options []option) {
	for _, a := range args {
		if eq := strings.IndexByte(a, '='); eq >= 0 && isOptionName(a[:eq]) {
			options = append(options, option{key: a[:eq], value: a[eq+1:]})
			continue
		}
		positional = append(positional, a)
	}
	return positional, options
}

// isOptionName reports whether s looks like one of the fixed option
// keywords rather than part of a key/target expression that happens to
// contain "=" (value expressions never do: spec.md §4.1 grammar has no
// "=" in a key). This lets splitArgs use a single rule without a
// per-stage keyword whitelist.
func isOptionName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == '-' || (r >= 'a' && r <= 'z') {
			continue
		}
		return false
	}
	return true
}

// findOption returns the value of the first option named key, if any.
func findOption(options []option, key string) (string, bool) {
	for _, o := range options {
		if o.key == key {
			return o.value, true
		}
	}
	return "", false
}

// boolFlag reports whether a bare positional flag (e.g. "yield",
// "sequential") is present among args.
func boolFlag(positional []string, name string) bool {
	for _, p := range positional {
		if p == name {
			return true
		}
	}
	return false
}

// withoutFlags returns positional with every name in flags removed,
// leaving only the key-language arguments (predicates/targets).
func withoutFlags(positional []string, flags ...string) []string {
	out := positional[:0:0]
	for _, p := range positional {
		skip := false
		for _, f := range flags {
			if p == f {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, p)
		}
	}
	return out
}
