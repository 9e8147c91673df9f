// Package key implements the textual key language of spec.md §4.1: the
// parser that turns "[type[:code[:value]]][@domain]" into either a
// Predicate (source matching) or a Target (output rewriting).
package key

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/state"
)

// numericCodeMarker distinguishes a numeric code literal from a symbolic
// name that happens to be numeric (spec.md §4.1).
const numericCodeMarker = '#'

// rawKey is the parsed-but-uninterpreted textual key, shared by both
// Predicate and Target construction.
type rawKey struct {
	typ    string // "" means unspecified
	code   string // "" means unspecified
	value  string // "" means unspecified
	domain string
	hasAt  bool // true if "@domain" was present at all
}

func parseRaw(s string) (rawKey, error) {
	var r rawKey

	if at := strings.IndexByte(s, '@'); at >= 0 {
		r.hasAt = true
		r.domain = s[at+1:]
		s = s[:at]
	}

	parts := strings.SplitN(s, ":", 3)
	if len(parts[0]) > 0 {
		r.typ = parts[0]
	}
	if len(parts) > 1 {
		r.code = parts[1]
	}
	if len(parts) > 2 {
		r.value = parts[2]
	}
	return r, nil
}

func (r rawKey) resolveType() (*event.Type, error) {
	if r.typ == "" {
		return nil, nil
	}
	t, ok := typeNames[r.typ]
	if !ok {
		return nil, fmt.Errorf("unknown event type name %q", r.typ)
	}
	return &t, nil
}

// resolveCode resolves the code component against t, which may be nil
// (unspecified type) only when the code is itself unspecified or numeric.
func (r rawKey) resolveCode(t *event.Type) (*uint16, error) {
	if r.code == "" {
		return nil, nil
	}
	if r.code[0] == numericCodeMarker {
		n, err := strconv.ParseUint(r.code[1:], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric code %q: %w", r.code, err)
		}
		c := uint16(n)
		return &c, nil
	}
	if t == nil {
		return nil, fmt.Errorf("symbolic code %q requires an explicit event type", r.code)
	}
	c, ok := lookupCode(*t, strings.ToLower(r.code))
	if !ok {
		return nil, fmt.Errorf("unknown code name %q for type %s", r.code, typeNamesReverse[*t])
	}
	return &c, nil
}

// Predicate matches an incoming event. Built from the source-side grammar:
// unspecified components match anything, values may be ranges/transitions.
type Predicate struct {
	typ    *event.Type
	code   *uint16
	domain *event.Domain
	value  valueMatcher
}

// ParsePredicate parses a textual key into a source Predicate.
func ParsePredicate(s string) (Predicate, error) {
	r, err := parseRaw(s)
	if err != nil {
		return Predicate{}, err
	}

	t, err := r.resolveType()
	if err != nil {
		return Predicate{}, err
	}
	c, err := r.resolveCode(t)
	if err != nil {
		return Predicate{}, err
	}

	var dom *event.Domain
	if r.hasAt {
		d := event.Domain(r.domain)
		dom = &d
	}

	vm, err := parseValueMatcher(r.value)
	if err != nil {
		return Predicate{}, fmt.Errorf("invalid value pattern %q: %w", r.value, err)
	}

	return Predicate{typ: t, code: c, domain: dom, value: vm}, nil
}

// Matches reports whether ev satisfies the predicate, consulting tracker
// for transition predicates that reference the previous value.
func (p Predicate) Matches(ev event.Event, tracker *state.Tracker) bool {
	if p.typ != nil && *p.typ != ev.Type {
		return false
	}
	if p.code != nil && *p.code != ev.Code {
		return false
	}
	if p.domain != nil && *p.domain != ev.Domain {
		return false
	}
	return p.value.matches(ev, tracker)
}

// IdentityMatches reports whether ev shares this predicate's (type, code,
// domain) identity, ignoring the value component entirely. Hook slots use
// this to decide which incoming events are "about" a given slot (spec.md
// §4.9: "if the event matches that key's type/code/domain identity").
func (p Predicate) IdentityMatches(ev event.Event) bool {
	if p.typ != nil && *p.typ != ev.Type {
		return false
	}
	if p.code != nil && *p.code != ev.Code {
		return false
	}
	if p.domain != nil && *p.domain != ev.Domain {
		return false
	}
	return true
}

// HasTransition reports whether the value component is a transition.
// Hook key patterns forbid transitions (spec.md §4.9).
func (p Predicate) HasTransition() bool {
	_, ok := p.value.(transitionMatcher)
	return ok
}

// ValueMatches reports whether v alone (ignoring identity) satisfies a
// non-transition value pattern; used by Hook slot satisfaction checks,
// which only ever use plain patterns (transitions are rejected at parse).
func (p Predicate) ValueMatches(v int32) bool {
	if pm, ok := p.value.(patternMatcher); ok {
		return pm.pattern.matches(v)
	}
	if _, ok := p.value.(anyMatcher); ok {
		return true
	}
	return false
}

// ParseIdentity resolves a bare key string to its (type, code) pair,
// defaulting to EV_KEY when no type is given: `send-key=KEY` and a Hook's
// synthesized events name only a key, never a full predicate (spec.md
// §4.9). A value or domain component is a syntax error here.
func ParseIdentity(s string) (event.Type, uint16, error) {
	r, err := parseRaw(s)
	if err != nil {
		return 0, 0, err
	}
	if r.value != "" {
		return 0, 0, fmt.Errorf("a value is not allowed here: %q", s)
	}
	if r.hasAt {
		return 0, 0, fmt.Errorf("a domain is not allowed here: %q", s)
	}
	if r.code == "" && r.typ != "" {
		if _, isType := typeNames[r.typ]; !isType {
			r.code, r.typ = r.typ, ""
		}
	}

	t, err := r.resolveType()
	if err != nil {
		return 0, 0, err
	}
	typ := event.EV_KEY
	if t != nil {
		typ = *t
	}

	c, err := r.resolveCode(&typ)
	if err != nil {
		return 0, 0, err
	}
	if c == nil {
		return 0, 0, fmt.Errorf("a code is required here: %q", s)
	}
	return typ, *c, nil
}

// Target rewrites a matched source event. Unspecified components copy the
// source; value is either absent (copy), a constant, or an affine
// expression over x and d. Ranges/transitions/wildcards are illegal here.
type Target struct {
	typ      *event.Type
	code     *uint16
	domain   *event.Domain
	hasAt    bool
	constant *int32
	expr     *expr
}

// ParseTarget parses a textual key into an output Target.
func ParseTarget(s string) (Target, error) {
	r, err := parseRaw(s)
	if err != nil {
		return Target{}, err
	}

	t, err := r.resolveType()
	if err != nil {
		return Target{}, err
	}
	c, err := r.resolveCode(t)
	if err != nil {
		return Target{}, err
	}

	tgt := Target{typ: t, code: c, hasAt: r.hasAt}
	if r.hasAt {
		d := event.Domain(r.domain)
		tgt.domain = &d
	}

	if r.value == "" {
		return tgt, nil
	}
	if strings.Contains(r.value, "~") || strings.Contains(r.value, "..") {
		return Target{}, fmt.Errorf("ranges and transitions are not allowed in targets: %q", r.value)
	}
	if n, err := strconv.ParseInt(r.value, 10, 32); err == nil {
		v := int32(n)
		tgt.constant = &v
		return tgt, nil
	}
	e, err := parseExpr(r.value)
	if err != nil {
		return Target{}, fmt.Errorf("invalid value expression %q: %w", r.value, err)
	}
	tgt.expr = &e
	return tgt, nil
}

// Apply rewrites source into the target event, consulting tracker for the
// `d` (delta) term of value expressions.
func (tg Target) Apply(source event.Event, deviceTracker *state.Tracker) event.Event {
	out := source
	if tg.typ != nil {
		out.Type = *tg.typ
	}
	if tg.code != nil {
		out.Code = *tg.code
	}
	if tg.hasAt {
		out.Domain = *tg.domain
	}

	switch {
	case tg.constant != nil:
		out.Value = *tg.constant
	case tg.expr != nil:
		prev, ok := deviceTracker.Previous(source.Device, source.Type, source.Code, source.Domain)
		d := int32(0)
		if ok {
			d = source.Value - prev
		}
		out.Value = tg.expr.eval(source.Value, d)
	default:
		out.Value = source.Value
	}
	return out
}

// StaticIdentity returns the (type, code) this target always produces,
// when known without a source event. A target with no explicit type/code
// inherits both from whatever matched the source predicate, which this
// pass cannot see statically, so it reports ok=false.
func (tg Target) StaticIdentity() (event.Type, uint16, bool) {
	if tg.typ == nil || tg.code == nil {
		return 0, 0, false
	}
	return *tg.typ, *tg.code, true
}

// StaticValueRange widens to the broadest value this target could ever
// write: a single point for a constant, or the full int32 range for an
// affine expression or a bare value copy (spec.md §4.13: widen rather than
// try to bound an expression's output precisely).
func (tg Target) StaticValueRange() capability.Range {
	if tg.constant != nil {
		return capability.Single(*tg.constant)
	}
	return capability.Full()
}

// TargetDomain resolves the domain a target event would receive for
// source, without actually applying the rest of the rewrite. Used by the
// capability propagation pass.
func (tg Target) TargetDomain(source event.Domain) event.Domain {
	if tg.hasAt {
		return *tg.domain
	}
	return source
}
