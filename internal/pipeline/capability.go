package pipeline

import (
	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
	"github.com/evsieve/evsieve/internal/stage"
)

// ComputeCapabilities implements spec.md §4.13's capability propagation as
// an abstract interpretation over the compiled stage list: a single
// running set, seeded from every Input's live capabilities (queried by
// the runtime via devio, since real capability introspection needs an
// open device handle) and widened — never narrowed — by every Map, Copy,
// and Toggle target it passes. Each Output snapshots the running set at
// its position. Widening is deliberately conservative: a Block or Merge
// never removes a (type, code) the set already contains, matching spec.md
// §4.13's "false positives acceptable, false negatives a bug".
func (p *Pipeline) ComputeCapabilities(inputCaps map[string]capability.Set) {
	running := capability.New()
	for _, in := range p.Inputs {
		if caps, ok := inputCaps[in.Path]; ok {
			running.Merge(caps)
		}
	}

	for _, s := range p.Stages {
		switch st := s.(type) {
		case *stage.Map:
			widenByTargets(running, st.Targets)
		case *stage.Toggle:
			widenByTargets(running, st.Targets)
		case *stage.Hook:
			widenBySendKeys(running, st.SendKeyIdentities())
		case *stage.Output:
			st.Capabilities = running.Clone()
		}
	}
}

// widenByTargets adds one capability entry per target that names an
// explicit (type, code), with the widest value range the target could
// ever produce: unbounded for an affine expression (spec.md §4.13: widen
// to "full int range" when not otherwise inferable), a single point for a
// constant, and the full range when the target merely copies the
// source's value (since the source's own range is often itself
// unbounded, and widening further is always safe).
func widenByTargets(running capability.Set, targets []key.Target) {
	for _, t := range targets {
		typ, code, ok := t.StaticIdentity()
		if !ok {
			// The target inherits type/code from the source; the source's
			// own (type, code) entries are already in running, so there is
			// nothing new to add here.
			continue
		}
		running.Add(capability.Key{Type: typ, Code: code}, t.StaticValueRange())
	}
}

// widenBySendKeys adds a capability entry for every Hook send-key action: a
// synthesized key only ever carries value 0 (up) or 1 (down), never a
// repeat, so the range is the exact join of those two points rather than
// the full int range widenByTargets gives a target whose value is not a
// constant.
func widenBySendKeys(running capability.Set, sendKeys []struct {
	Type event.Type
	Code uint16
}) {
	down := capability.Single(1)
	up := capability.Single(0)
	for _, sk := range sendKeys {
		running.Add(capability.Key{Type: sk.Type, Code: sk.Code}, down.Join(up))
	}
}
