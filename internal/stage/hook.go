package stage

import (
	"time"

	"github.com/evsieve/evsieve/internal/diag"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
)

// HookHandle is a resolved reference to a Hook, used by a bound Withhold
// the same way ToggleHandle is used by toggle actions (spec.md §9).
type HookHandle int

// HookRegistry owns every Hook in a compiled pipeline, so a Withhold can
// query the Hooks it binds to without holding direct pointers.
type HookRegistry struct {
	hooks []*Hook
}

func NewHookRegistry() *HookRegistry { return &HookRegistry{} }

func (r *HookRegistry) Register(h *Hook) HookHandle {
	handle := HookHandle(len(r.hooks))
	r.hooks = append(r.hooks, h)
	return handle
}

func (r *HookRegistry) Get(h HookHandle) *Hook { return r.hooks[h] }

// toggleAction is one `toggle[=ID[:idx]]` action attached to a Hook.
type toggleAction struct {
	handles []ToggleHandle // every toggle this action applies to; all toggles if the action had no ID
	setIdx  int            // 1-based; 0 means "advance by one" rather than set
}

// sendKeyAction is one `send-key=KEY` action: synthesizes KEY down on fire
// and KEY up once the hook's condition stops holding.
type sendKeyAction struct {
	typ  event.Type
	code uint16
}

type hookSlot struct {
	pattern          key.Predicate // identity-only match (type/code/domain); value pattern applied separately
	satisfied        bool
	lastSatisfiedAt  time.Time
	hasLastSatisfied bool
}

// StepResult records, for the most recent Process call, what happened to
// this Hook: whether it fired, and whether any slot flipped from
// satisfied to unsatisfied. A Withhold bound to this Hook reads StepResult
// synchronously, in the same call stack, immediately after the Hook
// processes the same event (spec.md §4.10 requires a Withhold to
// textually follow its Hooks, so they always see the same event in
// sequence).
type StepResult struct {
	Fired              bool
	AnySlotBecameUnsat bool
	ContributingSlot   bool // true if the just-processed event matched one of this hook's slots at all
}

// Hook implements spec.md §4.9. It never consumes events: Process always
// returns the input event unchanged (plus, inline, any send-key
// synthesis).
type Hook struct {
	Slots      []hookSlot
	Sequential bool
	Period     time.Duration // zero means no period constraint
	BreaksOn   []key.Predicate

	toggleActions []toggleAction
	sendKeys      []sendKeyAction
	exec          []string

	sendKeyHeld []bool // parallel to sendKeys: whether the synthesized down is currently outstanding

	last StepResult
}

func NewHook(slotPatterns []key.Predicate, sequential bool, period time.Duration, breaksOn []key.Predicate) *Hook {
	slots := make([]hookSlot, len(slotPatterns))
	for i, p := range slotPatterns {
		slots[i] = hookSlot{pattern: p}
	}
	return &Hook{Slots: slots, Sequential: sequential, Period: period, BreaksOn: breaksOn}
}

func (h *Hook) AddToggleAction(handles []ToggleHandle, setIdx int) {
	h.toggleActions = append(h.toggleActions, toggleAction{handles: handles, setIdx: setIdx})
}

func (h *Hook) AddSendKey(typ event.Type, code uint16) {
	h.sendKeys = append(h.sendKeys, sendKeyAction{typ: typ, code: code})
	h.sendKeyHeld = append(h.sendKeyHeld, false)
}

// SendKeyIdentities returns the (type, code) of every send-key action this
// Hook can synthesize. Used by the pipeline compiler's capability
// propagation pass, since a synthesized key is never read from any Map or
// Toggle target and would otherwise be invisible to it.
func (h *Hook) SendKeyIdentities() []struct {
	Type event.Type
	Code uint16
} {
	out := make([]struct {
		Type event.Type
		Code uint16
	}, len(h.sendKeys))
	for i, sk := range h.sendKeys {
		out[i].Type = sk.typ
		out[i].Code = sk.code
	}
	return out
}

func (h *Hook) AddExecShell(cmd string) {
	h.exec = append(h.exec, cmd)
}

func (h *Hook) Name() string { return "hook" }

// LastStep exposes the outcome of the most recent Process call, for a
// bound Withhold to consult.
func (h *Hook) LastStep() StepResult { return h.last }

// AllSatisfied reports whether every slot is currently satisfied.
func (h *Hook) AllSatisfied() bool {
	for _, s := range h.Slots {
		if !s.satisfied {
			return false
		}
	}
	return true
}

// AnySatisfied reports whether at least one slot is currently satisfied.
// Used by a bound Withhold to know when a fired combo has fully unwound
// (every contributing key released) and a fresh attempt can start.
func (h *Hook) AnySatisfied() bool {
	for _, s := range h.Slots {
		if s.satisfied {
			return true
		}
	}
	return false
}

func (h *Hook) resetSlots() {
	for i := range h.Slots {
		h.Slots[i].satisfied = false
		h.Slots[i].hasLastSatisfied = false
	}
}

func (h *Hook) Process(ev event.Event, selfIndex int, ctx *Context) []event.Event {
	h.last = StepResult{}

	if !isOwnSlotIdentity(h, ev) {
		for _, b := range h.BreaksOn {
			if !b.Matches(ev, ctx.Tracker) {
				continue
			}
			wasFiring := h.AllSatisfied()
			h.resetSlots()
			if wasFiring {
				h.last.AnySlotBecameUnsat = true
			}
			released := h.releaseSendKeys(ctx)
			return append([]event.Event{ev}, released...)
		}
	}

	triggerSlot := -1
	transitionedToSatisfied := false
	for i := range h.Slots {
		if !h.Slots[i].pattern.IdentityMatches(ev) {
			continue
		}
		triggerSlot = i
		h.last.ContributingSlot = true
		wasSatisfied := h.Slots[i].satisfied
		nowSatisfied := h.Slots[i].pattern.ValueMatches(ev.Value)
		h.Slots[i].satisfied = nowSatisfied
		if nowSatisfied && !wasSatisfied {
			h.Slots[i].lastSatisfiedAt = ctx.Now()
			h.Slots[i].hasLastSatisfied = true
			transitionedToSatisfied = true
		}
		if wasSatisfied && !nowSatisfied {
			h.last.AnySlotBecameUnsat = true
		}
		break
	}

	fires := triggerSlot >= 0 && transitionedToSatisfied && h.AllSatisfied() &&
		h.sequentialOK(triggerSlot) && h.periodOK()

	var out []event.Event
	out = append(out, ev)

	if fires {
		h.last.Fired = true
		ctx.Diag.Publish(diag.HookFiredEvent{Index: selfIndex})
		h.fireActions(ctx)
		out = append(out, h.synthesizeSendKeyDowns(ctx)...)
	} else if h.last.AnySlotBecameUnsat {
		out = append(out, h.releaseSendKeys(ctx)...)
	}

	return out
}

// sequentialOK enforces spec.md §4.9 condition 3: the trigger slot's most
// recent transition-to-satisfied timestamp must be the latest among all
// slots, regardless of declaration order. A declaration-order walk is not
// equivalent: with slots [A,B,C] pressed in order B,C,A, the trigger is A
// (the last to become satisfied) even though A is declared first.
func (h *Hook) sequentialOK(trigger int) bool {
	if !h.Sequential {
		return true
	}
	triggerAt := h.Slots[trigger].lastSatisfiedAt
	for i, s := range h.Slots {
		if i == trigger {
			continue
		}
		if s.lastSatisfiedAt.After(triggerAt) {
			return false
		}
	}
	return true
}

func (h *Hook) periodOK() bool {
	if h.Period == 0 {
		return true
	}
	var min, max time.Time
	for _, s := range h.Slots {
		if !s.hasLastSatisfied {
			continue
		}
		if min.IsZero() || s.lastSatisfiedAt.Before(min) {
			min = s.lastSatisfiedAt
		}
		if max.IsZero() || s.lastSatisfiedAt.After(max) {
			max = s.lastSatisfiedAt
		}
	}
	if min.IsZero() || max.IsZero() {
		return true
	}
	return max.Sub(min) <= h.Period
}

func (h *Hook) fireActions(ctx *Context) {
	for _, a := range h.toggleActions {
		for _, handle := range a.handles {
			if a.setIdx > 0 {
				ctx.Toggles.SetIndex(handle, a.setIdx-1)
			} else {
				ctx.Toggles.Advance(handle)
			}
		}
	}
	for _, cmd := range h.exec {
		if ctx.Spawner != nil {
			ctx.Spawner.Spawn(cmd)
		}
	}
}

func (h *Hook) synthesizeSendKeyDowns(ctx *Context) []event.Event {
	var out []event.Event
	for i, sk := range h.sendKeys {
		if h.sendKeyHeld[i] {
			continue
		}
		h.sendKeyHeld[i] = true
		out = append(out, event.Event{Type: sk.typ, Code: sk.code, Value: 1, Time: ctx.Now()})
	}
	return out
}

func (h *Hook) releaseSendKeys(ctx *Context) []event.Event {
	var out []event.Event
	for i, sk := range h.sendKeys {
		if !h.sendKeyHeld[i] {
			continue
		}
		h.sendKeyHeld[i] = false
		out = append(out, event.Event{Type: sk.typ, Code: sk.code, Value: 0, Time: ctx.Now()})
	}
	return out
}

// isOwnSlotIdentity reports whether ev identity-matches one of h's own
// slots, which exempts it from breaks-on per spec.md §4.9.
func isOwnSlotIdentity(h *Hook, ev event.Event) bool {
	for _, s := range h.Slots {
		if s.pattern.IdentityMatches(ev) {
			return true
		}
	}
	return false
}
