package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/evsieve/evsieve/internal/errs"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
	"github.com/evsieve/evsieve/internal/stage"
)

// Pipeline is the compiled, linked result of spec.md §4.13: an ordered
// stage list ready to be driven by the runtime scheduler, plus the side
// registries Hook/Toggle/Withhold actions resolve through and the
// metadata lifecycle needs to open inputs and register outputs.
type Pipeline struct {
	Stages  []stage.Stage
	Inputs  []*stage.Input
	Toggles *stage.ToggleRegistry
	Hooks   *stage.HookRegistry

	// OutputLinks maps each compiled Output to the symlink path requested
	// by its create-link= option, if any. Populated during compilation,
	// consumed by lifecycle once the uinput device has a /dev/input/eventN
	// node to point the link at.
	OutputLinks map[*stage.Output]string
}

// Compile turns a full command-line argument vector (everything after the
// program name) into a linked Pipeline. It never opens a device or spawns
// a process; that is the runtime's job once the Pipeline exists.
func Compile(argv []string) (*Pipeline, error) {
	clauses, err := splitClauses(argv)
	if err != nil {
		return nil, errs.New(errs.Syntactic, err)
	}
	if len(clauses) == 0 {
		return nil, errs.New(errs.SemanticCompile, fmt.Errorf("pipeline is empty"))
	}

	p := &Pipeline{
		Toggles:     stage.NewToggleRegistry(),
		Hooks:       stage.NewHookRegistry(),
		OutputLinks: make(map[*stage.Output]string),
	}

	// Pass 1: register every Toggle first. A Hook's `toggle=ID` option
	// must resolve regardless of whether that Toggle is declared before
	// or after the Hook (spec.md §4.13: "Toggles defined anywhere").
	built := make(map[int]*stage.Toggle, len(clauses))
	for i, c := range clauses {
		if c.name != "toggle" {
			continue
		}
		t, id, err := buildToggle(c)
		if err != nil {
			return nil, err
		}
		if _, err := p.Toggles.Register(t, id); err != nil {
			return nil, errs.New(errs.Syntactic, fmt.Errorf("--toggle: %w", err))
		}
		built[i] = t
	}

	// Pass 2: build the ordered stage list, tracking the run of Hook
	// clauses immediately preceding the current position so a Withhold
	// can bind to it (spec.md §4.10: "binds to the maximal run of Hook
	// clauses immediately preceding it").
	var pendingHooks []*stage.Hook
	for i, c := range clauses {
		switch c.name {
		case "input":
			in, err := buildInput(c)
			if err != nil {
				return nil, err
			}
			p.Inputs = append(p.Inputs, in)
			pendingHooks = nil

		case "map":
			s, err := buildMap(c, false)
			if err != nil {
				return nil, err
			}
			p.Stages = append(p.Stages, s)
			pendingHooks = nil

		case "copy":
			s, err := buildMap(c, true)
			if err != nil {
				return nil, err
			}
			p.Stages = append(p.Stages, s)
			pendingHooks = nil

		case "block":
			s, err := buildBlock(c)
			if err != nil {
				return nil, err
			}
			p.Stages = append(p.Stages, s)
			pendingHooks = nil

		case "merge":
			s, err := buildMerge(c)
			if err != nil {
				return nil, err
			}
			p.Stages = append(p.Stages, s)
			pendingHooks = nil

		case "delay":
			s, err := buildDelay(c)
			if err != nil {
				return nil, err
			}
			p.Stages = append(p.Stages, s)
			pendingHooks = nil

		case "toggle":
			t, ok := built[i]
			if !ok {
				return nil, errs.New(errs.Internal, fmt.Errorf("toggle clause %d missing from pass 1", i))
			}
			p.Stages = append(p.Stages, t)
			pendingHooks = nil

		case "hook":
			h, err := buildHook(c, p.Toggles)
			if err != nil {
				return nil, err
			}
			p.Hooks.Register(h)
			p.Stages = append(p.Stages, h)
			pendingHooks = append(pendingHooks, h)

		case "withhold":
			if len(pendingHooks) == 0 {
				return nil, errs.New(errs.Syntactic, fmt.Errorf("--withhold must immediately follow one or more --hook clauses"))
			}
			w, err := buildWithhold(c, pendingHooks)
			if err != nil {
				return nil, err
			}
			p.Stages = append(p.Stages, w)
			pendingHooks = nil

		case "print":
			s, err := buildPrint(c)
			if err != nil {
				return nil, err
			}
			p.Stages = append(p.Stages, s)
			pendingHooks = nil

		case "output":
			s, link, err := buildOutput(c)
			if err != nil {
				return nil, err
			}
			p.Stages = append(p.Stages, s)
			if link != "" {
				p.OutputLinks[s] = link
			}
			pendingHooks = nil

		default:
			return nil, errs.New(errs.Syntactic, fmt.Errorf("unknown stage %q", c.name))
		}
	}

	if len(p.Inputs) == 0 {
		return nil, errs.New(errs.SemanticCompile, fmt.Errorf("pipeline declares no --input"))
	}
	hasOutput := false
	for _, s := range p.Stages {
		if _, ok := s.(*stage.Output); ok {
			hasOutput = true
			break
		}
	}
	if !hasOutput {
		return nil, errs.New(errs.SemanticCompile, fmt.Errorf("pipeline declares no --output"))
	}

	return p, nil
}

func parsePredicates(args []string) ([]key.Predicate, error) {
	preds := make([]key.Predicate, 0, len(args))
	for _, a := range args {
		p, err := key.ParsePredicate(a)
		if err != nil {
			return nil, errs.New(errs.Syntactic, err)
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func parseTargets(args []string) ([]key.Target, error) {
	targets := make([]key.Target, 0, len(args))
	for _, a := range args {
		t, err := key.ParseTarget(a)
		if err != nil {
			return nil, errs.New(errs.Syntactic, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func buildInput(c clause) (*stage.Input, error) {
	positional, options := splitArgs(c.args)
	grab := stage.GrabNone
	if boolFlag(positional, "grab") {
		grab = stage.GrabForce
	}
	positional = withoutFlags(positional, "grab")
	if v, ok := findOption(options, "grab"); ok {
		switch v {
		case "force":
			grab = stage.GrabForce
		case "auto":
			grab = stage.GrabAuto
		case "none":
			grab = stage.GrabNone
		default:
			return nil, errs.New(errs.Syntactic, fmt.Errorf("--input: unknown grab mode %q", v))
		}
	}

	persist := stage.PersistNone
	if v, ok := findOption(options, "persist"); ok {
		switch v {
		case "reopen":
			persist = stage.PersistReopen
		case "exit":
			persist = stage.PersistExit
		case "none":
			persist = stage.PersistNone
		default:
			return nil, errs.New(errs.Syntactic, fmt.Errorf("--input: unknown persist mode %q", v))
		}
	}

	if len(positional) != 1 {
		return nil, errs.New(errs.Syntactic, fmt.Errorf("--input requires exactly one device path, got %d", len(positional)))
	}
	path := positional[0]

	domain := event.Domain(path)
	if v, ok := findOption(options, "domain"); ok {
		domain = event.Domain(v)
	}

	return stage.NewInput(path, grab, persist, domain), nil
}

func buildMap(c clause, isCopy bool) (*stage.Map, error) {
	positional, _ := splitArgs(c.args)
	yield := boolFlag(positional, "yield")
	positional = withoutFlags(positional, "yield")

	name := "--map"
	if isCopy {
		name = "--copy"
	}
	if len(positional) == 0 {
		return nil, errs.New(errs.Syntactic, fmt.Errorf("%s requires a source key", name))
	}

	pred, err := key.ParsePredicate(positional[0])
	if err != nil {
		return nil, errs.New(errs.Syntactic, fmt.Errorf("%s: %w", name, err))
	}
	targets, err := parseTargets(positional[1:])
	if err != nil {
		return nil, err
	}

	if isCopy {
		return stage.NewCopy(pred, targets, yield), nil
	}
	return stage.NewMap(pred, targets, yield), nil
}

func buildBlock(c clause) (*stage.Block, error) {
	positional, _ := splitArgs(c.args)
	preds, err := parsePredicates(positional)
	if err != nil {
		return nil, err
	}
	return stage.NewBlock(preds), nil
}

func buildMerge(c clause) (*stage.Merge, error) {
	positional, _ := splitArgs(c.args)
	preds, err := parsePredicates(positional)
	if err != nil {
		return nil, err
	}
	return stage.NewMerge(preds), nil
}

func buildDelay(c clause) (*stage.Delay, error) {
	positional, options := splitArgs(c.args)
	preds, err := parsePredicates(positional)
	if err != nil {
		return nil, err
	}
	periodStr, ok := findOption(options, "period")
	if !ok {
		return nil, errs.New(errs.Syntactic, fmt.Errorf("--delay requires period=SECONDS"))
	}
	seconds, err := strconv.ParseFloat(periodStr, 64)
	if err != nil {
		return nil, errs.New(errs.Syntactic, fmt.Errorf("--delay: invalid period %q: %w", periodStr, err))
	}
	return stage.NewDelay(preds, time.Duration(seconds*float64(time.Second))), nil
}

func buildToggle(c clause) (*stage.Toggle, string, error) {
	positional, options := splitArgs(c.args)

	consistent := true
	if v, ok := findOption(options, "mode"); ok {
		switch v {
		case "consistent":
			consistent = true
		case "passive":
			consistent = false
		default:
			return nil, "", errs.New(errs.Syntactic, fmt.Errorf("--toggle: unknown mode %q", v))
		}
	}
	id, _ := findOption(options, "id")

	if len(positional) == 0 {
		return nil, "", errs.New(errs.Syntactic, fmt.Errorf("--toggle requires a source key"))
	}
	source, err := key.ParsePredicate(positional[0])
	if err != nil {
		return nil, "", errs.New(errs.Syntactic, fmt.Errorf("--toggle: %w", err))
	}
	targets, err := parseTargets(positional[1:])
	if err != nil {
		return nil, "", err
	}
	if len(targets) == 0 {
		return nil, "", errs.New(errs.SemanticCompile, fmt.Errorf("--toggle requires at least one target"))
	}

	return stage.NewToggle(source, targets, id, consistent), id, nil
}

// hookSlotDefaultValue is "1~" (spec.md §4.9: a bare Hook key is satisfied
// by any down or repeat, never an up). withDefaultValue injects it when
// the user wrote no third ":value" component.
const hookSlotDefaultValue = "1~"

func withDefaultValue(s, def string) string {
	left, domain := s, ""
	if at := strings.IndexByte(s, '@'); at >= 0 {
		left, domain = s[:at], s[at:]
	}
	parts := strings.SplitN(left, ":", 3)
	for len(parts) < 2 {
		parts = append(parts, "")
	}
	if len(parts) < 3 {
		parts = append(parts, def)
	} else if parts[2] == "" {
		parts[2] = def
	}
	return strings.Join(parts, ":") + domain
}

// splitToggleOptionValue parses a `toggle=ID[:idx]` option value into its
// optional ID and optional 1-based index (0 means "not given", i.e.
// advance-by-one at fire time).
func splitToggleOptionValue(v string) (id string, idx int) {
	if v == "" {
		return "", 0
	}
	if colon := strings.IndexByte(v, ':'); colon >= 0 {
		id = v[:colon]
		idx, _ = strconv.Atoi(v[colon+1:])
		return id, idx
	}
	return v, 0
}

func buildHook(c clause, toggles *stage.ToggleRegistry) (*stage.Hook, error) {
	positional, options := splitArgs(c.args)
	sequential := boolFlag(positional, "sequential")
	bareToggle := boolFlag(positional, "toggle")
	positional = withoutFlags(positional, "sequential", "toggle")

	if len(positional) == 0 {
		return nil, errs.New(errs.Syntactic, fmt.Errorf("--hook requires at least one key"))
	}

	slots := make([]key.Predicate, 0, len(positional))
	for _, s := range positional {
		pred, err := key.ParsePredicate(withDefaultValue(s, hookSlotDefaultValue))
		if err != nil {
			return nil, errs.New(errs.Syntactic, fmt.Errorf("--hook: %w", err))
		}
		if pred.HasTransition() {
			return nil, errs.New(errs.Syntactic, fmt.Errorf("--hook: transitions are not allowed in hook keys: %q", s))
		}
		slots = append(slots, pred)
	}

	var period time.Duration
	if v, ok := findOption(options, "period"); ok {
		seconds, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errs.New(errs.Syntactic, fmt.Errorf("--hook: invalid period %q: %w", v, err))
		}
		period = time.Duration(seconds * float64(time.Second))
	}

	var breaksOn []key.Predicate
	for _, o := range options {
		if o.key != "breaks-on" {
			continue
		}
		p, err := key.ParsePredicate(o.value)
		if err != nil {
			return nil, errs.New(errs.Syntactic, fmt.Errorf("--hook: breaks-on: %w", err))
		}
		breaksOn = append(breaksOn, p)
	}

	h := stage.NewHook(slots, sequential, period, breaksOn)

	if bareToggle {
		h.AddToggleAction(toggles.All(), 0)
	}
	for _, o := range options {
		if o.key != "toggle" {
			continue
		}
		id, idx := splitToggleOptionValue(o.value)
		var handles []stage.ToggleHandle
		if id == "" {
			handles = toggles.All()
		} else {
			th, ok := toggles.Resolve(id)
			if !ok {
				return nil, errs.New(errs.SemanticCompile, fmt.Errorf("--hook: unresolved toggle id %q", id))
			}
			handles = []stage.ToggleHandle{th}
		}
		if idx > 0 {
			for _, th := range handles {
				if n := toggles.TargetCount(th); idx > n {
					return nil, errs.New(errs.SemanticCompile, fmt.Errorf("--hook: toggle index %d out of range for toggle with %d target(s)", idx, n))
				}
			}
		}
		h.AddToggleAction(handles, idx)
	}
	for _, o := range options {
		if o.key == "exec-shell" {
			h.AddExecShell(o.value)
		}
	}
	for _, o := range options {
		if o.key != "send-key" {
			continue
		}
		typ, code, err := key.ParseIdentity(o.value)
		if err != nil {
			return nil, errs.New(errs.Syntactic, fmt.Errorf("--hook: send-key: %w", err))
		}
		h.AddSendKey(typ, code)
	}

	return h, nil
}

func buildWithhold(c clause, hooks []*stage.Hook) (*stage.Withhold, error) {
	positional, _ := splitArgs(c.args)
	preds, err := parsePredicates(positional)
	if err != nil {
		return nil, err
	}
	boundHooks := make([]*stage.Hook, len(hooks))
	copy(boundHooks, hooks)
	return stage.NewWithhold(preds, boundHooks), nil
}

func buildPrint(c clause) (*stage.Print, error) {
	positional, options := splitArgs(c.args)
	preds, err := parsePredicates(positional)
	if err != nil {
		return nil, err
	}
	direct := false
	if v, ok := findOption(options, "format"); ok {
		switch v {
		case "direct":
			direct = true
		case "default":
			direct = false
		default:
			return nil, errs.New(errs.Syntactic, fmt.Errorf("--print: unknown format %q", v))
		}
	}
	return stage.NewPrint(preds, direct), nil
}

func buildOutput(c clause) (*stage.Output, string, error) {
	positional, options := splitArgs(c.args)
	bareRepeat := boolFlag(positional, "repeat")
	positional = withoutFlags(positional, "repeat")

	preds, err := parsePredicates(positional)
	if err != nil {
		return nil, "", err
	}

	name := "Evsieve Virtual Device"
	if v, ok := findOption(options, "name"); ok {
		name = v
	}

	repeat := stage.RepeatPassive
	if bareRepeat {
		repeat = stage.RepeatEnable
	}
	if v, ok := findOption(options, "repeat"); ok {
		switch v {
		case "passive":
			repeat = stage.RepeatPassive
		case "disable":
			repeat = stage.RepeatDisable
		case "enable":
			repeat = stage.RepeatEnable
		default:
			return nil, "", errs.New(errs.Syntactic, fmt.Errorf("--output: unknown repeat mode %q", v))
		}
	}

	link, _ := findOption(options, "create-link")

	// Capabilities are filled in by Pipeline.ComputeCapabilities once the
	// runtime has queried every --input's live capability set.
	return stage.NewOutput(preds, name, repeat, nil), link, nil
}
