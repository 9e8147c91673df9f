package key

import "github.com/evsieve/evsieve/internal/event"

// typeNames is the frozen table of symbolic event-type names recognized by
// the key language. Frozen at build time per spec.md §4.1 ("unknown name"
// errors are compile errors resolved against a table frozen at build time).
var typeNames = map[string]event.Type{
	"syn": event.EV_SYN,
	"key": event.EV_KEY,
	"rel": event.EV_REL,
	"abs": event.EV_ABS,
	"msc": event.EV_MSC,
}

var typeNamesReverse = func() map[event.Type]string {
	m := make(map[event.Type]string, len(typeNames))
	for name, t := range typeNames {
		m[t] = name
	}
	return m
}()

// keyCodeNames maps symbolic EV_KEY names to their kernel code. Not
// exhaustive: covers the names spec.md's scenarios and common bindings
// exercise. Unknown symbolic names are a compile-time "unknown name" error.
var keyCodeNames = map[string]uint16{
	"esc":        1,
	"1":          2,
	"2":          3,
	"3":          4,
	"4":          5,
	"5":          6,
	"6":          7,
	"7":          8,
	"8":          9,
	"9":          10,
	"0":          11,
	"a":          30,
	"b":          48,
	"c":          46,
	"d":          32,
	"e":          18,
	"f":          33,
	"g":          34,
	"h":          35,
	"i":          23,
	"j":          36,
	"k":          37,
	"l":          38,
	"m":          50,
	"n":          49,
	"o":          24,
	"p":          25,
	"q":          16,
	"r":          19,
	"s":          31,
	"t":          20,
	"u":          22,
	"v":          47,
	"w":          17,
	"x":          45,
	"y":          21,
	"z":          44,
	"enter":      28,
	"leftctrl":   29,
	"leftshift":  42,
	"rightshift": 54,
	"leftalt":    56,
	"rightctrl":  97,
	"rightalt":   100,
	"space":      57,
	"capslock":   58,
	"backspace":  14,
	"tab":        15,
	"scrolllock": 70,
	"f1":         59,
	"f2":         60,
}

var absCodeNames = map[string]uint16{
	"x":  0,
	"y":  1,
	"z":  2,
	"rx": 3,
	"ry": 4,
	"rz": 5,
}

var relCodeNames = map[string]uint16{
	"x":      0,
	"y":      1,
	"wheel":  8,
	"hwheel": 6,
}

// lookupCode resolves a symbolic code name against the table for the given
// type. Returns ok=false for an unrecognized name, which the parser turns
// into a syntactic/compile error.
func lookupCode(t event.Type, name string) (uint16, bool) {
	switch t {
	case event.EV_KEY:
		c, ok := keyCodeNames[name]
		return c, ok
	case event.EV_ABS:
		c, ok := absCodeNames[name]
		return c, ok
	case event.EV_REL:
		c, ok := relCodeNames[name]
		return c, ok
	default:
		return 0, false
	}
}
