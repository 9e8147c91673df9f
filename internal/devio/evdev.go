//go:build linux

package devio

import (
	"time"

	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/event"
	evdev "github.com/gvalkov/golang-evdev"
)

// evdevReader adapts github.com/gvalkov/golang-evdev's *InputDevice to
// ReaderCapabilities, grounded on the single evdev reference file in the
// pack (_examples/other_examples/e47e48f5_canonical-snapd__cmd-snap-bootstrap-triggerwatch-evdev.go.go):
// Open, ReadOne, Capabilities, Grab/Release.
type evdevReader struct {
	dev      *evdev.InputDevice
	domain   event.Domain
	deviceID int
}

// OpenEvdev opens path as a real kernel input device, tagging every event
// it produces with domain (spec.md §3: "domain ... default is the
// originating input's path") and deviceID (the state tracker's "previous
// value" key includes the originating input-device-id).
func OpenEvdev(path string, domain event.Domain, deviceID int) (ReaderCapabilities, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, err
	}
	return &evdevReader{dev: dev, domain: domain, deviceID: deviceID}, nil
}

func (r *evdevReader) ReadEvent() (event.Event, error) {
	raw, err := r.dev.ReadOne()
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		Type:   event.Type(raw.Type),
		Code:   raw.Code,
		Value:  raw.Value,
		Domain: r.domain,
		Time:   time.Now(),
		Device: r.deviceID,
	}, nil
}

func (r *evdevReader) Fd() int {
	return int(r.dev.File.Fd())
}

func (r *evdevReader) Grab(exclusive bool) error {
	if exclusive {
		return r.dev.Grab()
	}
	return r.dev.Release()
}

func (r *evdevReader) Close() error {
	return r.dev.File.Close()
}

// Capabilities queries the kernel's advertised (type, code) bitmap for
// this device, widening each code's range conservatively since evdev's
// capability query exposes presence, not the exact value range a given
// code can take (EV_KEY codes get the range 0..2, covering up, down and
// repeat; every other type's codes get the full range since the
// absinfo min/max this library exposes separately from the capability map
// is not consulted here — a narrower, input-specific bound a future
// iteration could recover from AbsInfo()).
func (r *evdevReader) Capabilities() capability.Set {
	caps := capability.New()
	for capType, codes := range r.dev.Capabilities {
		typ := event.Type(capType.Type)
		for _, code := range codes {
			rng := capability.Full()
			if typ == event.EV_KEY {
				rng = capability.Range{Min: int32ptr(0), Max: int32ptr(2)}
			}
			caps.Add(capability.Key{Type: typ, Code: uint16(code.Code)}, rng)
		}
	}
	return caps
}

func int32ptr(v int32) *int32 { return &v }
