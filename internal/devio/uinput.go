//go:build linux

package devio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"time"
	"unsafe"

	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/event"
)

// This file talks to /dev/uinput directly via the kernel's stable raw
// ioctl ABI, grounded on the teacher's pkg/linuxav/v4l2/ioctl.go
// open/ioctl/close wrapper shape (ported from V4L2 ioctls to uinput
// ioctls; see DESIGN.md for why bendahl/uinput's preset-device API
// couldn't serve a dynamically-computed capability set instead).

const uinputIoctlBase = 'U'

func iocEncode(dir, nr, size uintptr) uintptr {
	return dir<<30 | uintptr(uinputIoctlBase)<<8 | nr | size<<16
}

var (
	uiDevCreate  = iocEncode(0, 1, 0)
	uiDevDestroy = iocEncode(0, 2, 0)
	uiSetEvBit   = iocEncode(1, 100, 4)
	uiSetKeyBit  = iocEncode(1, 101, 4)
	uiSetRelBit  = iocEncode(1, 102, 4)
	uiSetAbsBit  = iocEncode(1, 103, 4)
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func openRW(path string) (int, error) {
	return syscall.Open(path, syscall.O_RDWR|syscall.O_NONBLOCK, 0)
}

// uinputUserDev mirrors the kernel's legacy struct uinput_user_dev, the
// write()-based device descriptor that predates UI_DEV_SETUP and remains
// universally supported.
const (
	uinputMaxNameSize = 80
	absCnt            = 64
)

type uinputUserDev struct {
	Name         [uinputMaxNameSize]byte
	BusType      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FFEffectsMax uint32
	AbsMax       [absCnt]int32
	AbsMin       [absCnt]int32
	AbsFuzz      [absCnt]int32
	AbsFlat      [absCnt]int32
}

// uinputInputEvent mirrors struct input_event on a 64-bit Linux kernel:
// a 16-byte timeval followed by type/code/value.
type uinputInputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

type uinputWriter struct {
	fd int
}

// OpenUinput registers one virtual device with the kernel, advertising
// exactly the (type, code, range) triples in caps (spec.md §4.12/§4.13:
// "capability set computed statically"). The bus/vendor/product signature
// is a fixed constant, matching spec.md §6 ("bus/vendor/product (constant
// signature)").
func OpenUinput(name string, caps capability.Set) (Writer, error) {
	fd, err := openRW("/dev/uinput")
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w", err)
	}

	types := make(map[event.Type]bool)
	for k := range caps {
		types[k.Type] = true
	}
	for typ := range types {
		if err := ioctl(fd, uiSetEvBit, unsafe.Pointer(uintptr(typ))); err != nil {
			syscall.Close(fd)
			return nil, fmt.Errorf("UI_SET_EVBIT(%d): %w", typ, err)
		}
	}
	for k := range caps {
		var req uintptr
		switch k.Type {
		case event.EV_KEY:
			req = uiSetKeyBit
		case event.EV_REL:
			req = uiSetRelBit
		case event.EV_ABS:
			req = uiSetAbsBit
		default:
			continue
		}
		if err := ioctl(fd, req, unsafe.Pointer(uintptr(k.Code))); err != nil {
			syscall.Close(fd)
			return nil, fmt.Errorf("UI_SET_*BIT(%d,%d): %w", k.Type, k.Code, err)
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:], name)
	dev.BusType = 0x03 // BUS_USB
	dev.Vendor = 0x1209
	dev.Product = 0x0001
	dev.Version = 1
	for k, r := range caps {
		if k.Type != event.EV_ABS {
			continue
		}
		min, max := int32(0), int32(0)
		if r.Min != nil {
			min = *r.Min
		}
		if r.Max != nil {
			max = *r.Max
		}
		dev.AbsMin[k.Code] = min
		dev.AbsMax[k.Code] = max
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &dev); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("encode uinput_user_dev: %w", err)
	}
	if _, err := syscall.Write(fd, buf.Bytes()); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("write uinput_user_dev: %w", err)
	}

	if err := ioctl(fd, uiDevCreate, nil); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	return &uinputWriter{fd: fd}, nil
}

func (w *uinputWriter) WriteEvent(ev event.Event) error {
	now := time.Now()
	raw := uinputInputEvent{
		Sec:   now.Unix(),
		Usec:  int64(now.Nanosecond() / 1000),
		Type:  uint16(ev.Type),
		Code:  ev.Code,
		Value: ev.Value,
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &raw); err != nil {
		return err
	}
	_, err := syscall.Write(w.fd, buf.Bytes())
	return err
}

// DevNode resolves the /dev/input/eventN node the kernel assigned this
// virtual device, by taking the most recently modified entry under
// /sys/devices/virtual/input and returning its first "eventN" child (the
// legacy write()-based registration above does not surface this via an
// ioctl the way UI_GET_SYSNAME does for the newer API). The entry chosen
// is not checked to belong to this writer.
func (w *uinputWriter) DevNode() (string, error) {
	root := "/sys/devices/virtual/input"
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newestMod = info.ModTime()
			newest = e.Name()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no virtual input device found under %s", root)
	}
	children, err := os.ReadDir(root + "/" + newest)
	if err != nil {
		return "", err
	}
	for _, c := range children {
		if len(c.Name()) > 5 && c.Name()[:5] == "event" {
			return "/dev/input/" + c.Name(), nil
		}
	}
	return "", fmt.Errorf("no event node under %s/%s", root, newest)
}

func (w *uinputWriter) Close() error {
	_ = ioctl(w.fd, uiDevDestroy, nil)
	return syscall.Close(w.fd)
}
