// Package gohook implements hotkey.Backend on top of robotn/gohook.
package gohook

import (
	"fmt"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"

	"go.aimuz.me/echo/hotkey"
)

// darwinFnRawcode is the scan code of the fn/globe key on macOS.
const darwinFnRawcode = 63

// Backend shares the process-wide gohook event loop. Only one Backend
// should be started per process.
type Backend struct {
	mu        sync.Mutex
	started   bool
	fnTap     bool
	listeners []func(hotkey.KeyEvent)
}

// New returns an idle backend; the event loop starts on first registration.
func New() *Backend {
	return &Backend{}
}

// RegisterToggle registers a key combination typed with keys[0] as the
// main key and the rest as modifiers.
func (b *Backend) RegisterToggle(keys []string, fn func()) error {
	if len(keys) == 0 {
		return fmt.Errorf("no keys")
	}
	for _, k := range keys {
		if _, ok := hook.Keycode[k]; !ok {
			return fmt.Errorf("unknown key %q", k)
		}
	}

	hook.Register(hook.KeyDown, keys, func(hook.Event) { fn() })
	b.ensureStarted()
	return nil
}

// ResolveKey maps a key name to a Key.
func (b *Backend) ResolveKey(name string) (hotkey.Key, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "fn" {
		if err := b.ensureFnTap(); err != nil {
			return hotkey.Key{}, err
		}
		return hotkey.Key{Code: darwinFnRawcode, Raw: true}, nil
	}
	code, ok := hook.Keycode[name]
	if !ok {
		return hotkey.Key{}, fmt.Errorf("unknown key %q", name)
	}
	return hotkey.Key{Code: code}, nil
}

// Listen forwards key presses (repeated while held) and releases to fn.
func (b *Backend) Listen(fn func(hotkey.KeyEvent)) error {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()

	b.ensureStarted()
	return nil
}

// Close stops the event loop and the fn tap.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fnTap {
		b.fnTap = false
		stopFnTap()
	}
	b.listeners = nil
	if !b.started {
		return nil
	}
	b.started = false
	hook.End()
	return nil
}

// ensureFnTap starts reporting the fn key, which only arrives as a
// modifier flag change.
func (b *Backend) ensureFnTap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fnTap {
		return nil
	}
	if err := startFnTap(b.onFn); err != nil {
		return err
	}
	b.fnTap = true
	return nil
}

func (b *Backend) onFn(down bool) {
	b.dispatchKey(hotkey.KeyEvent{Rawcode: darwinFnRawcode, Down: down})
}

func (b *Backend) ensureStarted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true

	events := hook.Start()
	forward := make(chan hook.Event, 64)

	// Tee raw events to listeners while gohook matches registered combos.
	go func() {
		defer close(forward)
		for ev := range events {
			b.dispatch(ev)
			forward <- ev
		}
	}()
	go func() { <-hook.Process(forward) }()
}

func (b *Backend) dispatch(ev hook.Event) {
	var down bool
	switch ev.Kind {
	case hook.KeyHold:
		down = true
	case hook.KeyUp:
		down = false
	default:
		return
	}

	b.dispatchKey(hotkey.KeyEvent{Keycode: ev.Keycode, Rawcode: ev.Rawcode, Down: down})
}

func (b *Backend) dispatchKey(e hotkey.KeyEvent) {
	b.mu.Lock()
	listeners := b.listeners
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(e)
	}
}
