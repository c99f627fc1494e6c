package gohook

import (
	"runtime"
	"testing"

	"go.aimuz.me/echo/hotkey"
)

func TestFnTransitionsReachListeners(t *testing.T) {
	b := New()
	var got []hotkey.KeyEvent
	b.listeners = append(b.listeners, func(e hotkey.KeyEvent) { got = append(got, e) })

	b.onFn(true)
	b.onFn(false)

	fn := hotkey.Key{Code: darwinFnRawcode, Raw: true}
	wantDown := []bool{true, false}
	if len(got) != len(wantDown) {
		t.Fatalf("events = %d, want %d", len(got), len(wantDown))
	}
	for i, e := range got {
		if !fn.Matches(e) {
			t.Errorf("event %d = %+v, does not match fn", i, e)
		}
		if e.Down != wantDown[i] {
			t.Errorf("event %d down = %v, want %v", i, e.Down, wantDown[i])
		}
	}
}

func TestResolveKey(t *testing.T) {
	b := New()

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"f13", false},
		{" F13 ", false},
		{"not-a-key", true},
	}
	for _, tt := range tests {
		_, err := b.ResolveKey(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveKey(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}

	if runtime.GOOS != "darwin" {
		if _, err := b.ResolveKey("fn"); err == nil {
			t.Errorf("ResolveKey(fn) on %s should fail", runtime.GOOS)
		}
	}
}
