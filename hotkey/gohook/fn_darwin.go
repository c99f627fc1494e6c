package gohook

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation
#include <stdbool.h>

int createFnTap(void);
void runFnTap(void);
void stopFnTap(void);
*/
import "C"

import (
	"errors"
	"runtime"
	"sync"
)

// The tap reports fn through flag changes, which gohook does not surface.
var (
	fnMu   sync.Mutex
	fnEmit func(down bool)
)

//export goFnChanged
func goFnChanged(down C.bool) {
	fnMu.Lock()
	emit := fnEmit
	fnMu.Unlock()
	if emit != nil {
		emit(bool(down))
	}
}

// startFnTap installs a listen-only event tap for the fn key. It fails when
// input monitoring has not been granted.
func startFnTap(emit func(down bool)) error {
	ready := make(chan bool, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if C.createFnTap() == 0 {
			ready <- false
			return
		}
		fnMu.Lock()
		fnEmit = emit
		fnMu.Unlock()
		ready <- true
		C.runFnTap()
	}()
	if !<-ready {
		return errors.New("create fn event tap: input monitoring not granted")
	}
	return nil
}

func stopFnTap() {
	fnMu.Lock()
	fnEmit = nil
	fnMu.Unlock()
	C.stopFnTap()
}
