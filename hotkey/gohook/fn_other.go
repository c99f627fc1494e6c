//go:build !darwin

package gohook

import (
	"fmt"
	"runtime"
)

func startFnTap(func(down bool)) error {
	return fmt.Errorf("fn key is not reported on %s", runtime.GOOS)
}

func stopFnTap() {}
