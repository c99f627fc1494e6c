package hotkey

import (
	"fmt"
	"runtime"
	"strings"
)

var currentOS = runtime.GOOS

var modifiers = map[string]string{
	"cmd":     "cmd",
	"command": "cmd",
	"super":   "cmd",
	"meta":    "cmd",
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
}

// ParseCombo converts an accelerator such as "CommandOrControl+Shift+R"
// into key names, main key first and modifiers after. CommandOrControl
// (and CmdOrCtrl) mean cmd on darwin and ctrl elsewhere.
func ParseCombo(combo, goos string) ([]string, error) {
	parts := strings.Split(combo, "+")
	if strings.TrimSpace(combo) == "" {
		return nil, fmt.Errorf("empty key combination")
	}

	var mods []string
	var key string
	for _, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		switch {
		case name == "":
			return nil, fmt.Errorf("invalid key combination %q", combo)
		case name == "commandorcontrol" || name == "cmdorctrl":
			if goos == "darwin" {
				mods = append(mods, "cmd")
			} else {
				mods = append(mods, "ctrl")
			}
		case modifiers[name] != "":
			mods = append(mods, modifiers[name])
		case key != "":
			return nil, fmt.Errorf("key combination %q has more than one key", combo)
		default:
			key = name
		}
	}

	if key == "" {
		return nil, fmt.Errorf("key combination %q has no key", combo)
	}
	return append([]string{key}, mods...), nil
}
