package clipboard

import (
	"sync"

	"github.com/micmonay/keybd_event"
)

var (
	kbOnce sync.Once
	kb     keybd_event.KeyBonding
	kbErr  error
)

// sendPaste presses the platform paste shortcut. The key binding is created
// once; on Linux the virtual device needs a moment to register on first use.
func sendPaste() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
		if kbErr == nil {
			setPasteModifier(&kb)
			kb.SetKeys(keybd_event.VK_V)
		}
	})
	if kbErr != nil {
		return kbErr
	}
	return kb.Launching()
}
