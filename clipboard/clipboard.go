// Package clipboard puts transcriptions on the system clipboard and pastes
// them into the focused application.
package clipboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"go.aimuz.me/echo/internal/types"
)

// pasteDelay gives the pasteboard time to publish before the keystroke.
const pasteDelay = 80 * time.Millisecond

// Paster writes text to the clipboard and optionally sends the platform
// paste shortcut.
type Paster struct {
	mu        sync.Mutex
	write     func(text string) error
	paste     func() error
	delay     time.Duration
	autoPaste bool
}

// New creates a Paster backed by the system clipboard and keyboard.
func New(autoPaste bool) *Paster {
	return &Paster{
		write:     clipboard.WriteAll,
		paste:     sendPaste,
		delay:     pasteDelay,
		autoPaste: autoPaste,
	}
}

// Copy places r.Text on the clipboard, then pastes it when auto paste is on.
func (p *Paster) Copy(ctx context.Context, r types.TranscriptionResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.write(r.Text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	if !p.autoPaste {
		return nil
	}

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.paste(); err != nil {
		return fmt.Errorf("send paste: %w", err)
	}
	return nil
}
