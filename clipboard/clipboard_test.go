package clipboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.aimuz.me/echo/internal/types"
)

func newTestPaster(autoPaste bool, writeErr error) (*Paster, *[]string) {
	var calls []string
	p := &Paster{
		write: func(text string) error {
			calls = append(calls, "write:"+text)
			return writeErr
		},
		paste: func() error {
			calls = append(calls, "paste")
			return nil
		},
		delay:     time.Millisecond,
		autoPaste: autoPaste,
	}
	return p, &calls
}

func TestCopy(t *testing.T) {
	errWrite := errors.New("no pasteboard")

	tests := []struct {
		name      string
		autoPaste bool
		writeErr  error
		want      []string
		wantErr   bool
	}{
		{"write_then_paste", true, nil, []string{"write:hello", "paste"}, false},
		{"copy_only", false, nil, []string{"write:hello"}, false},
		{"write_failure_skips_paste", true, errWrite, []string{"write:hello"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, calls := newTestPaster(tt.autoPaste, tt.writeErr)

			err := p.Copy(context.Background(), types.TranscriptionResult{Text: "hello"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.writeErr != nil && !errors.Is(err, tt.writeErr) {
				t.Errorf("err = %v, want wrapped %v", err, tt.writeErr)
			}
			if len(*calls) != len(tt.want) {
				t.Fatalf("calls = %v, want %v", *calls, tt.want)
			}
			for i := range tt.want {
				if (*calls)[i] != tt.want[i] {
					t.Errorf("calls = %v, want %v", *calls, tt.want)
				}
			}
		})
	}
}

func TestCopyCanceledBeforePaste(t *testing.T) {
	p, calls := newTestPaster(true, nil)
	p.delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Copy(ctx, types.TranscriptionResult{Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(*calls) != 1 {
		t.Errorf("calls = %v, want write only", *calls)
	}
}
