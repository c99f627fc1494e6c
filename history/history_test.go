package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.aimuz.me/echo/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		e, err := s.Add(ctx, types.HistoryEntry{Text: text, Duration: 2, CreatedAt: time.Now()})
		if err != nil {
			t.Fatalf("Add(%q): %v", text, err)
		}
		if e.ID == 0 {
			t.Errorf("Add(%q) assigned no id", text)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"third", "second", "first"}},
		{"limited", 2, []string{"third", "second"}},
		{"over_limit", 10, []string{"third", "second", "first"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List returned %d entries, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.Text != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, e.Text, tt.want[i])
				}
			}
		})
	}
}

func TestIDsIncrease(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, _ := s.Add(ctx, types.HistoryEntry{Text: "a"})
	b, _ := s.Add(ctx, types.HistoryEntry{Text: "b"})
	if b.ID <= a.ID {
		t.Errorf("ids %d then %d, want increasing", a.ID, b.ID)
	}
}

func TestGetDeleteClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Add(ctx, types.HistoryEntry{Text: "keep me", Timestamp: "9:41:00 AM", Duration: 3})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := s.Get(e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != "keep me" || got.Timestamp != "9:41:00 AM" || got.Duration != 3 {
		t.Errorf("Get = %+v", got)
	}

	if err := s.Delete(e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Record(ctx, types.HistoryEntry{Text: "x"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := s.List(ctx, 0); len(got) != 0 {
		t.Errorf("List after Clear = %d entries", len(got))
	}
}

func TestAddCanceled(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Add(ctx, types.HistoryEntry{Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
