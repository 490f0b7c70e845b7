package history

import (
	"fmt"
	"testing"

	"github.com/koe-app/koe/internal/types"
)

func entry(i int, fromUser bool) types.TranscriptEntry {
	return types.TranscriptEntry{
		ID:        fmt.Sprintf("id-%d", i),
		Text:      fmt.Sprintf("text %d", i),
		FromUser:  fromUser,
		Timestamp: int64(1000 + i),
	}
}

func TestAppendAndRecent(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	for i := 0; i < 5; i++ {
		if err := s.Append(entry(i, i%2 == 0)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	got, err := s.Recent(0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i, e := range got {
		if e.ID != fmt.Sprintf("id-%d", i) {
			t.Errorf("entry[%d].ID = %q, want id-%d", i, e.ID, i)
		}
	}
}

func TestRecentLimit(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	for i := 0; i < 10; i++ {
		if err := s.Append(entry(i, true)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	got, err := s.Recent(3)
	if err != nil {
		t.Fatalf("Recent(3) error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Most recent three, oldest first.
	for i, want := range []string{"id-7", "id-8", "id-9"} {
		if got[i].ID != want {
			t.Errorf("entry[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestClear(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.Append(entry(0, true)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	got, err := s.Recent(0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d after clear, want 0", len(got))
	}

	// The store keeps accepting entries after a clear.
	if err := s.Append(entry(1, false)); err != nil {
		t.Fatalf("Append() after clear error = %v", err)
	}
	got, _ = s.Recent(0)
	if len(got) != 1 || got[0].ID != "id-1" {
		t.Errorf("entries after clear = %+v, want single id-1", got)
	}
}

func TestReopenContinuesSequence(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Append(entry(i, true)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	if err := s.Append(entry(3, false)); err != nil {
		t.Fatalf("Append() after reopen error = %v", err)
	}

	got, err := s.Recent(0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d after reopen, want 4", len(got))
	}
	if got[3].ID != "id-3" {
		t.Errorf("last entry = %q, want id-3", got[3].ID)
	}
}
