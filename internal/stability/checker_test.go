package stability

import (
	"context"
	"errors"
	"testing"
	"time"

	"ramble/internal/services"
	"ramble/internal/storage"
)

type scriptedStore struct {
	storage.Store
	entries []storage.Entry
	errs    []error
	calls   int
}

func (s *scriptedStore) Stat(ctx context.Context, storePath string) (storage.Entry, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return storage.Entry{}, s.errs[i]
	}
	return s.entries[i], nil
}

func newTestChecker(store storage.Store) *Checker {
	c := NewChecker(store, time.Second, nil)
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestIsStableWhenObservationsMatch(t *testing.T) {
	now := time.Now()
	store := &scriptedStore{entries: []storage.Entry{
		{Name: "memo.m4a", Size: 1024, ModTime: now},
		{Name: "memo.m4a", Size: 1024, ModTime: now},
	}}

	stable, err := newTestChecker(store).IsStable(context.Background(), "inbox/memo.m4a")
	if err != nil {
		t.Fatalf("IsStable: %v", err)
	}
	if !stable {
		t.Fatal("expected stable")
	}
}

func TestNotStableWhenSizeGrows(t *testing.T) {
	now := time.Now()
	store := &scriptedStore{entries: []storage.Entry{
		{Name: "memo.m4a", Size: 1024, ModTime: now},
		{Name: "memo.m4a", Size: 2048, ModTime: now},
	}}

	stable, err := newTestChecker(store).IsStable(context.Background(), "inbox/memo.m4a")
	if err != nil {
		t.Fatalf("IsStable: %v", err)
	}
	if stable {
		t.Fatal("expected unstable while size changes")
	}
}

func TestNotStableWhenModTimeChanges(t *testing.T) {
	now := time.Now()
	store := &scriptedStore{entries: []storage.Entry{
		{Name: "memo.m4a", Size: 1024, ModTime: now},
		{Name: "memo.m4a", Size: 1024, ModTime: now.Add(time.Second)},
	}}

	stable, err := newTestChecker(store).IsStable(context.Background(), "inbox/memo.m4a")
	if err != nil {
		t.Fatalf("IsStable: %v", err)
	}
	if stable {
		t.Fatal("expected unstable while mtime changes")
	}
}

func TestDisappearingFileReturnsError(t *testing.T) {
	now := time.Now()
	notFound := services.Wrap(services.ErrNotFound, "storage", "stat", "gone", nil)
	store := &scriptedStore{
		entries: []storage.Entry{{Name: "memo.m4a", Size: 1024, ModTime: now}, {}},
		errs:    []error{nil, notFound},
	}

	_, err := newTestChecker(store).IsStable(context.Background(), "inbox/memo.m4a")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIsStableHonorsContextCancellation(t *testing.T) {
	now := time.Now()
	store := &scriptedStore{entries: []storage.Entry{
		{Name: "memo.m4a", Size: 1024, ModTime: now},
		{Name: "memo.m4a", Size: 1024, ModTime: now},
	}}
	checker := NewChecker(store, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := checker.IsStable(ctx, "inbox/memo.m4a")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
