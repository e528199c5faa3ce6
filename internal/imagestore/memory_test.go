package imagestore

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestMemoryStorePutGetList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "sess-1", "layer-0.png", []byte("A")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Put(ctx, "sess-1", "layer-1.png", []byte("B")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Put(ctx, "sess-2", "layer-0.png", []byte("C")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := s.Get(ctx, "sess-1", "layer-0.png")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "A" {
		t.Fatalf("unexpected content: %q", got)
	}

	names, err := s.List(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"layer-0.png", "layer-1.png"}) {
		t.Fatalf("unexpected names: %#v", names)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "sess-1", "nope.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreValidatesKeys(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(context.Background(), "", "a.png", nil); err == nil {
		t.Fatal("expected error for empty session")
	}
	if err := s.Put(context.Background(), "sess-1", "  ", nil); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	src := []byte("original")
	if err := s.Put(ctx, "sess-1", "a.png", src); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	src[0] = 'X'

	got, err := s.Get(ctx, "sess-1", "a.png")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("store shares caller buffer: %q", got)
	}
	got[0] = 'Y'
	again, _ := s.Get(ctx, "sess-1", "a.png")
	if string(again) != "original" {
		t.Fatalf("store exposed internal buffer: %q", again)
	}
}

func TestMemoryStorePurgeIsSessionScoped(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, "sess-1", "a.png", []byte("A"))
	_ = s.Put(ctx, "sess-2", "b.png", []byte("B"))

	if err := s.Purge(ctx, "sess-1"); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if _, err := s.Get(ctx, "sess-1", "a.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected purged image gone, got %v", err)
	}
	if _, err := s.Get(ctx, "sess-2", "b.png"); err != nil {
		t.Fatalf("other session affected: %v", err)
	}
}
