package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fitroom/internal/imagestore"
)

var tinyPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	'f', 'i', 'x', 't', 'u', 'r', 'e',
}

func dataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func newTestResolver() (*Resolver, *imagestore.MemoryStore) {
	store := imagestore.NewMemoryStore()
	return New(store, Config{}), store
}

func TestResolveDataURI(t *testing.T) {
	r, _ := newTestResolver()
	img, err := r.Resolve(context.Background(), "s1", dataURI(tinyPNG))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if img.MIME != "image/png" {
		t.Fatalf("mime = %s, want image/png", img.MIME)
	}
	if string(img.Data) != string(tinyPNG) {
		t.Fatal("payload mismatch")
	}
}

func TestResolveRejectsNonImagePayload(t *testing.T) {
	r, _ := newTestResolver()
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text, not pixels"))
	if _, err := r.Resolve(context.Background(), "s1", uri); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}

func TestResolveRejectsMalformedHandles(t *testing.T) {
	r, _ := newTestResolver()
	for _, h := range []string{"", "ftp://x/y.png", "data:image/png", "data:image/png;base64,!!!", "/images/only-session"} {
		if _, err := r.Resolve(context.Background(), "s1", h); !errors.Is(err, ErrBadHandle) {
			t.Fatalf("handle %q: expected ErrBadHandle, got %v", h, err)
		}
	}
}

func TestResolveEnforcesSizeCap(t *testing.T) {
	store := imagestore.NewMemoryStore()
	r := New(store, Config{MaxBytes: 16})
	big := append(append([]byte(nil), tinyPNG...), make([]byte, 64)...)
	if _, err := r.Resolve(context.Background(), "s1", dataURI(big)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestResolveFetchesAndCachesRemoteURLs(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(tinyPNG)
	}))
	defer srv.Close()

	r, _ := newTestResolver()
	for i := 0; i < 3; i++ {
		img, err := r.Resolve(context.Background(), "s1", srv.URL+"/garment.png")
		if err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
		if img.MIME != "image/png" {
			t.Fatalf("mime = %s", img.MIME)
		}
	}
	if hits != 1 {
		t.Fatalf("origin hits = %d, want 1 (cached)", hits)
	}
	if r.CacheLen() != 1 {
		t.Fatalf("cache len = %d, want 1", r.CacheLen())
	}
}

func TestResolveRemoteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	}))
	defer srv.Close()

	r, _ := newTestResolver()
	if _, err := r.Resolve(context.Background(), "s1", srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestResolveStoreHandleIsSessionScoped(t *testing.T) {
	r, store := newTestResolver()
	ctx := context.Background()
	if err := store.Put(ctx, "s1", "layer-0.png", tinyPNG); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	img, err := r.Resolve(ctx, "s1", StoreHandle("s1", "layer-0.png"))
	if err != nil {
		t.Fatalf("resolve store handle: %v", err)
	}
	if string(img.Data) != string(tinyPNG) {
		t.Fatal("payload mismatch")
	}

	if _, err := r.Resolve(ctx, "s2", StoreHandle("s1", "layer-0.png")); !errors.Is(err, ErrBadHandle) {
		t.Fatalf("cross-session read allowed: %v", err)
	}
	if _, err := r.Resolve(ctx, "s1", StoreHandle("s1", "nope.png")); !errors.Is(err, imagestore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSplitStoreHandle(t *testing.T) {
	sess, name, err := SplitStoreHandle("/images/abc/layer-2-pose-1.png")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if sess != "abc" || name != "layer-2-pose-1.png" {
		t.Fatalf("got %q %q", sess, name)
	}
	if !strings.HasPrefix(StoreHandle("abc", "x.png"), StorePrefix) {
		t.Fatal("StoreHandle lost prefix")
	}
}
