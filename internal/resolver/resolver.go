// Package resolver turns image handles into raw image bytes. A handle is
// whatever the API accepted or produced for an image: a data: URI, a
// remote http(s) URL, or a server-relative /images/{session}/{name} path
// pointing into the image store.
package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"fitroom/internal/genimage"
	"fitroom/internal/imagestore"
)

var (
	// ErrNotImage is returned when the resolved bytes do not sniff as an image.
	ErrNotImage = errors.New("content is not an image")
	// ErrTooLarge is returned when the payload exceeds the configured cap.
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrBadHandle is returned for handles in none of the supported forms,
	// or store handles addressing a different session.
	ErrBadHandle = errors.New("unsupported image handle")
)

const (
	// DefaultMaxBytes bounds a single decoded image. Generation backends
	// reject larger inputs anyway, so there is no point hauling them in.
	DefaultMaxBytes = 8 << 20

	defaultFetchTimeout = 15 * time.Second
	fetchCacheEntries   = 128
	fetchCacheTTL       = 10 * time.Minute

	// StorePrefix is the leading path of store-relative handles.
	StorePrefix = "/images/"
)

type Config struct {
	MaxBytes     int64
	FetchTimeout time.Duration
}

// Resolver resolves handles against an image store and the network.
// Remote fetches are cached; wardrobe garments reference hosted catalog
// images that every try-on call resolves again.
type Resolver struct {
	store    imagestore.Store
	client   *http.Client
	cache    *expirable.LRU[string, genimage.Image]
	maxBytes int64
}

func New(store imagestore.Store, cfg Config) *Resolver {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &Resolver{
		store:    store,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		cache:    expirable.NewLRU[string, genimage.Image](fetchCacheEntries, nil, fetchCacheTTL),
		maxBytes: cfg.MaxBytes,
	}
}

// Resolve returns the image bytes behind handle. session scopes
// store-relative handles; a handle naming another session is rejected.
func (r *Resolver) Resolve(ctx context.Context, session, handle string) (genimage.Image, error) {
	handle = strings.TrimSpace(handle)
	switch {
	case handle == "":
		return genimage.Image{}, fmt.Errorf("%w: empty handle", ErrBadHandle)
	case strings.HasPrefix(handle, "data:"):
		return r.decodeDataURI(handle)
	case strings.HasPrefix(handle, "http://"), strings.HasPrefix(handle, "https://"):
		return r.fetch(ctx, handle)
	case strings.HasPrefix(handle, StorePrefix):
		return r.fromStore(ctx, session, handle)
	default:
		return genimage.Image{}, fmt.Errorf("%w: %q", ErrBadHandle, truncateHandle(handle))
	}
}

func (r *Resolver) decodeDataURI(handle string) (genimage.Image, error) {
	rest := strings.TrimPrefix(handle, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return genimage.Image{}, fmt.Errorf("%w: malformed data uri", ErrBadHandle)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return genimage.Image{}, fmt.Errorf("%w: data uri must be base64", ErrBadHandle)
	}
	if int64(len(payload)) > r.maxBytes*4/3+4 {
		return genimage.Image{}, ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return genimage.Image{}, fmt.Errorf("%w: %v", ErrBadHandle, err)
	}
	return r.validated(data)
}

func (r *Resolver) fetch(ctx context.Context, url string) (genimage.Image, error) {
	if img, ok := r.cache.Get(url); ok {
		return img, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return genimage.Image{}, fmt.Errorf("%w: %v", ErrBadHandle, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return genimage.Image{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return genimage.Image{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	if resp.ContentLength > r.maxBytes {
		return genimage.Image{}, ErrTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return genimage.Image{}, fmt.Errorf("fetch image: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return genimage.Image{}, ErrTooLarge
	}
	img, err := r.validated(data)
	if err != nil {
		return genimage.Image{}, err
	}
	r.cache.Add(url, img)
	return img, nil
}

func (r *Resolver) fromStore(ctx context.Context, session, handle string) (genimage.Image, error) {
	owner, name, err := SplitStoreHandle(handle)
	if err != nil {
		return genimage.Image{}, err
	}
	if owner != session {
		return genimage.Image{}, fmt.Errorf("%w: handle belongs to another session", ErrBadHandle)
	}
	data, err := r.store.Get(ctx, owner, name)
	if err != nil {
		return genimage.Image{}, err
	}
	return r.validated(data)
}

func (r *Resolver) validated(data []byte) (genimage.Image, error) {
	if int64(len(data)) > r.maxBytes {
		return genimage.Image{}, ErrTooLarge
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return genimage.Image{}, fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return genimage.Image{Data: data, MIME: mime}, nil
}

// CacheLen reports the number of cached remote fetches.
func (r *Resolver) CacheLen() int { return r.cache.Len() }

// ValidForm reports whether handle has one of the supported shapes,
// without resolving it. Content is only checked at resolve time.
func ValidForm(handle string) bool {
	handle = strings.TrimSpace(handle)
	switch {
	case strings.HasPrefix(handle, "data:"):
		meta, payload, ok := strings.Cut(strings.TrimPrefix(handle, "data:"), ",")
		return ok && strings.HasSuffix(meta, ";base64") && payload != ""
	case strings.HasPrefix(handle, "http://"), strings.HasPrefix(handle, "https://"):
		return true
	case strings.HasPrefix(handle, StorePrefix):
		_, _, err := SplitStoreHandle(handle)
		return err == nil
	default:
		return false
	}
}

// StoreHandle builds the server-relative handle for a stored image.
func StoreHandle(session, name string) string {
	return StorePrefix + session + "/" + name
}

// SplitStoreHandle parses a /images/{session}/{name} handle.
func SplitStoreHandle(handle string) (session, name string, err error) {
	rest := strings.TrimPrefix(handle, StorePrefix)
	session, name, ok := strings.Cut(rest, "/")
	if !ok || session == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadHandle, truncateHandle(handle))
	}
	return session, name, nil
}

func truncateHandle(h string) string {
	if len(h) > 64 {
		return h[:64] + "..."
	}
	return h
}
