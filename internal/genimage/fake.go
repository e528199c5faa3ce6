package genimage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Fake returns deterministic, unique image payloads for offline runs and
// tests. Every payload starts with the PNG signature so content sniffing
// classifies it as image/png.
type Fake struct {
	// Delay is slept before every call to mimic backend latency.
	Delay time.Duration

	mu    sync.Mutex
	seq   int
	calls map[string]int
	fail  map[string]error
}

func NewFake() *Fake {
	return &Fake{
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

func (f *Fake) Name() string { return "FakeGen" }
func (f *Fake) Close() error { return nil }

// FailNext arms a one-shot error for the next call of op
// ("model", "tryon" or "pose").
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// Calls reports how many times op was invoked, failed calls included.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) GenerateModel(ctx context.Context, person Image) (Image, error) {
	return f.render(ctx, "model")
}

func (f *Fake) GenerateTryOn(ctx context.Context, base, garment Image, garmentName string) (Image, error) {
	return f.render(ctx, "tryon")
}

func (f *Fake) GeneratePose(ctx context.Context, base Image, pose string) (Image, error) {
	return f.render(ctx, "pose")
}

func (f *Fake) render(ctx context.Context, op string) (Image, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return Image{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if err := f.fail[op]; err != nil {
		delete(f.fail, op)
		return Image{}, err
	}
	f.seq++
	data := append(append([]byte{}, pngMagic...), fmt.Sprintf("%s-%04d", op, f.seq)...)
	return Image{Data: data, MIME: "image/png"}, nil
}
