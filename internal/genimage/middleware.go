package genimage

import (
	"context"
	"log"
	"time"
)

// Middleware decorates a Gateway to inject cross-cutting concerns.
type Middleware func(Gateway) Gateway

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Gateway, mws ...Middleware) Gateway {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Retry with exponential backoff --------

// Retry retries each generation up to maxAttempts with exponential backoff
// starting at baseDelay. If the context is canceled, it stops immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return func(next Gateway) Gateway {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Gateway
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) GenerateModel(ctx context.Context, person Image) (Image, error) {
	return r.do(ctx, func() (Image, error) { return r.next.GenerateModel(ctx, person) })
}

func (r *retrying) GenerateTryOn(ctx context.Context, base, garment Image, garmentName string) (Image, error) {
	return r.do(ctx, func() (Image, error) { return r.next.GenerateTryOn(ctx, base, garment, garmentName) })
}

func (r *retrying) GeneratePose(ctx context.Context, base Image, pose string) (Image, error) {
	return r.do(ctx, func() (Image, error) { return r.next.GeneratePose(ctx, base, pose) })
}

func (r *retrying) do(ctx context.Context, call func() (Image, error)) (Image, error) {
	var last error
	for i := 0; i < r.max; i++ {
		img, err := call()
		if err == nil {
			return img, nil
		}
		last = err
		if i == r.max-1 {
			break
		}
		select {
		case <-ctx.Done():
			return Image{}, ctx.Err()
		default:
		}
		time.Sleep(r.base * time.Duration(1<<i))
	}
	return Image{}, last
}

// -------- Concurrency limit --------

// Limit caps the number of generations in flight across the whole process.
// Calls beyond the cap wait for a permit or for the context to end. Session
// state stays responsive while calls queue here; only the backend is gated.
func Limit(n int) Middleware {
	if n < 1 {
		n = 1
	}
	return func(next Gateway) Gateway {
		return &limited{next: next, permits: make(chan struct{}, n)}
	}
}

type limited struct {
	next    Gateway
	permits chan struct{}
}

func (l *limited) Name() string { return l.next.Name() }
func (l *limited) Close() error { return l.next.Close() }

func (l *limited) GenerateModel(ctx context.Context, person Image) (Image, error) {
	return l.do(ctx, func() (Image, error) { return l.next.GenerateModel(ctx, person) })
}

func (l *limited) GenerateTryOn(ctx context.Context, base, garment Image, garmentName string) (Image, error) {
	return l.do(ctx, func() (Image, error) { return l.next.GenerateTryOn(ctx, base, garment, garmentName) })
}

func (l *limited) GeneratePose(ctx context.Context, base Image, pose string) (Image, error) {
	return l.do(ctx, func() (Image, error) { return l.next.GeneratePose(ctx, base, pose) })
}

func (l *limited) do(ctx context.Context, call func() (Image, error)) (Image, error) {
	select {
	case l.permits <- struct{}{}:
	case <-ctx.Done():
		return Image{}, ctx.Err()
	}
	defer func() { <-l.permits }()
	return call()
}

// -------- Logging --------

// WithLogging logs request/response sizes and errors. Provide a custom
// logger or nil to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next Gateway) Gateway {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Gateway
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) GenerateModel(ctx context.Context, person Image) (Image, error) {
	img, err := l.next.GenerateModel(ctx, person)
	l.record("model", len(person.Data), img, err)
	return img, err
}

func (l *logging) GenerateTryOn(ctx context.Context, base, garment Image, garmentName string) (Image, error) {
	img, err := l.next.GenerateTryOn(ctx, base, garment, garmentName)
	l.record("tryon "+garmentName, len(base.Data)+len(garment.Data), img, err)
	return img, err
}

func (l *logging) GeneratePose(ctx context.Context, base Image, pose string) (Image, error) {
	img, err := l.next.GeneratePose(ctx, base, pose)
	l.record("pose "+pose, len(base.Data), img, err)
	return img, err
}

func (l *logging) record(op string, inBytes int, img Image, err error) {
	if err != nil {
		l.log.Printf("genimage %s (%s): in=%dB error: %v", op, l.next.Name(), inBytes, err)
		return
	}
	l.log.Printf("genimage %s (%s): in=%dB out=%dB %s", op, l.next.Name(), inBytes, len(img.Data), img.MIME)
}
