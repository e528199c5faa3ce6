package genimage

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"
)

func TestFakeProducesUniqueSniffableImages(t *testing.T) {
	f := NewFake()
	a, err := f.GenerateModel(context.Background(), Image{})
	if err != nil {
		t.Fatalf("GenerateModel: %v", err)
	}
	b, err := f.GenerateTryOn(context.Background(), a, Image{}, "jacket")
	if err != nil {
		t.Fatalf("GenerateTryOn: %v", err)
	}
	if !bytes.HasPrefix(a.Data, pngMagic) || !bytes.HasPrefix(b.Data, pngMagic) {
		t.Fatal("fake output missing PNG signature")
	}
	if bytes.Equal(a.Data, b.Data) {
		t.Fatal("fake outputs not unique")
	}
	if f.Calls("model") != 1 || f.Calls("tryon") != 1 {
		t.Fatalf("call counts model=%d tryon=%d", f.Calls("model"), f.Calls("tryon"))
	}
}

func TestRetryRecoversFromOneShotFailure(t *testing.T) {
	f := NewFake()
	f.FailNext("pose", errors.New("backend hiccup"))
	gw := Wrap(f, Retry(3, time.Millisecond))

	img, err := gw.GeneratePose(context.Background(), Image{}, "side profile")
	if err != nil {
		t.Fatalf("GeneratePose after retry: %v", err)
	}
	if len(img.Data) == 0 {
		t.Fatal("empty image after retry")
	}
	if f.Calls("pose") != 2 {
		t.Fatalf("pose calls = %d, want 2", f.Calls("pose"))
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	f := NewFake()
	boom := errors.New("boom")
	f.FailNext("model", boom)
	gw := Wrap(f, Retry(1, time.Millisecond))

	if _, err := gw.GenerateModel(context.Background(), Image{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestWithLoggingPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	gw := Wrap(NewFake(), WithLogging(log.New(&buf, "", 0)))

	if _, err := gw.GenerateModel(context.Background(), Image{}); err != nil {
		t.Fatalf("GenerateModel: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("nothing logged")
	}
}

func TestLimitSerializesInFlightCalls(t *testing.T) {
	f := NewFake()
	f.Delay = 40 * time.Millisecond
	gw := Wrap(f, Limit(1))

	start := time.Now()
	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := gw.GenerateModel(context.Background(), Image{})
			done <- err
		}()
	}
	for i := 0; i < 3; i++ {
		if err := <-done; err != nil {
			t.Fatalf("GenerateModel: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("three calls finished in %v, permits not serializing", elapsed)
	}
	if f.Calls("model") != 3 {
		t.Fatalf("model calls = %d, want 3", f.Calls("model"))
	}
}

func TestLimitReleasesWaiterOnContextEnd(t *testing.T) {
	f := NewFake()
	f.Delay = 80 * time.Millisecond
	gw := Wrap(f, Limit(1))

	go gw.GenerateModel(context.Background(), Image{})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := gw.GeneratePose(ctx, Image{}, "side profile"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if f.Calls("pose") != 0 {
		t.Fatal("waiter reached the backend without a permit")
	}
}

func TestFakeHonorsContextDuringDelay(t *testing.T) {
	f := NewFake()
	f.Delay = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := f.GenerateModel(ctx, Image{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
