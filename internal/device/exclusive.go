package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

const (
	DefaultLockWait     = 5 * time.Second
	DefaultReadTimeout  = 15 * time.Second
	DefaultAttempts     = 30
	DefaultAttemptDelay = 300 * time.Millisecond
)

// slot is a one-holder semaphore.
type slot chan struct{}

func newSlot() slot { return make(slot, 1) }

// acquire waits up to wait for the slot. The caller must release on every
// path once acquire returns nil.
func (s slot) acquire(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s slot) release() { <-s }

// ExclusiveReader gives one caller at a time access to a TagReader and
// bounds each read by Timeout.
type ExclusiveReader struct {
	inner    TagReader
	slot     slot
	LockWait time.Duration
	Timeout  time.Duration
}

func NewExclusiveReader(inner TagReader, lockWait, timeout time.Duration) *ExclusiveReader {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	return &ExclusiveReader{inner: inner, slot: newSlot(), LockWait: lockWait, Timeout: timeout}
}

func (r *ExclusiveReader) ReadTag(ctx context.Context) (string, error) {
	if err := r.slot.acquire(ctx, r.LockWait); err != nil {
		return "", err
	}
	defer r.slot.release()

	readCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	tag, err := r.inner.ReadTag(readCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", ErrTimeout
		}
		return "", err
	}
	tag = types.NormalizeTagCode(tag)
	if tag == "" {
		return "", fmt.Errorf("%w: empty tag", ErrTimeout)
	}
	return tag, nil
}

// Available reports whether the reader is idle right now and, when the
// inner reader reports status, still attached.
func (r *ExclusiveReader) Available() bool {
	if st, ok := r.inner.(Status); ok && !st.Available() {
		return false
	}
	return len(r.slot) == 0
}

// ExclusiveCapturer serializes camera access and retries captures that
// found no face, up to Attempts tries spaced by Delay.
type ExclusiveCapturer struct {
	inner    FaceCapturer
	slot     slot
	LockWait time.Duration
	Attempts int
	Delay    time.Duration
}

func NewExclusiveCapturer(inner FaceCapturer, lockWait time.Duration, attempts int, delay time.Duration) *ExclusiveCapturer {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = DefaultAttemptDelay
	}
	return &ExclusiveCapturer{inner: inner, slot: newSlot(), LockWait: lockWait, Attempts: attempts, Delay: delay}
}

func (c *ExclusiveCapturer) Capture(ctx context.Context) (types.Embedding, error) {
	if err := c.slot.acquire(ctx, c.LockWait); err != nil {
		return nil, err
	}
	defer c.slot.release()

	var lastErr error
	for attempt := 0; attempt < c.Attempts; attempt++ {
		if attempt > 0 && c.Delay > 0 {
			t := time.NewTimer(c.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		emb, err := c.inner.Capture(ctx)
		if err == nil && len(emb) > 0 {
			return emb, nil
		}
		if err == nil {
			err = ErrNoFace
		}
		if !errors.Is(err, ErrNoFace) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.Attempts, lastErr)
}

func (c *ExclusiveCapturer) Available() bool {
	return len(c.slot) == 0
}
