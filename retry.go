package vectable

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vectable/fragment"
	"github.com/hupe1980/vectable/manifest"
)

// change is what one commit attempt adds on top of base.
type change struct {
	refs      []fragment.Ref
	deletions map[string]*roaring.Bitmap
}

// prepareFunc computes the change to apply to base. It is called again with
// the new current manifest after every lost race.
type prepareFunc func(ctx context.Context, base *manifest.Manifest) (change, error)

// commit publishes the change computed by prepare on top of the current
// manifest. A lost version race re-reads the current manifest and retries
// with jittered exponential backoff, up to maxCommitRetries times.
func (t *Table) commit(ctx context.Context, base *manifest.Manifest, prepare prepareFunc) (*manifest.Manifest, int, error) {
	retries := t.conn.opts.maxCommitRetries

	for attempt := 1; ; attempt++ {
		ch, err := prepare(ctx, base)
		if err != nil {
			return nil, attempt, err
		}

		next, err := t.conn.manifests.Publish(ctx, base, ch.refs, ch.deletions)
		if err == nil {
			return next, attempt, nil
		}
		if !errors.Is(err, manifest.ErrVersionConflict) {
			return nil, attempt, err
		}

		t.conn.opts.metricsCollector.RecordCommitConflict()
		if attempt > retries {
			return nil, attempt, fmt.Errorf("%w: %d attempts: %w", ErrWriteContention, attempt, err)
		}

		wait := backoff(t.conn.opts.retryBaseDelay, t.conn.opts.retryMaxDelay, attempt)
		t.conn.opts.logger.LogCommitRetry(ctx, t.name, attempt, wait)
		if err := sleep(ctx, wait); err != nil {
			return nil, attempt, err
		}

		base, err = t.conn.manifests.ReadCurrent(ctx, t.location)
		if err != nil {
			return nil, attempt, err
		}
	}
}

// backoff returns a full-jitter delay for the given attempt (1-based).
func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt && d < maxDelay; i++ {
		d *= 2
	}
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
