package docstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/metrics"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/testutil"
)

type scriptedFetcher struct {
	calls atomic.Int32
	errs  []error
	snaps []match.Snapshot
}

func (f *scriptedFetcher) FetchMatches(context.Context, string, feed.Filter) ([]match.Snapshot, error) {
	n := int(f.calls.Add(1)) - 1
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	return f.snaps, nil
}

func TestRetryingFetcherRecovers(t *testing.T) {
	inner := &scriptedFetcher{
		errs:  []error{errors.New("reset"), &StatusError{StatusCode: 503}},
		snaps: []match.Snapshot{testutil.LiveMatch()},
	}
	logger, buf := testutil.NewBufferLogger()
	r := NewRetryingFetcher(inner, logger, 3, time.Millisecond)

	snaps, err := r.FetchMatches(context.Background(), "mlpmatches", watched)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 1 || inner.calls.Load() != 3 {
		t.Fatalf("expected success on third call, got calls=%d", inner.calls.Load())
	}
	if !bytesContains(buf.Bytes(), "docstore fetch retry") {
		t.Fatalf("expected retry log, got %q", buf.String())
	}
}

func TestRetryingFetcherStopsOnClientError(t *testing.T) {
	inner := &scriptedFetcher{errs: []error{&StatusError{StatusCode: 404}}}
	r := NewRetryingFetcher(inner, nil, 3, time.Millisecond)

	_, err := r.FetchMatches(context.Background(), "mlpmatches", watched)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 404 {
		t.Fatalf("expected status error, got %v", err)
	}
	if inner.calls.Load() != 1 {
		t.Fatalf("expected no retry for 404, got %d calls", inner.calls.Load())
	}
}

func TestRetryingFetcherGivesUp(t *testing.T) {
	boom := errors.New("boom")
	inner := &scriptedFetcher{errs: []error{boom, boom, boom, boom, boom}}
	r := NewRetryingFetcher(inner, nil, 2, time.Millisecond)

	if _, err := r.FetchMatches(context.Background(), "mlpmatches", watched); !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if inner.calls.Load() != 3 {
		t.Fatalf("expected 1 try + 2 retries, got %d", inner.calls.Load())
	}
}

func TestRetryingFetcherHonorsContext(t *testing.T) {
	inner := &scriptedFetcher{errs: []error{errors.New("x"), errors.New("x"), errors.New("x"), errors.New("x")}}
	r := NewRetryingFetcher(inner, nil, 3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.FetchMatches(ctx, "mlpmatches", watched); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}

func TestRetryAfterHintStretchesDelay(t *testing.T) {
	b := &retryAfterBackOff{BackOff: backoff.NewConstantBackOff(time.Millisecond), hint: 2 * time.Second}
	if got := b.NextBackOff(); got != 2*time.Second {
		t.Fatalf("expected hint to win, got %s", got)
	}
	if got := b.NextBackOff(); got != time.Millisecond {
		t.Fatalf("expected hint consumed, got %s", got)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{context.Canceled, false},
		{&StatusError{StatusCode: 400}, false},
		{&StatusError{StatusCode: 502}, true},
		{&RateLimitError{StatusCode: 429}, true},
		{errors.New("io"), true},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Fatalf("retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestRateLimitedFetcherSpacesCalls(t *testing.T) {
	inner := &scriptedFetcher{}
	l := NewRateLimitedFetcher(inner, 30*time.Millisecond, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := l.FetchMatches(context.Background(), "mlpmatches", watched); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected calls to be spaced, took %s", elapsed)
	}
}

func TestRateLimitedFetcherCancelled(t *testing.T) {
	l := NewRateLimitedFetcher(&scriptedFetcher{}, time.Hour, nil)
	_, _ = l.FetchMatches(context.Background(), "mlpmatches", watched)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.FetchMatches(ctx, "mlpmatches", watched); err == nil {
		t.Fatalf("expected wait to fail once context expires")
	}
}

func TestRateLimitedFetcherWithoutInner(t *testing.T) {
	l := NewRateLimitedFetcher(nil, time.Millisecond, nil)
	if _, err := l.FetchMatches(context.Background(), "x", watched); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestInstrumentedFetcherRecords(t *testing.T) {
	rec := metrics.NewRecorder()
	inner := &scriptedFetcher{errs: []error{&RateLimitError{StatusCode: 429, RetryAfter: 2 * time.Second}}}
	f := NewInstrumentedFetcher(inner, rec)

	_, _ = f.FetchMatches(context.Background(), "mlpmatches", watched)
	_, _ = f.FetchMatches(context.Background(), "mlpmatches", watched)

	snap := rec.Snapshot("mlpmatches")
	if snap.Calls != 2 || snap.CallErrors != 1 || snap.RateLimitHits != 1 || snap.LastRetryAfter != 2*time.Second {
		t.Fatalf("unexpected metrics %+v", snap)
	}
}
