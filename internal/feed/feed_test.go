package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
)

func TestFilterMatches(t *testing.T) {
	f := Filter{EventID: "e1", CourtID: "c1", LiveOnly: true}
	s := match.EmptyMatch()
	s.EventID, s.CourtID, s.Live = "e1", "c1", true

	if !f.Matches(s) {
		t.Fatalf("expected match for watched live snapshot")
	}
	s.Live = false
	if f.Matches(s) {
		t.Fatalf("expected live-only filter to reject non-live snapshot")
	}
	f.LiveOnly = false
	if !f.Matches(s) {
		t.Fatalf("expected non-live snapshot to match without LiveOnly")
	}
	s.CourtID = "c2"
	if f.Matches(s) {
		t.Fatalf("expected other court to be rejected")
	}
	if f.Key() != "e1|c1" {
		t.Fatalf("unexpected key %s", f.Key())
	}
}

func TestUpdateEmpty(t *testing.T) {
	now := time.Now()
	if !EmptyUpdate("a", now).Empty() {
		t.Fatalf("expected nil snapshot to be empty")
	}
	s := match.EmptyMatch()
	if !SnapshotUpdate("a", s, now).Empty() {
		t.Fatalf("expected non-live snapshot to be empty")
	}
	s.Live = true
	u := SnapshotUpdate("a", s, now)
	if u.Empty() {
		t.Fatalf("expected live snapshot to be non-empty")
	}
	s.Team1 = "mutated"
	if u.Snapshot.Team1 == "mutated" {
		t.Fatalf("expected update to hold its own copy")
	}
}

func TestErrorWrapping(t *testing.T) {
	base := errors.New("boom")
	err := Wrap("mlpmatches", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to unwrap to base")
	}
	if SourceOf(err) != "mlpmatches" {
		t.Fatalf("expected source on error, got %q", SourceOf(err))
	}
	if again := Wrap("other", err); SourceOf(again) != "mlpmatches" {
		t.Fatalf("expected existing source to be kept")
	}
	if Wrap("x", nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}
	if err.Error() != "feed mlpmatches: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestGateStopsDeliveryAfterClose(t *testing.T) {
	var updates, errs int
	g := NewGate(func(Update) { updates++ }, func(error) { errs++ })

	if !g.Update(Update{}) || !g.Error(errors.New("x")) {
		t.Fatalf("expected delivery before close")
	}
	if g.Error(nil) {
		t.Fatalf("expected nil error to be skipped")
	}
	g.Close()
	if g.Update(Update{}) || g.Error(errors.New("y")) {
		t.Fatalf("expected no delivery after close")
	}
	if updates != 1 || errs != 1 || !g.Closed() {
		t.Fatalf("unexpected counts updates=%d errs=%d", updates, errs)
	}
}

func TestGateCloseWaitsForInFlightCallback(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	g := NewGate(func(Update) {
		close(entered)
		<-release
	}, nil)

	go g.Update(Update{})
	<-entered

	closed := make(chan struct{})
	go func() {
		g.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatalf("expected Close to wait for the running callback")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("expected Close to return after callback finished")
	}
}

func TestStartUnsubscribeWaitsForLoop(t *testing.T) {
	stopped := make(chan struct{})
	var got []Update
	var mu sync.Mutex

	unsub := Start(context.Background(), func(u Update) {
		mu.Lock()
		got = append(got, u)
		mu.Unlock()
	}, nil, func(ctx context.Context, gate *Gate) {
		defer close(stopped)
		gate.Update(EmptyUpdate("loop", time.Now()))
		<-ctx.Done()
		gate.Update(EmptyUpdate("late", time.Now()))
	})

	unsub()
	select {
	case <-stopped:
	default:
		t.Fatalf("expected loop to have returned when unsubscribe returns")
	}
	unsub()

	mu.Lock()
	defer mu.Unlock()
	for _, u := range got {
		if u.Source == "late" {
			t.Fatalf("expected no delivery after unsubscribe")
		}
	}
}

type scriptedFeed struct {
	name    string
	err     error
	mu      sync.Mutex
	onU     UpdateFunc
	onE     ErrorFunc
	unsubed bool
}

func (f *scriptedFeed) Name() string { return f.name }

func (f *scriptedFeed) Subscribe(_ context.Context, _ Filter, onUpdate UpdateFunc, onError ErrorFunc) (Unsubscribe, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.onU, f.onE = onUpdate, onError
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubed = true
		f.mu.Unlock()
	}, nil
}

func (f *scriptedFeed) push(u Update) {
	f.mu.Lock()
	fn := f.onU
	f.mu.Unlock()
	fn(u)
}

func (f *scriptedFeed) fail(err error) {
	f.mu.Lock()
	fn := f.onE
	f.mu.Unlock()
	fn(err)
}

func TestMergeDeliversFromAllSourcesInArrivalOrder(t *testing.T) {
	a := &scriptedFeed{name: "mlpmatches"}
	b := &scriptedFeed{name: "livematches"}
	m := Merge(a, b)
	if m.Name() != "mlpmatches+livematches" {
		t.Fatalf("unexpected name %s", m.Name())
	}

	var sources []string
	var errs []error
	unsub, err := m.Subscribe(context.Background(), Filter{}, func(u Update) {
		sources = append(sources, u.Source)
	}, func(err error) {
		errs = append(errs, err)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a.push(EmptyUpdate("mlpmatches", time.Now()))
	b.push(EmptyUpdate("livematches", time.Now()))
	a.push(EmptyUpdate("mlpmatches", time.Now()))
	b.fail(errors.New("down"))

	if len(sources) != 3 || sources[0] != "mlpmatches" || sources[1] != "livematches" || sources[2] != "mlpmatches" {
		t.Fatalf("unexpected delivery order %v", sources)
	}
	if len(errs) != 1 || SourceOf(errs[0]) != "livematches" {
		t.Fatalf("expected source-tagged error, got %v", errs)
	}

	unsub()
	unsub()
	a.push(EmptyUpdate("mlpmatches", time.Now()))
	if len(sources) != 3 {
		t.Fatalf("expected no delivery after unsubscribe")
	}
	if !a.unsubed || !b.unsubed {
		t.Fatalf("expected children to be unsubscribed")
	}
}

func TestMergeUnwindsOnSubscribeFailure(t *testing.T) {
	a := &scriptedFeed{name: "a"}
	b := &scriptedFeed{name: "b", err: errors.New("refused")}
	_, err := Merge(a, b).Subscribe(context.Background(), Filter{}, nil, nil)
	if err == nil {
		t.Fatalf("expected subscribe error")
	}
	if SourceOf(err) != "b" {
		t.Fatalf("expected failing source on error, got %q", SourceOf(err))
	}
	if !a.unsubed {
		t.Fatalf("expected earlier subscriptions to be released")
	}
}

func TestMergeSingleFeedIsPassthrough(t *testing.T) {
	a := &scriptedFeed{name: "a"}
	if Merge(a) != Feed(a) {
		t.Fatalf("expected single feed to be returned as-is")
	}
	if _, err := Merge().Subscribe(context.Background(), Filter{}, nil, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed for empty merge, got %v", err)
	}
}

func TestMergeKeepsLiveMatchWhenOtherSourceIsEmpty(t *testing.T) {
	holder := &scriptedFeed{name: "mlpmatches"}
	other := &scriptedFeed{name: "livematches"}

	var got []Update
	unsub, err := Merge(holder, other).Subscribe(context.Background(), Filter{}, func(u Update) {
		got = append(got, u)
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsub()

	live := match.EmptyMatch()
	live.Live = true
	live.WD.Team1Score, live.WD.Team2Score = 5, 3

	for i := 0; i < 3; i++ {
		holder.push(SnapshotUpdate("mlpmatches", live, time.Now()))
		other.push(EmptyUpdate("livematches", time.Now()))
	}
	if len(got) != 3 {
		t.Fatalf("expected only the three live updates, got %d", len(got))
	}
	for _, u := range got {
		if u.Empty() || u.Source != "mlpmatches" {
			t.Fatalf("expected live update from mlpmatches, got %+v", u)
		}
	}

	// The holder dropping the match clears the board.
	holder.push(EmptyUpdate("mlpmatches", time.Now()))
	if len(got) != 4 || !got[3].Empty() {
		t.Fatalf("expected empty from the holder to be forwarded, got %d updates", len(got))
	}

	// With nobody live, empties from either source pass.
	other.push(EmptyUpdate("livematches", time.Now()))
	if len(got) != 5 {
		t.Fatalf("expected empty forwarded once no source is live, got %d", len(got))
	}
}

func TestMergeHandsOverWhenMatchMovesBetweenSources(t *testing.T) {
	a := &scriptedFeed{name: "a"}
	b := &scriptedFeed{name: "b"}

	var got []Update
	unsub, err := Merge(a, b).Subscribe(context.Background(), Filter{}, func(u Update) {
		got = append(got, u)
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsub()

	live := match.EmptyMatch()
	live.Live = true
	a.push(SnapshotUpdate("a", live, time.Now()))
	b.push(SnapshotUpdate("b", live, time.Now()))
	a.push(EmptyUpdate("a", time.Now()))

	if len(got) != 2 || got[1].Source != "b" {
		t.Fatalf("expected empty from a dropped while b is live, got %d updates", len(got))
	}
}
