// Package feed defines the push subscription contract between upstream match
// sources and the reconciliation engine.
package feed

import (
	"context"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
)

// Filter selects the watched (event, court) pair.
type Filter struct {
	EventID  string
	CourtID  string
	LiveOnly bool
}

// Matches reports whether s belongs to the watched pair. LiveOnly also
// requires the live flag.
func (f Filter) Matches(s match.Snapshot) bool {
	if s.EventID != f.EventID || s.CourtID != f.CourtID {
		return false
	}
	return !f.LiveOnly || s.Live
}

// Key returns the routing key for the watched pair.
func (f Filter) Key() string {
	return match.RoutingKey(f.EventID, f.CourtID)
}

// Update is one delivery from a source. A nil Snapshot reports that the
// source has no live match for the watched pair.
type Update struct {
	Source     string
	Snapshot   *match.Snapshot
	ReceivedAt time.Time
}

// Empty reports whether the update carries no live snapshot.
func (u Update) Empty() bool {
	return u.Snapshot == nil || !u.Snapshot.Live
}

// EmptyUpdate builds a no-live-match update for source.
func EmptyUpdate(source string, at time.Time) Update {
	return Update{Source: source, ReceivedAt: at}
}

// SnapshotUpdate builds an update carrying a copy of s.
func SnapshotUpdate(source string, s match.Snapshot, at time.Time) Update {
	return Update{Source: source, Snapshot: &s, ReceivedAt: at}
}

type (
	UpdateFunc  func(Update)
	ErrorFunc   func(error)
	Unsubscribe func()
)

// Feed is a push-based match source. Deliveries are at-least-once and
// ordered per source. Once the returned Unsubscribe returns, no further
// callbacks are made. Callbacks must not call Unsubscribe.
type Feed interface {
	Name() string
	Subscribe(ctx context.Context, filter Filter, onUpdate UpdateFunc, onError ErrorFunc) (Unsubscribe, error)
}
