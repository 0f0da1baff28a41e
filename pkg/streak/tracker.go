package streak

import (
	"context"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/daybook/internal/notify"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// StateStore persists the streak state.
type StateStore interface {
	LoadStreak(ctx context.Context) (State, error)
	SaveStreak(ctx context.Context, s State) error
}

// Tracker applies entry events to a StateStore and publishes every new
// state to watchers.
type Tracker struct {
	mu    sync.Mutex
	store StateStore
	hub   *notify.Hub[State]
}

// NewTracker returns a tracker backed by store.
func NewTracker(store StateStore) *Tracker {
	return &Tracker{store: store, hub: notify.NewHub[State]()}
}

// Observe records an entry for day and returns the new state.
func (t *Tracker) Observe(ctx context.Context, day types.Date) (State, error) {
	return t.update(ctx, func(s State) State { return Advance(s, day) })
}

// Reset zeroes the current streak, keeping the longest.
func (t *Tracker) Reset(ctx context.Context) (State, error) {
	return t.update(ctx, Reset)
}

// Replace overwrites the state, as after a recompute.
func (t *Tracker) Replace(ctx context.Context, s State) (State, error) {
	if s.Longest < s.Current {
		s.Longest = s.Current
	}
	return t.update(ctx, func(State) State { return s })
}

func (t *Tracker) update(ctx context.Context, fn func(State) State) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, err := t.store.LoadStreak(ctx)
	if err != nil {
		return State{}, fmt.Errorf("loading streak: %w", err)
	}
	next := fn(cur)
	if err := t.store.SaveStreak(ctx, next); err != nil {
		return State{}, fmt.Errorf("saving streak: %w", err)
	}
	t.hub.Publish(next)
	return next, nil
}

// State returns the stored state.
func (t *Tracker) State(ctx context.Context) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.store.LoadStreak(ctx)
	if err != nil {
		return State{}, fmt.Errorf("loading streak: %w", err)
	}
	return s, nil
}

// Watch streams the current state followed by every later change. Values may
// be coalesced for slow readers. The channel closes when ctx is done.
func (t *Tracker) Watch(ctx context.Context) (<-chan State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.store.LoadStreak(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading streak: %w", err)
	}
	return t.hub.SubscribeFrom(ctx, s), nil
}
