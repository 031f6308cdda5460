package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type window struct {
	start time.Time
	count int
}

// FixedWindow counts admitted requests per route in process memory.
// A window opens with the first request after the previous one elapsed.
type FixedWindow struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	rules   map[string]Rule
	windows map[string]*window
}

func NewFixedWindow(clock clockwork.Clock) *FixedWindow {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FixedWindow{
		clock:   clock,
		rules:   make(map[string]Rule),
		windows: make(map[string]*window),
	}
}

func (f *FixedWindow) Register(routeID string, rule Rule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[routeID] = rule
	delete(f.windows, routeID)
	return nil
}

func (f *FixedWindow) Allow(_ context.Context, routeID string) (Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rule, ok := f.rules[routeID]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	now := f.clock.Now()
	w := f.windows[routeID]
	if w == nil || !now.Before(w.start.Add(rule.Window)) {
		w = &window{start: now}
		f.windows[routeID] = w
	}

	if w.count >= rule.Limit {
		return Decision{RetryAfter: w.start.Add(rule.Window).Sub(now)}, nil
	}
	w.count++
	return Decision{Allowed: true, Remaining: rule.Limit - w.count}, nil
}

func (f *FixedWindow) Close() error { return nil }
