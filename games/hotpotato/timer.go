package hotpotato

import (
	"cmp"
	"slices"
	"time"
)

// holdTimer decides, on each tick, whether the current holder crossed a
// warning threshold or overran the hold limit. Warnings fire once per
// threshold per tenure.
type holdTimer struct {
	maxHold    time.Duration
	warnBefore []time.Duration
	warned     []bool
	tenure     uint64
}

type warning struct {
	threshold time.Duration
	remaining time.Duration
}

func newHoldTimer(maxHold time.Duration, warnBefore []time.Duration) holdTimer {
	thresholds := make([]time.Duration, 0, len(warnBefore))
	for _, w := range warnBefore {
		if w > 0 && w < maxHold && !slices.Contains(thresholds, w) {
			thresholds = append(thresholds, w)
		}
	}
	// Earliest crossing first.
	slices.SortFunc(thresholds, func(a, b time.Duration) int { return cmp.Compare(b, a) })

	return holdTimer{
		maxHold:    maxHold,
		warnBefore: thresholds,
		warned:     make([]bool, len(thresholds)),
	}
}

func (t *holdTimer) rearm(tenure uint64) {
	t.tenure = tenure
	clear(t.warned)
}

func (t *holdTimer) evaluate(p Potato, tenure uint64, now time.Time) ([]warning, bool) {
	if tenure != t.tenure {
		t.rearm(tenure)
	}
	if p.InFlight || p.HolderID == "" {
		return nil, false
	}

	elapsed := now.Sub(p.HeldSince)
	if elapsed > t.maxHold {
		return nil, true
	}

	remaining := t.maxHold - elapsed
	var crossed []warning
	for i, w := range t.warnBefore {
		if t.warned[i] || remaining > w {
			continue
		}
		t.warned[i] = true
		crossed = append(crossed, warning{threshold: w, remaining: remaining})
	}
	return crossed, false
}

// scheduler owns the per-session ticker. It runs only while a game is active
// and is restarted whenever the tenure changes, so a new holder always gets a
// fresh baseline.
type scheduler struct {
	tick   time.Duration
	ticker *time.Ticker
	tenure uint64
}

func (s *scheduler) C() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.C
}

func (s *scheduler) sync(active bool, tenure uint64) {
	switch {
	case !active:
		s.stop()
	case s.ticker == nil:
		s.ticker = time.NewTicker(s.tick)
		s.tenure = tenure
	case tenure != s.tenure:
		s.ticker.Reset(s.tick)
		s.tenure = tenure
	}
}

func (s *scheduler) stop() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}
