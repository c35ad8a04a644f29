package usecase

import (
	"sort"
	"time"

	"github.com/audithound/saptrail/internal/core/domain"
)

// DefaultTolerance is the correlation window applied when none is configured.
const DefaultTolerance = 15 * time.Minute

// Correlator attaches each change record to the same-user access-log event
// nearest in time, within a tolerance window.
type Correlator struct {
	tolerance time.Duration
}

func NewCorrelator(tolerance time.Duration) *Correlator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Correlator{tolerance: tolerance}
}

// CorrelationResult holds the matched pairs and the two residual sets.
// Matched and UnmatchedChanges partition the input changes; every input
// access event appears in UnmatchedAccess unless it served as the nearest
// in-tolerance match for at least one change.
type CorrelationResult struct {
	Matched          []domain.CorrelatedEvent
	UnmatchedChanges []domain.ChangeRecord
	UnmatchedAccess  []domain.AccessLogEvent

	// Approximate flags the degraded equality-join fallback; matches then
	// carry no time-window guarantee.
	Approximate bool
}

// Correlate runs the per-user nearest-in-time match. A single access event
// may serve as the match for any number of changes; matching is evaluated
// independently per change. When two events are equidistant from a change,
// the earlier one wins (deterministic within a run).
//
// Structural precondition: every record carries a user identity and a valid
// timestamp. When violated, Correlate degrades to an unconstrained per-user
// equality join and flags the result Approximate rather than failing the run.
func (c *Correlator) Correlate(events []domain.AccessLogEvent, changes []domain.ChangeRecord) CorrelationResult {
	if !correlatable(events, changes) {
		return c.equalityJoin(events, changes)
	}

	type candidate struct {
		event domain.AccessLogEvent
		pos   int
	}
	byUser := make(map[string][]candidate)
	for i, ev := range events {
		byUser[ev.User] = append(byUser[ev.User], candidate{event: ev, pos: i})
	}
	for _, cands := range byUser {
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].event.Timestamp.Before(cands[j].event.Timestamp)
		})
	}

	res := CorrelationResult{}
	used := make([]bool, len(events))

	for _, change := range changes {
		cands := byUser[change.User]
		if len(cands) == 0 {
			res.UnmatchedChanges = append(res.UnmatchedChanges, change)
			continue
		}

		// Nearest by absolute delta: binary-search the insertion point and
		// compare the neighbor on each side. Equidistant neighbors resolve
		// to the earlier event.
		target := change.Timestamp
		i := sort.Search(len(cands), func(i int) bool {
			return !cands[i].event.Timestamp.Before(target)
		})
		best := i
		if i == len(cands) {
			best = len(cands) - 1
		} else if i > 0 {
			before := target.Sub(cands[i-1].event.Timestamp)
			after := cands[i].event.Timestamp.Sub(target)
			if before <= after {
				best = i - 1
			}
		}

		delta := absDuration(target.Sub(cands[best].event.Timestamp))
		if delta > c.tolerance {
			res.UnmatchedChanges = append(res.UnmatchedChanges, change)
			continue
		}

		event := cands[best].event
		used[cands[best].pos] = true
		res.Matched = append(res.Matched, domain.CorrelatedEvent{
			Change:            change,
			Access:            &event,
			TimeDelta:         delta,
			DisplayButChanged: event.IsDisplayOnly && change.IsActualChange(),
		})
	}

	for i, ev := range events {
		if !used[i] {
			res.UnmatchedAccess = append(res.UnmatchedAccess, ev)
		}
	}
	return res
}

// equalityJoin is the degraded mode: each change is paired with the earliest
// access event of the same user regardless of time distance.
func (c *Correlator) equalityJoin(events []domain.AccessLogEvent, changes []domain.ChangeRecord) CorrelationResult {
	res := CorrelationResult{Approximate: true}

	firstByUser := make(map[string]int)
	for i, ev := range events {
		if prev, ok := firstByUser[ev.User]; !ok || ev.Timestamp.Before(events[prev].Timestamp) {
			firstByUser[ev.User] = i
		}
	}

	used := make([]bool, len(events))
	for _, change := range changes {
		pos, ok := firstByUser[change.User]
		if !ok {
			res.UnmatchedChanges = append(res.UnmatchedChanges, change)
			continue
		}
		event := events[pos]
		used[pos] = true
		res.Matched = append(res.Matched, domain.CorrelatedEvent{
			Change:            change,
			Access:            &event,
			TimeDelta:         absDuration(change.Timestamp.Sub(event.Timestamp)),
			DisplayButChanged: event.IsDisplayOnly && change.IsActualChange(),
		})
	}

	for i, ev := range events {
		if !used[i] {
			res.UnmatchedAccess = append(res.UnmatchedAccess, ev)
		}
	}
	return res
}

func correlatable(events []domain.AccessLogEvent, changes []domain.ChangeRecord) bool {
	for _, ev := range events {
		if ev.User == "" || ev.Timestamp.IsZero() {
			return false
		}
	}
	for _, ch := range changes {
		if ch.User == "" || ch.Timestamp.IsZero() {
			return false
		}
	}
	return true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
