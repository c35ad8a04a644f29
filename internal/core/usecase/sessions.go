package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/audithound/saptrail/internal/core/domain"
)

// Sessionizer groups timeline entries into review sessions: one session per
// user per calendar date, numbered S0001, S0002, ... in chronological order
// of session start.
type Sessionizer struct{}

func NewSessionizer() *Sessionizer { return &Sessionizer{} }

// Assign sorts the timeline by user then timestamp, marks session boundaries
// wherever the user or the date changes, renumbers sessions by start time and
// returns the entries ordered by session then timestamp. Seq is rewritten to
// the final ordering.
func (s *Sessionizer) Assign(entries []domain.TimelineEntry) []domain.TimelineEntry {
	if len(entries) == 0 {
		return entries
	}

	out := make([]domain.TimelineEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].User != out[j].User {
			return out[i].User < out[j].User
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	// First pass: session boundaries per (user, date) run. starts holds the
	// index of each session's first entry.
	var starts []int
	provisional := make([]int, len(out))
	for i := range out {
		if i == 0 || out[i].User != out[i-1].User || !sameDate(out[i].Timestamp, out[i-1].Timestamp) {
			starts = append(starts, i)
		}
		provisional[i] = len(starts) - 1
	}

	// Second pass: renumber chronologically by session start time.
	order := make([]int, len(starts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return out[starts[order[a]]].Timestamp.Before(out[starts[order[b]]].Timestamp)
	})
	label := make([]string, len(starts))
	for rank, idx := range order {
		label[idx] = fmt.Sprintf("S%04d", rank+1)
	}
	for i := range out {
		out[i].SessionID = label[provisional[i]]
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	for i := range out {
		out[i].Seq = i + 1
	}
	return out
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
