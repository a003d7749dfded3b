package noise

import (
	"sort"

	"github.com/hushlab/hushd/internal/storage"
)

const (
	// QuietThreshold is the decibel level above which a sample counts as loud.
	QuietThreshold = 45.0

	// maxLoudGapSeconds is the largest gap between loud samples that still
	// extends a burst.
	maxLoudGapSeconds = 1.0

	// abruptStreakSeconds is the sustained-loudness duration that counts as
	// one abrupt noise.
	abruptStreakSeconds = 3.0
)

// CountAbruptNoises counts sustained loud bursts in a session's samples.
// A burst is a run of samples above QuietThreshold with gaps of at most one
// second, accumulating three seconds of loudness. Each burst is counted once:
// reaching the threshold resets the streak so the same burst cannot recount.
// The input order does not matter; events are sorted by measurement time.
func CountAbruptNoises(events []storage.NoiseEvent) int {
	if len(events) == 0 {
		return 0
	}

	sorted := make([]storage.NoiseEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MeasuredAt.Before(sorted[j].MeasuredAt)
	})

	count := 0
	streak := 0.0
	haveAnchor := false
	var anchor storage.NoiseEvent

	for _, event := range sorted {
		if event.Decibel <= QuietThreshold {
			streak = 0
			haveAnchor = false
			continue
		}

		if haveAnchor {
			gap := event.MeasuredAt.Sub(anchor.MeasuredAt).Seconds()
			if gap <= maxLoudGapSeconds {
				streak += gap
			} else {
				streak = 1
			}
		} else {
			streak = 1
		}

		if streak >= abruptStreakSeconds {
			count++
			streak = 0
			haveAnchor = false
			continue
		}

		anchor = event
		haveAnchor = true
	}

	return count
}
