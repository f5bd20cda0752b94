package lanes

import (
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

const placeholderTitle = "Nothing Scheduled"

// withPlaceholders merges real scheduled slots (already sorted by start,
// non-overlapping by construction of the first-fit packer) with idle
// "Nothing Scheduled" placeholder blocks walking from windowStart to
// windowEnd, so the lane presents a continuous guide.
// Each placeholder block is at most blockDur long, clipped to the start of
// the next real slot. The gap after a real slot starts only at its end plus
// padding: the padding window stays uncovered so the resolver can keep
// answering with the just-ended event's deeplink as a fallback.
func withPlaceholders(real []catalog.LaneEvent, windowStart, windowEnd time.Time, blockDur, padding time.Duration, laneID int) []catalog.LaneEvent {
	var out []catalog.LaneEvent
	cursor := windowStart

	emitGap := func(from, to time.Time) {
		for from.Before(to) {
			blockEnd := from.Add(blockDur)
			if blockEnd.After(to) {
				blockEnd = to
			}
			out = append(out, catalog.LaneEvent{
				LaneID:        laneID,
				StartUTC:      from,
				EndUTC:        blockEnd,
				IsPlaceholder: true,
				Title:         placeholderTitle,
			})
			from = blockEnd
		}
	}

	for _, slot := range real {
		if slot.StartUTC.After(cursor) {
			emitGap(cursor, slot.StartUTC)
		}
		out = append(out, slot)
		if padded := slot.EndUTC.Add(padding); padded.After(cursor) {
			cursor = padded
		}
	}
	if cursor.Before(windowEnd) {
		emitGap(cursor, windowEnd)
	}
	return out
}
