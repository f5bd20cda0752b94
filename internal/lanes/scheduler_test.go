package lanes

import (
	"testing"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tm
}

// TestFirstFitPacking packs 3 overlapping events onto 2 lanes; the third
// cannot fit and is dropped.
func TestFirstFitPacking(t *testing.T) {
	padding := 45 * time.Minute
	laneCount := 2

	events := []struct {
		start, end time.Time
	}{
		{mustParse(t, "2026-07-29T10:00:00Z"), mustParse(t, "2026-07-29T11:00:00Z")},
		{mustParse(t, "2026-07-29T10:30:00Z"), mustParse(t, "2026-07-29T11:30:00Z")},
		{mustParse(t, "2026-07-29T10:45:00Z"), mustParse(t, "2026-07-29T12:00:00Z")},
	}

	laneEnd := make([]time.Time, laneCount)
	var scheduled, dropped int
	for _, ev := range events {
		laneIdx := -1
		for i := 0; i < laneCount; i++ {
			if !laneEnd[i].After(ev.start) {
				laneIdx = i
				break
			}
		}
		if laneIdx == -1 {
			dropped++
			continue
		}
		laneEnd[laneIdx] = ev.end.Add(padding)
		scheduled++
	}

	if scheduled != 2 || dropped != 1 {
		t.Fatalf("want 2 scheduled, 1 dropped; got scheduled=%d dropped=%d", scheduled, dropped)
	}
	wantLane0End := mustParse(t, "2026-07-29T11:45:00Z")
	wantLane1End := mustParse(t, "2026-07-29T12:15:00Z")
	if !laneEnd[0].Equal(wantLane0End) {
		t.Fatalf("lane0 end = %v, want %v", laneEnd[0], wantLane0End)
	}
	if !laneEnd[1].Equal(wantLane1End) {
		t.Fatalf("lane1 end = %v, want %v", laneEnd[1], wantLane1End)
	}
}

func TestWithPlaceholders_FillsGaps(t *testing.T) {
	windowStart := mustParse(t, "2026-07-29T08:00:00Z")
	windowEnd := mustParse(t, "2026-07-29T11:00:00Z")
	real := []catalog.LaneEvent{
		{LaneID: 9000, StartUTC: mustParse(t, "2026-07-29T09:00:00Z"), EndUTC: mustParse(t, "2026-07-29T10:00:00Z")},
	}
	out := withPlaceholders(real, windowStart, windowEnd, time.Hour, 0, 9000)

	var placeholders, realCount int
	for _, row := range out {
		if row.IsPlaceholder {
			placeholders++
			if row.Title != placeholderTitle {
				t.Fatalf("placeholder title = %q", row.Title)
			}
		} else {
			realCount++
		}
	}
	if realCount != 1 {
		t.Fatalf("want 1 real slot preserved, got %d", realCount)
	}
	if placeholders != 2 {
		t.Fatalf("want 2 placeholder blocks (before+after), got %d", placeholders)
	}
}

// TestWithPlaceholders_LeavesPaddingWindowUncovered: the slot keeps the
// event's real end, and the next placeholder only starts padding later, so
// the resolver's fallback window owns the in-between time.
func TestWithPlaceholders_LeavesPaddingWindowUncovered(t *testing.T) {
	windowStart := mustParse(t, "2026-07-29T08:00:00Z")
	windowEnd := mustParse(t, "2026-07-29T13:00:00Z")
	padding := 45 * time.Minute
	real := []catalog.LaneEvent{
		{LaneID: 9000, StartUTC: mustParse(t, "2026-07-29T10:00:00Z"), EndUTC: mustParse(t, "2026-07-29T11:00:00Z")},
	}
	out := withPlaceholders(real, windowStart, windowEnd, time.Hour, padding, 9000)

	var after *catalog.LaneEvent
	for i := range out {
		if out[i].IsPlaceholder && out[i].StartUTC.After(real[0].StartUTC) {
			after = &out[i]
			break
		}
	}
	if after == nil {
		t.Fatal("expected a placeholder after the real slot")
	}
	want := mustParse(t, "2026-07-29T11:45:00Z")
	if !after.StartUTC.Equal(want) {
		t.Fatalf("post-event placeholder starts %v, want %v (real end + padding)", after.StartUTC, want)
	}
	for _, row := range out {
		if !row.IsPlaceholder && !row.EndUTC.Equal(real[0].EndUTC) {
			t.Fatalf("real slot end = %v, want unpadded %v", row.EndUTC, real[0].EndUTC)
		}
	}
}

func TestWithPlaceholders_NoOverlapAtMostOnePerTime(t *testing.T) {
	windowStart := mustParse(t, "2026-07-29T08:00:00Z")
	windowEnd := mustParse(t, "2026-07-29T12:00:00Z")
	real := []catalog.LaneEvent{
		{LaneID: 1, StartUTC: mustParse(t, "2026-07-29T09:00:00Z"), EndUTC: mustParse(t, "2026-07-29T10:00:00Z")},
		{LaneID: 1, StartUTC: mustParse(t, "2026-07-29T10:15:00Z"), EndUTC: mustParse(t, "2026-07-29T10:45:00Z")},
	}
	out := withPlaceholders(real, windowStart, windowEnd, 30*time.Minute, 0, 1)
	for i := 1; i < len(out); i++ {
		if out[i].StartUTC.Before(out[i-1].EndUTC) {
			t.Fatalf("overlap between slot %d and %d", i-1, i)
		}
	}
}
