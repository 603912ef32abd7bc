package repository

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/Gopher0727/ChatSync/internal/model"
)

/// Property: across any sequence of page saves, the oldest pagination bound
// only ever moves backwards, and a nil newest bound (window reaches the
// present) is never re-established by widening.
func TestProperty_PaginationBoundsMonotone(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property test in short mode")
	}

	rapid.Check(t, func(rt *rapid.T) {
		ch := model.NewChannel("messaging:prop")
		ch.CreatedAt = baseTime

		// Optionally start with a bounded window.
		if rapid.Bool().Draw(rt, "startBounded") {
			oldest := baseTime.Add(time.Duration(rapid.IntRange(0, 10000).Draw(rt, "oldest0")) * time.Second)
			newest := oldest.Add(time.Duration(rapid.IntRange(0, 10000).Draw(rt, "newest0")) * time.Second)
			ch.OldestMessageAt = &oldest
			ch.NewestMessageAt = &newest
		}

		numPages := rapid.IntRange(1, 20).Draw(rt, "numPages")
		for i := 0; i < numPages; i++ {
			var prevOldest, prevNewest *time.Time
			if ch.OldestMessageAt != nil {
				cp := *ch.OldestMessageAt
				prevOldest = &cp
			}
			if ch.NewestMessageAt != nil {
				cp := *ch.NewestMessageAt
				prevNewest = &cp
			}

			min := baseTime.Add(time.Duration(rapid.IntRange(0, 20000).Draw(rt, "pageMin")) * time.Second)
			max := min.Add(time.Duration(rapid.IntRange(0, 20000).Draw(rt, "pageSpan")) * time.Second)
			widenBounds(ch, min, max)

			if prevOldest != nil && ch.OldestMessageAt.After(*prevOldest) {
				rt.Fatalf("oldest bound moved forward: %v -> %v", prevOldest, ch.OldestMessageAt)
			}
			if prevNewest == nil && ch.NewestMessageAt != nil {
				rt.Fatalf("newest bound re-established after reaching the present")
			}
			if prevNewest != nil && ch.NewestMessageAt.Before(*prevNewest) {
				rt.Fatalf("newest bound moved backward: %v -> %v", prevNewest, ch.NewestMessageAt)
			}
		}
	})
}

// Property: the channel sort key is never before the channel's creation
// time and never before lastMessageAt when that is in the valid range.
func TestProperty_DefaultSortingAtClamped(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property test in short mode")
	}

	rapid.Check(t, func(rt *rapid.T) {
		ch := model.NewChannel("messaging:sort")
		ch.CreatedAt = baseTime

		if rapid.Bool().Draw(rt, "hasLastMessage") {
			// Offset may be negative: a bogus lastMessageAt older than
			// the channel itself.
			offset := rapid.IntRange(-100000, 100000).Draw(rt, "offset")
			at := baseTime.Add(time.Duration(offset) * time.Second)
			ch.LastMessageAt = &at
		}

		updateDefaultSorting(ch)

		if ch.DefaultSortingAt.Before(ch.CreatedAt) {
			rt.Fatalf("sort key %v before channel creation %v", ch.DefaultSortingAt, ch.CreatedAt)
		}
		if ch.LastMessageAt != nil && ch.LastMessageAt.After(ch.CreatedAt) &&
			!ch.DefaultSortingAt.Equal(*ch.LastMessageAt) {
			rt.Fatalf("sort key %v should equal lastMessageAt %v", ch.DefaultSortingAt, ch.LastMessageAt)
		}
	})
}
