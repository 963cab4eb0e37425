package lyrics

import (
	"sort"
	"time"

	"github.com/tejashwikalptaru/lyra/internal/domain"
)

// Resolve returns the index of the last line whose timestamp is at or before
// position. It returns 0 when the timeline is empty or position precedes every
// line.
//
// Resolve keeps no cursor, so it is correct after arbitrary seeks and can be
// recomputed on every position sample.
func Resolve(timeline domain.Timeline, position time.Duration) int {
	// first index with Time > position
	next := sort.Search(len(timeline), func(i int) bool {
		return timeline[i].Time > position
	})
	if next == 0 {
		return 0
	}
	return next - 1
}
