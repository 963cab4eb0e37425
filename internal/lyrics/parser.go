// Package lyrics turns LRC lyric files into timelines and maps playback
// positions onto the active line.
package lyrics

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tejashwikalptaru/lyra/internal/domain"
)

// timeTag matches [minutes:seconds.fraction]. Some files write the fraction
// separator as ':' so both are accepted.
var timeTag = regexp.MustCompile(`\[(\d+):(\d+)[.:](\d+)\]`)

// Parse converts a raw LRC payload into a timeline sorted by timestamp.
//
// Lines without a time tag are dropped. A line carrying several adjacent tags
// ("[00:12.00][01:40.00]chorus") produces one entry per tag. Lines sharing a
// timestamp keep their input order. The fraction is read as a decimal fraction
// of a second, so ".5", ".50" and ".500" are all 500ms; digits past the third
// are ignored.
//
// Parse never fails: malformed input yields a shorter, possibly empty, timeline.
func Parse(raw string) domain.Timeline {
	timeline := make(domain.Timeline, 0)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		timeline = append(timeline, parseLine(line)...)
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Time < timeline[j].Time
	})

	return timeline
}

// ParseReader reads r to the end and parses it.
func ParseReader(r io.Reader) (domain.Timeline, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read lyrics: %w", err)
	}
	return Parse(string(raw)), nil
}

func parseLine(line string) []domain.LyricLine {
	matches := timeTag.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return nil
	}

	// Only the run of tags directly adjacent to the first one are timestamps;
	// anything after that belongs to the text.
	stamps := make([]time.Duration, 0, len(matches))
	end := matches[0][0]
	for _, m := range matches {
		if m[0] != end {
			break
		}
		stamp, ok := tagTime(line, m)
		end = m[1]
		if !ok {
			continue
		}
		stamps = append(stamps, stamp)
	}

	text := line[end:]
	out := make([]domain.LyricLine, 0, len(stamps))
	for _, stamp := range stamps {
		out = append(out, domain.LyricLine{Time: stamp, Text: text})
	}
	return out
}

// tagTime decodes the submatch groups of a single time tag.
func tagTime(line string, m []int) (time.Duration, bool) {
	minutes, err := strconv.ParseInt(line[m[2]:m[3]], 10, 32)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseInt(line[m[4]:m[5]], 10, 32)
	if err != nil {
		return 0, false
	}

	// tags past the range of time.Duration are malformed
	if minutes > maxMinutes {
		return 0, false
	}
	stamp := time.Duration(minutes) * time.Minute
	rest := time.Duration(seconds)*time.Second + fraction(line[m[6]:m[7]])
	if stamp > math.MaxInt64-rest {
		return 0, false
	}
	return stamp + rest, true
}

const maxMinutes = math.MaxInt64 / int64(time.Minute)

// fraction converts the digits after the separator into milliseconds,
// scaling by digit count.
func fraction(digits string) time.Duration {
	if len(digits) > 3 {
		digits = digits[:3]
	}
	digits += strings.Repeat("0", 3-len(digits))

	ms, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
