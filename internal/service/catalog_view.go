package service

import (
	"sort"
	"strings"

	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"

	"github.com/tejashwikalptaru/lyra/internal/domain"
)

// VisibleTracks filters tracks by query and orders them by key.
// The input slice is not modified.
//
// Substring search keeps tracks whose title or artist contains the query,
// ignoring case. Fuzzy search keeps tracks whose title or artist contains the
// query's characters in order (case and diacritics folded) and ranks them by
// edit distance, falling back to key order between equal ranks.
func VisibleTracks(tracks []domain.Track, query string, mode domain.SearchMode, key domain.SortKey) []domain.Track {
	query = strings.TrimSpace(query)

	var visible []domain.Track
	switch {
	case query == "":
		visible = append(make([]domain.Track, 0, len(tracks)), tracks...)
	case mode == domain.SearchFuzzy:
		visible = lo.Filter(tracks, func(t domain.Track, _ int) bool {
			return fuzzy.MatchNormalizedFold(query, t.Title) || fuzzy.MatchNormalizedFold(query, t.Artist)
		})
	default:
		needle := strings.ToLower(query)
		visible = lo.Filter(tracks, func(t domain.Track, _ int) bool {
			return strings.Contains(strings.ToLower(t.Title), needle) ||
				strings.Contains(strings.ToLower(t.Artist), needle)
		})
	}

	sortTracks(visible, key)

	if query != "" && mode == domain.SearchFuzzy {
		needle := strings.ToLower(query)
		rank := lo.SliceToMap(visible, func(t domain.Track) (string, int) {
			return t.ID, min(
				levenshtein.Distance(needle, strings.ToLower(t.Title)),
				levenshtein.Distance(needle, strings.ToLower(t.Artist)),
			)
		})
		sort.SliceStable(visible, func(i, j int) bool {
			return rank[visible[i].ID] < rank[visible[j].ID]
		})
	}

	return visible
}

// sortTracks orders tracks in place. Text keys compare case-insensitively;
// ties keep catalog order.
func sortTracks(tracks []domain.Track, key domain.SortKey) {
	var less func(a, b domain.Track) bool
	switch key {
	case domain.SortArtist:
		less = func(a, b domain.Track) bool { return strings.ToLower(a.Artist) < strings.ToLower(b.Artist) }
	case domain.SortDuration:
		less = func(a, b domain.Track) bool { return a.Duration < b.Duration }
	default:
		less = func(a, b domain.Track) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	}
	sort.SliceStable(tracks, func(i, j int) bool { return less(tracks[i], tracks[j]) })
}
