package attendance

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/darasa/core/roster"
)

// minNameRatio is the lowest similarity accepted for a fuzzy name match.
const minNameRatio = 0.85

type MatchResult struct {
	Marked    []int    `json:"marked"`    // student ids marked absent
	Unmatched []string `json:"unmatched"` // names kept as skipped name-only rows
}

// MatchNames marks absent every sheet entry named in names (a pasted absentee list).
// Names are compared by match key, then regardless of word order, then fuzzily.
// Names that match nobody are never guessed into a student: they are stored on the sheet as
// unmatched and count as skipped when saving.
func MatchNames(sheet *Sheet, names []string) MatchResult {
	res := MatchResult{Marked: []int{}, Unmatched: []string{}}

	keys := make([]string, len(sheet.Entries))
	sorted := make([]string, len(sheet.Entries))
	for i, e := range sheet.Entries {
		keys[i] = roster.MatchKey(e.Name)
		sorted[i] = sortedWords(keys[i])
	}

	marked := make(map[int]bool)
	seen := make(map[string]bool)
	for _, name := range names {
		key := roster.MatchKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		i := bestMatch(key, keys, sorted)
		if i < 0 {
			res.Unmatched = append(res.Unmatched, strings.TrimSpace(name))
			continue
		}
		e := &sheet.Entries[i]
		e.IsAbsent, e.Dirty = true, true
		id := e.StudentID
		if !marked[id] {
			marked[id] = true
			res.Marked = append(res.Marked, id)
		}
	}

	for _, n := range res.Unmatched {
		if !containsFold(sheet.Unmatched, n) {
			sheet.Unmatched = append(sheet.Unmatched, n)
		}
	}
	return res
}

func bestMatch(key string, keys, sorted []string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	sk := sortedWords(key)
	for i, s := range sorted {
		if s == sk {
			return i
		}
	}

	best, bestRatio := -1, minNameRatio
	a := strings.Split(key, "")
	for i, k := range keys {
		if k == "" {
			continue
		}
		m := difflib.NewMatcher(a, strings.Split(k, ""))
		if m.RealQuickRatio() < bestRatio || m.QuickRatio() < bestRatio {
			continue
		}
		// strict > keeps the first of equally good matches
		if ratio := m.Ratio(); ratio > bestRatio || (best < 0 && ratio == bestRatio) {
			best, bestRatio = i, ratio
		}
	}
	return best
}

func sortedWords(s string) string {
	words := strings.Fields(s)
	sort.Strings(words)
	return strings.Join(words, " ")
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
