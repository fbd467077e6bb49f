package roster

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxNameWords = 4
	maxNameLen   = 40
)

var (
	// nameHeaders are header cells that name the student name column outright.
	nameHeaders = []string{
		"name", "names", "full name", "student", "student name", "nom", "nom complet", "eleve", "nom de l eleve",
		"اسم", "الاسم", "اسم الطالب", "الاسم الكامل", "الطالب",
	}

	// otherHeaders are header cells of columns known not to hold names.
	otherHeaders = []string{
		"no", "n", "num", "number", "#", "id", "roll", "roll number", "class", "classe", "date", "grade", "note",
		"الرقم", "رقم", "القسم", "الصف", "التاريخ",
	}

	// denyList holds fragments of cells that are not person names (publishers, subjects, totals).
	denyList = []string{
		"publisher", "edition", "editions", "press", "library", "subject", "total", "page", "www", "http",
		"دار", "مكتبة", "مطبعة", "منشورات", "مادة", "المادة", "المجموع", "صفحة",
	}
)

func isNameHeader(cell string) bool  { return inList(MatchKey(cell), nameHeaders) }
func isOtherHeader(cell string) bool { return inList(MatchKey(cell), otherHeaders) }

func inList(key string, list []string) bool {
	if key == "" {
		return false
	}
	for _, v := range list {
		if key == MatchKey(v) {
			return true
		}
	}
	return false
}

// DetectNameColumn returns the index of the column holding person names.
// A single header named like a name column wins outright; otherwise every column is scored on its
// non-empty cells (letters, few words and short length add, digits and deny-listed phrases subtract),
// normalized by the number of non-empty cells. Ties keep the first column.
// ok is false when no column scores above zero.
func DetectNameColumn(headers []string, columns [][]string) (index int, ok bool) {
	named := -1
	for i, h := range headers {
		if isNameHeader(h) {
			if named >= 0 { // ambiguous
				named = -1
				break
			}
			named = i
		}
	}
	if named >= 0 {
		return named, true
	}

	best, bestScore := -1, 0.0
	for i, col := range columns {
		if i < len(headers) && isOtherHeader(headers[i]) {
			continue
		}
		score, n := 0, 0
		for _, cell := range col {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			n++
			score += cellScore(cell)
		}
		if n == 0 {
			continue
		}
		if normalized := float64(score) / float64(n); normalized > bestScore {
			best, bestScore = i, normalized
		}
	}
	return best, best >= 0
}

func cellScore(cell string) int {
	var score int
	var hasLetter, hasDigit bool
	for _, r := range cell {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if hasLetter {
		score += 2
	}
	if len(strings.Fields(cell)) <= maxNameWords {
		score++
	}
	if utf8.RuneCountInString(cell) <= maxNameLen {
		score++
	}
	if hasDigit {
		score -= 3
	}
	key := " " + MatchKey(cell) + " "
	for _, deny := range denyList {
		if strings.Contains(key, " "+MatchKey(deny)+" ") {
			score -= 3
			break
		}
	}
	return score
}
