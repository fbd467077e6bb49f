package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

var arabicFolds = strings.NewReplacer(
	"أ", "ا", "إ", "ا", "آ", "ا", "ٱ", "ا",
	"ة", "ه",
	"ى", "ي",
	"ؤ", "و", "ئ", "ي",
)

// NormalizeName returns name in NFC with its whitespace collapsed and tatweel removed.
// It is the form names are displayed and sent to the backend in.
func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == tatweel, r == '\ufeff', r == '\u200b':
			return -1
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, name)
	return strings.Join(strings.Fields(name), " ")
}

// MatchKey folds a name for comparisons: diacritics and harakat stripped, Arabic letter variants
// unified, punctuation dropped, lower case.
func MatchKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, NormalizeName(name))
	if err != nil {
		folded = NormalizeName(name)
	}
	folded = arabicFolds.Replace(strings.ToLower(folded))
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}
