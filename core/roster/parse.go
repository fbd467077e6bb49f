package roster

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

var (
	numbering = regexp.MustCompile(`^\(?[\p{Nd}]+\s*[.)\-:–]\s*`)
	quotes    = "\"'«»“”‘’`"
)

// ParseNames reads a pasted list: one name per line, or CSV (the name column is then detected).
// Numbering ("1.", "2)"), surrounding quotes and the BOM are stripped; duplicates (by match key) are dropped.
func ParseNames(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading names")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if looksLikeCSV(data) {
		rows, err := readCSV(data)
		if err != nil {
			return nil, err
		}
		ext, err := ExtractNames(rows)
		if err != nil {
			return nil, err
		}
		return ext.Names, nil
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning names")
	}
	return cleanNames(lines), nil
}

// looksLikeCSV reports whether most non-blank lines hold more than one delimited field.
func looksLikeCSV(data []byte) bool {
	delim := string(sniffDelimiter(data))
	var lines, multi int
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines++
		if strings.Contains(line, delim) {
			multi++
		}
	}
	return lines > 0 && multi*2 > lines
}

// CleanName strips list numbering and quotes and normalizes the spacing of a single name.
func CleanName(s string) string {
	s = NormalizeName(s)
	s = numbering.ReplaceAllString(s, "")
	s = strings.Trim(s, quotes+" ")
	return NormalizeName(s)
}

func cleanNames(cells []string) []string {
	names := make([]string, 0, len(cells))
	seen := make(map[string]bool, len(cells))
	for _, cell := range cells {
		name := CleanName(cell)
		key := MatchKey(name)
		if !strings.ContainsFunc(key, unicode.IsLetter) || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names
}
