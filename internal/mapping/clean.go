package mapping

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/arkilian/lakestage/internal/dataset"
)

// MaxColumnNameLength is the longest column name the catalog accepts.
const MaxColumnNameLength = 255

var stripChars = ",;{}()\n\t="

// CleanName normalizes a raw header into a catalog-safe column name.
// The result may be empty; CleanColumnNames handles that case.
func CleanName(name string) string {
	s := strings.TrimSpace(name)

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(stripChars, r) {
			return -1
		}
		switch r {
		case ' ', '.':
			return '_'
		}
		return r
	}, s)

	for strings.Contains(s, "_-_") {
		s = strings.ReplaceAll(s, "_-_", "-")
	}
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}

	if r := []rune(s); len(r) > MaxColumnNameLength {
		s = string(r[:MaxColumnNameLength])
	}
	return s
}

// CleanColumnNames renames every column with CleanName and returns the
// renamed dataset plus one recommendation per column. Empty names become
// col_<n> and collisions get _2, _3 suffixes.
func CleanColumnNames(ds *dataset.Dataset) (*dataset.Dataset, []Recommendation) {
	schema := ds.Schema()
	seen := make(map[string]int, len(schema))
	recs := make([]Recommendation, len(schema))
	cols := make([]dataset.Projection, len(schema))

	for i, c := range schema {
		clean := CleanName(c.Name)
		if clean == "" {
			clean = fmt.Sprintf("col_%d", i+1)
		}
		if n, dup := seen[clean]; dup {
			candidate := clean
			for {
				n++
				candidate = fmt.Sprintf("%s_%d", clean, n)
				if _, taken := seen[candidate]; !taken {
					break
				}
			}
			seen[clean] = n
			clean = candidate
		}
		seen[clean] = 1

		recs[i] = Recommendation{SourceName: c.Name, DestName: clean}
		cols[i] = dataset.Projection{Column: dataset.Column{Name: clean, Type: c.Type}, Source: i}
	}

	out, err := ds.Project(cols)
	if err != nil {
		// names are unique by construction
		panic(err)
	}
	return out, recs
}
