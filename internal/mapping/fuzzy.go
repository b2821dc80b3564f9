package mapping

import (
	"sort"
	"strings"
	"unicode"
)

// ScoreFunc returns a similarity score between 0 and 100.
type ScoreFunc func(a, b string) float64

var scorers = map[string]ScoreFunc{
	"ratio":            Ratio,
	"partial_ratio":    PartialRatio,
	"token_sort_ratio": TokenSortRatio,
	"token_set_ratio":  TokenSetRatio,
	"wratio":           WRatio,
}

// Scorer looks up a scorer by name. Names are case-insensitive and an empty
// name selects WRatio.
func Scorer(name string) (ScoreFunc, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return WRatio, true
	}
	fn, ok := scorers[name]
	return fn, ok
}

// bestMatch returns the candidate with the highest score. Ties keep the
// earlier candidate.
func bestMatch(query string, candidates []string, score ScoreFunc) (string, float64) {
	q := preprocess(query)
	best, bestScore := "", -1.0
	for _, c := range candidates {
		s := score(q, preprocess(c))
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}

// preprocess lowercases, replaces non-alphanumerics with spaces and trims.
func preprocess(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// Ratio is the normalized indel similarity: 2*LCS / (len(a)+len(b)).
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 100 * float64(2*lcs(ra, rb)) / float64(total)
}

// PartialRatio is the best Ratio of the shorter string against every
// equal-length window of the longer one.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 0
	}
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		if s := Ratio(string(ra), string(rb[i:i+len(ra)])); s > best {
			best = s
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares strings after sorting their words.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared words against each side's remainder.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	var common, onlyA, onlyB []string
	for t := range ta {
		if tb[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if !ta[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	if base != "" && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}
	best := Ratio(withA, withB)
	if base != "" {
		best = max(best, Ratio(base, withA), Ratio(base, withB))
	}
	return best
}

// WRatio weighs the other scorers, preferring whole-string similarity.
func WRatio(a, b string) float64 {
	return max(Ratio(a, b), 0.95*TokenSortRatio(a, b), 0.95*TokenSetRatio(a, b), 0.9*PartialRatio(a, b))
}

func sortedTokens(s string) string {
	f := strings.Fields(s)
	sort.Strings(f)
	return strings.Join(f, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(s) {
		set[f] = true
	}
	return set
}

func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
