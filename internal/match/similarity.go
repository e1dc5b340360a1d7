package match

import (
	"sort"
	"strings"
)

// damerauLevenshtein returns the edit distance between a and b counting
// insertions, deletions, substitutions and adjacent transpositions.
// Inputs are compared rune-wise so multi-byte text is measured fairly.
func damerauLevenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev2 := make([]int, lb+1)
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if t := prev2[j-2] + 1; t < m {
					m = t
				}
			}
			cur[j] = m
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[lb]
}

// similarity maps edit distance onto [0,1] where 1 is identical.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	return 1 - float64(damerauLevenshtein(a, b))/float64(max)
}

// tokenSetSimilarity is order-insensitive: it splits both strings into
// token sets and scores the shared core against each remainder, taking
// the best. "HEATHER GREY MELANGE" and "GREY HEATHER" come out far
// higher than raw edit distance would allow.
func tokenSetSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var shared, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	core := strings.Join(shared, " ")
	sa := strings.TrimSpace(core + " " + strings.Join(onlyA, " "))
	sb := strings.TrimSpace(core + " " + strings.Join(onlyB, " "))

	best := similarity(sa, sb)
	if core != "" {
		if s := similarity(core, sa); s > best {
			best = s
		}
		if s := similarity(core, sb); s > best {
			best = s
		}
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}

// Similarity is the engine's string comparator: the better of direct
// edit-distance similarity and token-set similarity over normalized
// inputs. Callers are expected to pass already-normalized strings.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	direct := similarity(a, b)
	tokens := tokenSetSimilarity(a, b)
	if tokens > direct {
		return tokens
	}
	return direct
}
