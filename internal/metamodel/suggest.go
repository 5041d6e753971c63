package metamodel

import "strings"

// CloseMatches is closeMatches exported for callers outside this package
// (the DOMLR compiler's class-name resolution) that need the same
// similarity heuristic for a pool not keyed by one class's local names.
func CloseMatches(name string, pool []string, n int) []string {
	return closeMatches(name, pool, n)
}

// closeMatches returns up to n candidates from pool most similar to name,
// most similar first, using a normalized Levenshtein edit distance with a
// substring bonus. Grounded in the pack's entity-resolution heuristic
// (hedge-fund-investor-source/web/internal/resolver/entity_resolver.go's
// calculateSimilarity/levenshteinDistance), generalized here to metamodel
// name resolution.
func closeMatches(name string, pool []string, n int) []string {
	type scored struct {
		name  string
		score float64
	}
	candidates := make([]scored, 0, len(pool))
	for _, p := range pool {
		s := similarity(name, p)
		if s >= 0.4 {
			candidates = append(candidates, scored{p, s})
		}
	}
	// simple insertion sort, descending by score; pools are small (one
	// class's local attribute/association names), so O(n^2) is fine.
	for i := 1; i < len(candidates); i++ {
		j := i
		for j > 0 && candidates[j-1].score < candidates[j].score {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
			j--
		}
	}
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if strings.EqualFold(a, b) {
		return 1
	}
	dist := levenshtein(strings.ToLower(a), strings.ToLower(b))
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	sim := 1 - float64(dist)/float64(maxLen)
	al, bl := strings.ToLower(a), strings.ToLower(b)
	if strings.Contains(al, bl) || strings.Contains(bl, al) {
		sim *= 1.2
		if sim > 1 {
			sim = 1
		}
	}
	if sim < 0 {
		sim = 0
	}
	return sim
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
