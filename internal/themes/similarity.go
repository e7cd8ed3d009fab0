package themes

import "strings"

// TokenSetJaccard computes the Jaccard ratio of the lower-cased token sets of
// two strings. Pure: kept separate from hierarchy traversal so it can be
// tested on its own.
func TokenSetJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,;:!?()[]\"'")] = struct{}{}
	}
	delete(set, "")
	return set
}
