package evaluation

import "strings"

// Score is one ROUGE precision/recall/F triple.
type Score struct {
	Precision float64 `json:"p"`
	Recall    float64 `json:"r"`
	F         float64 `json:"f"`
}

// RougeScores holds mean F-scores.
type RougeScores struct {
	Rouge1 float64 `json:"rouge-1"`
	Rouge2 float64 `json:"rouge-2"`
	RougeL float64 `json:"rouge-l"`
}

// Rouge scores generated against reference after lower-casing and
// tokenising both.
func Rouge(generated, reference string) (rouge1, rouge2, rougeL Score) {
	hyp := Tokenize(strings.ToLower(generated))
	ref := Tokenize(strings.ToLower(reference))
	return rougeN(hyp, ref, 1), rougeN(hyp, ref, 2), rougeLCS(hyp, ref)
}

// rougeN compares the sets of distinct n-grams of both token lists.
func rougeN(hyp, ref []string, n int) Score {
	hypGrams := ngrams(hyp, n)
	refGrams := ngrams(ref, n)
	if len(hypGrams) == 0 || len(refGrams) == 0 {
		return Score{}
	}

	overlap := 0
	for g := range hypGrams {
		if _, ok := refGrams[g]; ok {
			overlap++
		}
	}
	return newScore(float64(overlap)/float64(len(hypGrams)), float64(overlap)/float64(len(refGrams)))
}

func rougeLCS(hyp, ref []string) Score {
	if len(hyp) == 0 || len(ref) == 0 {
		return Score{}
	}
	lcs := float64(lcsLength(hyp, ref))
	return newScore(lcs/float64(len(hyp)), lcs/float64(len(ref)))
}

func newScore(p, r float64) Score {
	s := Score{Precision: p, Recall: r}
	if p+r > 0 {
		s.F = 2 * p * r / (p + r)
	}
	return s
}

func ngrams(tokens []string, n int) map[string]struct{} {
	out := make(map[string]struct{})
	for i := 0; i+n <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+n], " ")] = struct{}{}
	}
	return out
}

func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
