package memory

import (
	"math"
	"sort"
)

// CosineSimilarity returns dot(a,b)/(|a||b|). Empty or zero-norm vectors
// score 0. Vectors of different length are compared over the shorter prefix.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}

// Rank scores every candidate against query, drops those below the
// threshold (a score equal to the threshold is kept), sorts by descending
// similarity with ties in input order and keeps the first TopK. Negative
// similarities are clamped to 0, so Match.Similarity lies in [0, 1].
func Rank(query []float32, candidates []StoredItem, opts RankOptions) []Match {
	topK := opts.TopK
	if topK < 1 {
		topK = DefaultTopK
	}

	scored := make([]Match, 0, len(candidates))
	for _, item := range candidates {
		sim := math.Max(0, CosineSimilarity(query, item.Embedding))
		if opts.Threshold != nil && sim < *opts.Threshold {
			continue
		}
		scored = append(scored, Match{Item: item, Similarity: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored
}

// Rounded returns a copy of matches with similarity rounded to 4 decimal
// places for wire output.
func Rounded(matches []Match) []Match {
	out := make([]Match, len(matches))
	for i, m := range matches {
		m.Similarity = math.Round(m.Similarity*10000) / 10000
		out[i] = m
	}
	return out
}
