package memory

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{2, 2}, []float32{1, 1}, 1},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, []float32{1}, 0},
		{"length mismatch uses prefix", []float32{1, 0, 5}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRank_ThresholdExcludesOrthogonal(t *testing.T) {
	items := []StoredItem{
		{Role: "user", Content: "A", Embedding: []float32{1, 0}},
		{Role: "user", Content: "B", Embedding: []float32{0, 1}},
	}
	got := Rank([]float32{1, 0}, items, RankOptions{TopK: 5, Threshold: Threshold(0.5)})
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Item.Content)
	assert.Equal(t, 1.0, got[0].Similarity)
	assert.Equal(t, 1, got[0].Rank)
}

func TestRank_ThresholdIsInclusive(t *testing.T) {
	items := []StoredItem{{Content: "exact", Embedding: []float32{1, 0}}}
	got := Rank([]float32{1, 0}, items, RankOptions{Threshold: Threshold(1.0)})
	require.Len(t, got, 1, "a score equal to the threshold must be kept")
}

func TestRank_NoThresholdKeepsEverything(t *testing.T) {
	items := []StoredItem{
		{Content: "A", Embedding: []float32{1, 0}},
		{Content: "B", Embedding: []float32{-1, 0}},
	}
	got := Rank([]float32{1, 0}, items, RankOptions{})
	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got[1].Similarity, "negative similarity is clamped")
}

func TestRank_StableTiesAndIdempotent(t *testing.T) {
	items := []StoredItem{
		{Content: "first", Embedding: []float32{1, 1}},
		{Content: "top", Embedding: []float32{1, 0}},
		{Content: "second", Embedding: []float32{1, 1}},
		{Content: "third", Embedding: []float32{1, 1}},
	}
	query := []float32{1, 0}
	first := Rank(query, items, RankOptions{TopK: 10})
	contents := make([]string, len(first))
	for i, m := range first {
		contents[i] = m.Item.Content
	}
	if diff := cmp.Diff([]string{"top", "first", "second", "third"}, contents); diff != "" {
		t.Fatalf("rank order mismatch (-want +got):\n%s", diff)
	}

	again := Rank(query, items, RankOptions{TopK: 10})
	if diff := cmp.Diff(first, again); diff != "" {
		t.Fatalf("re-ranking changed output (-first +again):\n%s", diff)
	}
}

func TestRank_TopKMonotonicPrefix(t *testing.T) {
	items := make([]StoredItem, 0, 8)
	for i := 0; i < 8; i++ {
		items = append(items, StoredItem{Content: string(rune('a' + i)), Embedding: []float32{float32(i), float32(8 - i)}})
	}
	query := []float32{1, 0.3}
	for k := 1; k < 8; k++ {
		small := Rank(query, items, RankOptions{TopK: k})
		large := Rank(query, items, RankOptions{TopK: k + 1})
		require.Len(t, small, k)
		if diff := cmp.Diff(small, large[:k]); diff != "" {
			t.Fatalf("top_k=%d is not a prefix of top_k=%d:\n%s", k, k+1, diff)
		}
	}
}

func TestRank_DefaultTopK(t *testing.T) {
	items := make([]StoredItem, 9)
	for i := range items {
		items[i] = StoredItem{Embedding: []float32{1, float32(i)}}
	}
	assert.Len(t, Rank([]float32{1, 0}, items, RankOptions{TopK: 0}), DefaultTopK)
}

func TestRank_EmptyCandidates(t *testing.T) {
	assert.Empty(t, Rank([]float32{1, 0}, nil, RankOptions{TopK: 3}))
}

func TestRounded(t *testing.T) {
	in := []Match{{Similarity: 0.123456}}
	out := Rounded(in)
	assert.Equal(t, 0.1235, out[0].Similarity)
	assert.Equal(t, 0.123456, in[0].Similarity, "input must not be modified")
}
