// Package memory ranks caller-supplied past messages against a query
// embedding and renders the winners as a prompt block. It owns no storage.
package memory

import "time"

const (
	DefaultTopK           = 5
	DefaultItemCharBudget = 300
	// MaxTopK bounds request-supplied top_k values.
	MaxTopK = 50
)

// StoredItem is one past message with its embedding, supplied by the caller.
type StoredItem struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Embedding []float32  `json:"embedding"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Match is a ranked StoredItem. Rank starts at 1.
type Match struct {
	Item       StoredItem `json:"item"`
	Similarity float64    `json:"similarity"`
	Rank       int        `json:"rank"`
}

// RankOptions controls Rank. A nil Threshold disables filtering; TopK < 1
// falls back to DefaultTopK.
type RankOptions struct {
	TopK      int
	Threshold *float64
}

// Threshold is a helper for building RankOptions literals.
func Threshold(v float64) *float64 { return &v }
