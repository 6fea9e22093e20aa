package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindglow/mindglow/pkg/agent"
	"github.com/mindglow/mindglow/pkg/persona"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndListViolations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordViolation(ctx, agent.ViolationLog{
		ID:                  "v1",
		Timestamp:           base,
		Persona:             persona.Reflect,
		UserID:              "u1",
		OriginalResponse:    "You should rest.",
		FilteredReason:      "you should",
		RegeneratedResponse: "You must rest.",
		Violations:          []string{"you must"},
	}))
	require.NoError(t, s.RecordViolation(ctx, agent.ViolationLog{
		ID:        "v2",
		Timestamp: base.Add(time.Hour),
		Persona:   persona.InnerLearning,
		UserID:    "u2",
	}))

	all, err := s.ListViolations(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "v2", all[0].ID, "newest first")
	assert.Equal(t, persona.InnerLearning, all[0].Persona)
	assert.Equal(t, []string{}, all[0].Violations)

	mine, err := s.ListViolations(ctx, Query{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "You should rest.", mine[0].OriginalResponse)
	assert.Equal(t, []string{"you must"}, mine[0].Violations)
	assert.True(t, mine[0].Timestamp.Equal(base))

	recent, err := s.ListViolations(ctx, Query{Since: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestStore_RecordAndListCrises(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordCrisis(ctx, agent.CrisisLog{
		ID:          "c1",
		Timestamp:   time.Now(),
		UserID:      "u1",
		UserMessage: "I want to end my life",
		Indicators:  []string{"kill myself"},
		Language:    "en",
	}))

	logs, err := s.ListCrises(ctx, Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, []string{"kill myself"}, logs[0].Indicators)
	assert.Equal(t, "en", logs[0].Language)

	err = s.RecordCrisis(ctx, agent.CrisisLog{ID: "c1", UserMessage: "dup"})
	assert.Error(t, err, "duplicate ids are rejected")
}

func TestStore_StatsAndPurge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-400 * 24 * time.Hour)

	require.NoError(t, s.RecordViolation(ctx, agent.ViolationLog{ID: "old", Timestamp: old}))
	require.NoError(t, s.RecordCrisis(ctx, agent.CrisisLog{ID: "old", Timestamp: old, UserMessage: "x"}))
	require.NoError(t, s.RecordCrisis(ctx, agent.CrisisLog{ID: "new", Timestamp: time.Now(), UserMessage: "y"}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Violations: 1, Crises: 2}, st)

	n, err := s.PurgeBefore(ctx, time.Now().Add(-365*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Violations: 0, Crises: 1}, st)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordCrisis(context.Background(), agent.CrisisLog{ID: "c1", UserMessage: "m"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Crises)
}

func TestStore_ImplementsSinkForPipeline(t *testing.T) {
	var sink agent.AuditSink = openTestStore(t)
	assert.NoError(t, sink.RecordViolation(context.Background(), agent.ViolationLog{ID: "v"}))
}
