package memory

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildContext_EmptyIsEmptyString(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil, 300))
	assert.Equal(t, "", BuildContext([]Match{}, 300))
}

func TestBuildContext_RendersRoleLabels(t *testing.T) {
	got := BuildContext([]Match{
		{Item: StoredItem{Role: "user", Content: "My sister moved away"}},
		{Item: StoredItem{Role: "assistant", Content: "What did that leave behind?"}},
	}, 300)
	want := "[Relevant context from past conversations — weave in gently, never list them]\n" +
		"- User shared: \"My sister moved away\"\n" +
		"- You responded: \"What did that leave behind?\""
	assert.Equal(t, want, got)
}

func TestBuildContext_TruncatesPerItemBudget(t *testing.T) {
	long := strings.Repeat("ب", 500)
	got := BuildContext([]Match{{Item: StoredItem{Role: "user", Content: long}}}, 300)
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 2)
	quoted := strings.TrimSuffix(strings.TrimPrefix(lines[1], `- User shared: "`), `"`)
	assert.Equal(t, 300, utf8.RuneCountInString(quoted))
	assert.True(t, utf8.ValidString(got))
}

func TestBuildContext_DefaultBudget(t *testing.T) {
	long := strings.Repeat("x", 400)
	got := BuildContext([]Match{{Item: StoredItem{Role: "user", Content: long}}}, 0)
	assert.Contains(t, got, strings.Repeat("x", DefaultItemCharBudget)+`"`)
	assert.NotContains(t, got, strings.Repeat("x", DefaultItemCharBudget+1))
}
