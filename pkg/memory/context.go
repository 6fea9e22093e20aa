package memory

import (
	"strings"
)

const contextHeader = "[Relevant context from past conversations — weave in gently, never list them]"

// BuildContext renders matches as a single system block. Each item's
// content is cut to budget runes (DefaultItemCharBudget when budget < 1).
// No matches yields "", which callers treat as "omit the block".
func BuildContext(matches []Match, budget int) string {
	if len(matches) == 0 {
		return ""
	}
	if budget < 1 {
		budget = DefaultItemCharBudget
	}

	var sb strings.Builder
	sb.WriteString(contextHeader)
	for _, m := range matches {
		label := "You responded"
		if m.Item.Role == "user" {
			label = "User shared"
		}
		sb.WriteString("\n- ")
		sb.WriteString(label)
		sb.WriteString(`: "`)
		sb.WriteString(truncateRunes(m.Item.Content, budget))
		sb.WriteString(`"`)
	}
	return sb.String()
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
