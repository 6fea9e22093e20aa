package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mindglow/mindglow/pkg/detect"
	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/mindglow/mindglow/pkg/persona"
	"github.com/mindglow/mindglow/pkg/providers"
)

// DefaultResourceKey is the mandatory fallback entry of a ResourceTable.
const DefaultResourceKey = "default"

const crisisAddition = "\n\n⚠️ CRISIS DETECTED: The user may be in distress. " +
	"Respond with deep compassion and warmth. Acknowledge their pain. " +
	"Do NOT give advice. Simply hold space and let them know they matter. " +
	"Crisis resources will be attached separately."

// ResourceTable maps a language code to crisis resource text.
type ResourceTable map[string]string

// DefaultResources returns the built-in table.
func DefaultResources() ResourceTable {
	return ResourceTable{
		"en": "💛 I hear you, and what you're feeling matters deeply. You don't have to go through this alone.\n\n" +
			"**Please reach out to someone who can help right now:**\n" +
			"• **988 Suicide & Crisis Lifeline**: Call or text **988** (US)\n" +
			"• **Crisis Text Line**: Text **HELLO** to **741741**\n" +
			"• **International Association for Suicide Prevention**: https://www.iasp.info/resources/Crisis_Centres/\n\n" +
			"You are not alone. 💛",
		"ar": "💛 أسمعك، وما تشعر به مهم جدًا. لا يجب أن تمر بهذا وحدك.\n\n" +
			"**يرجى التواصل مع شخص يمكنه المساعدة الآن:**\n" +
			"• **خط مساعدة الأزمات**: اتصل على الرقم المحلي للطوارئ النفسية\n" +
			"• **الجمعية الدولية لمنع الانتحار**: https://www.iasp.info/resources/Crisis_Centres/\n\n" +
			"أنت لست وحدك. 💛",
		DefaultResourceKey: "💛 What you're feeling matters. Please reach out to a crisis helpline in your area.\n" +
			"**International Association for Suicide Prevention**: https://www.iasp.info/resources/Crisis_Centres/\n" +
			"You are not alone. 💛",
	}
}

// Lookup returns the entry for lang, or the default entry. It never fails.
func (t ResourceTable) Lookup(lang string) string {
	if text, ok := t[detect.NormalizeLanguage(lang)]; ok && text != "" {
		return text
	}
	if text, ok := t[DefaultResourceKey]; ok && text != "" {
		return text
	}
	return DefaultResources()[DefaultResourceKey]
}

// LoadResources overlays a YAML language→text file on the built-in table.
// An empty path returns the built-in table.
func LoadResources(path string) (ResourceTable, error) {
	table := DefaultResources()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crisis resources: %w", err)
	}
	overlay := map[string]string{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse crisis resources %s: %w", path, err)
	}
	for lang, text := range overlay {
		key := strings.ToLower(strings.TrimSpace(lang))
		if key != DefaultResourceKey {
			key = detect.NormalizeLanguage(key)
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("crisis resources %s: entry %q is empty", path, lang)
		}
		table[key] = text
	}
	if strings.TrimSpace(table[DefaultResourceKey]) == "" {
		return nil, fmt.Errorf("crisis resources %s: missing %q entry", path, DefaultResourceKey)
	}
	return table, nil
}

// CrisisOutcome is what the crisis branch produces before embeddings.
type CrisisOutcome struct {
	Reply      string
	Resources  string
	Indicators []string
	Log        CrisisLog
}

// CrisisHandler answers a message that tripped the crisis catalogue. It
// calls the model exactly once and skips the directive filter.
type CrisisHandler struct {
	Completer providers.Completer
	Options   providers.CompletionOptions
	Builder   *ContextBuilder
	Resources ResourceTable
	Now       func() time.Time
}

// Handle logs the indicators, makes the single completion and returns the
// reply together with the resource text for lang.
func (h *CrisisHandler) Handle(ctx context.Context, req ChatRequest, lang string, indicators []string, memoryContext string) (CrisisOutcome, error) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	resources := h.Resources
	if resources == nil {
		resources = DefaultResources()
	}

	log := CrisisLog{
		ID:          uuid.NewString(),
		Timestamp:   now().UTC(),
		UserID:      req.User.UserID,
		UserMessage: req.Message,
		Indicators:  indicators,
		Language:    lang,
	}
	logger.WarnCF("crisis", "Crisis indicators detected",
		map[string]any{
			"user_id":    req.User.UserID,
			"indicators": len(indicators),
			"language":   lang,
			"persona":    req.Persona.String(),
		})

	messages := h.Builder.BuildMessages(PromptInput{
		Contract:      CrisisContract(req.Persona),
		PastSummaries: req.PastSummaries,
		MemoryContext: memoryContext,
		History:       req.History,
		UserMessage:   req.Message,
		Language:      lang,
	})
	reply, err := h.Completer.Complete(ctx, messages, h.Options)
	if err != nil {
		return CrisisOutcome{}, fmt.Errorf("generate crisis reply: %w", err)
	}

	return CrisisOutcome{
		Reply:      reply,
		Resources:  resources.Lookup(lang),
		Indicators: indicators,
		Log:        log,
	}, nil
}

// CrisisContract is the persona contract followed by the compassion-only
// instruction.
func CrisisContract(p persona.Persona) string {
	return p.Contract() + crisisAddition
}
