package detect

// Directive catalogue: advice and instruction constructions that the
// companion must never produce.
var directivePhrases = []string{
	`\byou should\b`,
	`\bi recommend\b`,
	`\btry doing\b`,
	`\btry to\b`,
	`\byou need to\b`,
	`\byou must\b`,
	`\byou have to\b`,
	`\bwhy don'?t you\b`,
	`\bhave you considered\b`,
	`\bit might help to\b`,
	`\bone thing you could do\b`,
	`\bperhaps you could\b`,
	`\bmaybe you should\b`,
	`\bi suggest\b`,
	`\bi advise\b`,
	`\bthe best thing to do\b`,
	`\byou could try\b`,
	`\bhere'?s what (you|I) (can|should|would)\b`,
	`\bmy advice\b`,
	`\blet me (suggest|recommend)\b`,
	`\bwhat you (should|need to|must) do\b`,
	`\bstep \d+[:.]`,
	`\bfirst,?\s+(?:you |do |try )\b`,
	`\bhere are (?:some |a few )?(?:tips|steps|suggestions|recommendations)\b`,

	`\bيجب عليك\b`,
	`\bأنصحك\b`,
	`\bحاول أن\b`,
	`\bعليك أن\b`,
	`\bأقترح\b`,
	`\bمن الأفضل\b`,
	`\bالخطوة الأولى\b`,
}

// Crisis catalogue: self-harm and suicidal-ideation indicators in user
// messages. Any match triggers crisis handling.
var crisisPhrases = []string{
	`\b(want to |going to |thinking about |plan to )?(kill myself|end my life|end it all)\b`,
	`\b(i don'?t want to (live|be alive|exist)|no reason to live)\b`,
	`\bsuicid(e|al)\b`,
	`\bself[- ]?harm\b`,
	`\bcutting myself\b`,
	`\bhurting myself\b`,
	`\bwant to die\b`,
	`\bbetter off dead\b`,
	`\bwish i (was|were) dead\b`,
	`\bno point in living\b`,
	`\bcan'?t go on\b`,
	`\bend it tonight\b`,
	`\btake my (own )?life\b`,
	`\boverdose\b`,

	`\bأريد أن أموت\b`,
	`\bانتحار\b`,
	`\bأؤذي نفسي\b`,
	`\bلا أريد أن أعيش\b`,
	`\bأقتل نفسي\b`,
	`\bلا فائدة من الحياة\b`,
}

// TeachingPhrases flag lecturing in Socratic mode.
var TeachingPhrases = []string{
	"the answer is",
	"actually,",
	"let me explain",
	"here's how it works",
	"it works like this",
	"the definition",
	"basically,",
	"in other words",
}

var (
	// Directives matches advice-giving language in generated replies.
	Directives = MustCatalogue("directives", directivePhrases)
	// Crisis matches distress indicators in user messages.
	Crisis = MustCatalogue("crisis", crisisPhrases)
	// Teaching matches lecturing phrases.
	Teaching = NewKeywords(TeachingPhrases...)
)

// DetectCrisis scans a user message for crisis indicators.
func DetectCrisis(text string) []string { return Crisis.Match(text) }
