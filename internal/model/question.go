package model

import "time"

// IntentCategory classifies what a prospective customer is trying to do when
// they ask an AI assistant a question.
type IntentCategory string

const (
	IntentDiscovery  IntentCategory = "discovery"
	IntentComparison IntentCategory = "comparison"
	IntentTrust      IntentCategory = "trust"
	IntentUseCase    IntentCategory = "use-case"
	IntentDecision   IntentCategory = "decision"
)

// IntentCategories lists every category a panel must cover.
func IntentCategories() []IntentCategory {
	return []IntentCategory{
		IntentDiscovery,
		IntentComparison,
		IntentTrust,
		IntentUseCase,
		IntentDecision,
	}
}

// ValidIntentCategory reports whether c is a recognized category.
func ValidIntentCategory(c IntentCategory) bool {
	switch c {
	case IntentDiscovery, IntentComparison, IntentTrust, IntentUseCase, IntentDecision:
		return true
	}
	return false
}

// PanelSize is the fixed number of questions asked per run.
const PanelSize = 15

// Question is one panel entry: a realistic customer question directed at a
// single assistant platform. Discovery questions describe a need without
// naming the brand; the other categories may name it.
type Question struct {
	Text            string         `json:"text"`
	IntentCategory  IntentCategory `json:"intent_category"`
	TargetPlatform  Platform       `json:"target_platform"`
	UserIntent      string         `json:"user_intent"`
	ExpectedMention string         `json:"expected_mention,omitempty"`
	Relevance       float64        `json:"relevance"`
}

// QuestionPanel is the full set of questions for one run.
type QuestionPanel struct {
	Questions []Question `json:"questions"`
	// Fallback is true when the panel came from templates instead of
	// generation.
	Fallback    bool      `json:"fallback,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// CategoryCounts returns how many questions carry each intent category.
func (p *QuestionPanel) CategoryCounts() map[IntentCategory]int {
	counts := make(map[IntentCategory]int, len(IntentCategories()))
	for _, q := range p.Questions {
		counts[q.IntentCategory]++
	}
	return counts
}

// PlatformCounts returns how many questions target each platform.
func (p *QuestionPanel) PlatformCounts() map[Platform]int {
	counts := make(map[Platform]int, len(Platforms()))
	for _, q := range p.Questions {
		counts[q.TargetPlatform]++
	}
	return counts
}

// ByPlatform groups panel indices by target platform, preserving panel order.
func (p *QuestionPanel) ByPlatform() map[Platform][]int {
	groups := make(map[Platform][]int, len(Platforms()))
	for i, q := range p.Questions {
		groups[q.TargetPlatform] = append(groups[q.TargetPlatform], i)
	}
	return groups
}
