package question

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// Template is one question skeleton. "{offering}" and "{brand}" expand at
// panel build time; discovery skeletons must not use "{brand}".
type Template struct {
	Text            string `yaml:"text"`
	UserIntent      string `yaml:"user_intent"`
	ExpectedMention string `yaml:"expected_mention,omitempty"`
}

// Templates holds the per-category question skeletons used for fallback
// panels, padding, and discovery scrubbing.
type Templates map[model.IntentCategory][]Template

func (t Template) question(cat model.IntentCategory, brand, offering string) model.Question {
	if brand == "" {
		brand = "this company"
	}
	expand := func(s string) string {
		s = strings.ReplaceAll(s, "{offering}", offering)
		return strings.ReplaceAll(s, "{brand}", brand)
	}
	return model.Question{
		Text:            expand(t.Text),
		IntentCategory:  cat,
		UserIntent:      expand(t.UserIntent),
		ExpectedMention: expand(t.ExpectedMention),
		Relevance:       0.5,
	}
}

// DefaultTemplates returns the built-in skeletons, three per category.
func DefaultTemplates() Templates {
	return Templates{
		model.IntentDiscovery: {
			{Text: "What are the best {offering} providers?", UserIntent: "Finding options in the category", ExpectedMention: "Appears in the candidate list"},
			{Text: "Which {offering} should a small team look at first?", UserIntent: "Shortlisting options", ExpectedMention: "Named as a strong starting point"},
			{Text: "Who are the leading vendors for {offering}?", UserIntent: "Mapping the market", ExpectedMention: "Listed among the leaders"},
		},
		model.IntentComparison: {
			{Text: "How does {brand} compare to other {offering} vendors?", UserIntent: "Weighing alternatives", ExpectedMention: "Differentiators stated accurately"},
			{Text: "What are the main alternatives to {brand}?", UserIntent: "Building a comparison set", ExpectedMention: "Positioned fairly against rivals"},
			{Text: "Is {brand} better value than its competitors?", UserIntent: "Comparing price to value", ExpectedMention: "Pricing strengths acknowledged"},
		},
		model.IntentTrust: {
			{Text: "Is {brand} secure and reliable enough for business use?", UserIntent: "Checking trustworthiness", ExpectedMention: "Security posture described accurately"},
			{Text: "Does {brand} handle customer data responsibly?", UserIntent: "Assessing data practices", ExpectedMention: "Compliance signals mentioned"},
			{Text: "What do customers say about {brand}?", UserIntent: "Looking for social proof", ExpectedMention: "Positive track record cited"},
		},
		model.IntentUseCase: {
			{Text: "What should I look for in a {offering}?", UserIntent: "Understanding requirements", ExpectedMention: "Criteria align with the company's strengths"},
			{Text: "Can a {offering} work for a growing mid-size company?", UserIntent: "Checking fit for scale", ExpectedMention: "Named as a fit for that segment"},
			{Text: "How do teams typically roll out a {offering}?", UserIntent: "Planning adoption", ExpectedMention: "Onboarding approach reflected"},
		},
		model.IntentDecision: {
			{Text: "How do I choose a {offering} solution?", UserIntent: "Making the final call", ExpectedMention: "Selection criteria match the company"},
			{Text: "Should I pick {brand} for my business?", UserIntent: "Validating a shortlist choice", ExpectedMention: "Recommended with honest caveats"},
			{Text: "What questions should I ask before buying a {offering}?", UserIntent: "De-risking the purchase", ExpectedMention: "The company's answers hold up"},
		},
	}
}

// LoadTemplates reads a YAML override file keyed by intent category. A
// category present in the file replaces that category's defaults; absent
// categories keep them.
func LoadTemplates(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "question: read template file")
	}

	var raw map[string][]Template
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "question: unmarshal template file")
	}

	merged := DefaultTemplates()
	for key, list := range raw {
		cat := model.IntentCategory(strings.ToLower(strings.TrimSpace(key)))
		if !model.ValidIntentCategory(cat) {
			return nil, eris.Errorf("question: unknown category %q in template file", key)
		}
		if len(list) == 0 {
			return nil, eris.Errorf("question: category %q has no templates", key)
		}
		for _, tpl := range list {
			if strings.TrimSpace(tpl.Text) == "" {
				return nil, eris.Errorf("question: category %q has a template with no text", key)
			}
			if cat == model.IntentDiscovery && strings.Contains(tpl.Text, "{brand}") {
				return nil, eris.Errorf("question: discovery template %q names the brand", tpl.Text)
			}
		}
		merged[cat] = list
	}
	return merged, nil
}
