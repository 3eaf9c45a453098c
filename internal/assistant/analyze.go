package assistant

import (
	"strings"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// Keyword lists for the lightweight answer analysis. Matching is substring
// based over the lowercased answer; a sentiment tie reads as neutral.
var (
	positiveWords = []string{"best", "excellent", "great", "leading", "top", "recommended", "popular", "trusted"}
	negativeWords = []string{"avoid", "issue", "problem", "concern", "limited", "expensive", "difficult"}

	recommendationWords = []string{"recommend", "suggest", "consider", "try"}
)

// analyzeAnswer fills the mention analysis on a from its text.
func analyzeAnswer(a *model.Answer, brand string, competitors []string) {
	lower := strings.ToLower(a.Text)

	if brand != "" && strings.Contains(lower, strings.ToLower(brand)) {
		a.MentionsBrand = true
		a.MentionPosition = mentionSentence(a.Text, brand)
	}

	counts := make(map[string]int, len(competitors))
	for _, name := range competitors {
		if name == "" || strings.EqualFold(name, brand) {
			continue
		}
		if n := strings.Count(lower, strings.ToLower(name)); n > 0 {
			counts[name] = n
		}
	}
	if len(counts) > 0 {
		a.MentionsCompetitors = counts
	}

	a.Sentiment = keywordSentiment(lower)
	a.ContainsRecommendation = containsAny(lower, recommendationWords)
}

// mentionRate is the share of answers on platform p that name the brand.
func mentionRate(answers []model.Answer, p model.Platform) float64 {
	total, mentions := 0, 0
	for _, a := range answers {
		if a.Platform != p {
			continue
		}
		total++
		if a.MentionsBrand {
			mentions++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(mentions) / float64(total)
}

// mentionSentence returns the 1-based index of the first sentence naming
// the brand, 0 when none does.
func mentionSentence(text, brand string) int {
	needle := strings.ToLower(brand)
	for i, s := range splitSentences(text) {
		if strings.Contains(strings.ToLower(s), needle) {
			return i + 1
		}
	}
	return 0
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func keywordSentiment(lower string) model.Sentiment {
	pos := countPresent(lower, positiveWords)
	neg := countPresent(lower, negativeWords)
	switch {
	case pos > neg:
		return model.SentimentPositive
	case neg > pos:
		return model.SentimentNegative
	}
	return model.SentimentNeutral
}

// countPresent counts how many of the listed words appear at least once.
func countPresent(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
