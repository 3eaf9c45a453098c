package model

import "time"

// Platform identifies a conversational AI assistant the panel queries.
type Platform string

const (
	PlatformChatGPT    Platform = "chatgpt"
	PlatformClaude     Platform = "claude"
	PlatformGemini     Platform = "gemini"
	PlatformPerplexity Platform = "perplexity"
)

// Platforms lists every assistant platform a run covers.
func Platforms() []Platform {
	return []Platform{PlatformChatGPT, PlatformClaude, PlatformGemini, PlatformPerplexity}
}

// ValidPlatform reports whether p is a recognized platform.
func ValidPlatform(p Platform) bool {
	switch p {
	case PlatformChatGPT, PlatformClaude, PlatformGemini, PlatformPerplexity:
		return true
	}
	return false
}

// Sentiment classifies how an answer talks about the brand.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Answer is one platform's response to one panel question, plus the mention
// analysis extracted from it.
type Answer struct {
	// QuestionRef is the panel index of the question this answers.
	QuestionRef int      `json:"question_ref"`
	Platform    Platform `json:"platform"`
	Text        string   `json:"text"`

	MentionsBrand bool `json:"mentions_brand"`
	// MentionPosition is the 1-based sentence index of the first brand
	// mention, 0 when the brand never appears.
	MentionPosition        int            `json:"mention_position"`
	MentionsCompetitors    map[string]int `json:"mentions_competitors,omitempty"`
	Sentiment              Sentiment      `json:"sentiment"`
	ContainsRecommendation bool           `json:"contains_recommendation"`

	// Simulated is true when the answer came from the simulation path
	// instead of a live platform call.
	Simulated bool `json:"simulated"`
}

// AnswerSet holds every answer collected on a run, one per panel question.
type AnswerSet struct {
	Answers     []Answer  `json:"answers"`
	CollectedAt time.Time `json:"collected_at"`
}

// ByPlatform returns the answers produced by one platform, in panel order.
func (s *AnswerSet) ByPlatform(p Platform) []Answer {
	var out []Answer
	for _, a := range s.Answers {
		if a.Platform == p {
			out = append(out, a)
		}
	}
	return out
}

// SimulatedCount returns how many answers came from simulation.
func (s *AnswerSet) SimulatedCount() int {
	n := 0
	for _, a := range s.Answers {
		if a.Simulated {
			n++
		}
	}
	return n
}
