package knowledge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// promptPageBudget caps how much of each page goes into the prompt.
const promptPageBudget = 4000

// synthesisSystemText constrains the model to the crawled content. The
// output contract has to match parseKR exactly.
const synthesisSystemText = `You are a brand analyst building a knowledge representation from a company's website content.

Rules:
- Use ONLY the supplied website content. Never invent customer names, funding amounts, statistics, partnerships, or URLs.
- You may infer business model, audience, and positioning from page structure and language; mark such fields "partial" in field_confidence.
- A field with no supporting content gets your best neutral inference and "missing" in field_confidence.
- Never write placeholder text such as "please describe" or "not available".
- Return ONLY one valid JSON object matching the requested schema, with no surrounding prose.`

const synthesisPromptTmpl = `Domain: %s

WEBSITE CONTENT:
%s

Build the brand knowledge representation as JSON:

{
  "overview": "2-3 sentences: what this company is, what it does, and its core purpose.",
  "products_and_services": "The offerings and how they are delivered.",
  "target_customers": "Who the company serves, as specifically as the content supports.",
  "positioning": "How the company positions itself against alternatives.",
  "brand_tone": "The site's voice in a few words, e.g. 'professional yet approachable'.",
  "preferred_words": ["words the brand visibly favors"],
  "avoided_words": ["words the brand visibly avoids"],
  "dos": ["writing guidelines the brand follows"],
  "donts": ["writing patterns the brand avoids"],
  "field_confidence": {"overview": "verified|partial|missing", "products_and_services": "...", "target_customers": "...", "positioning": "...", "brand_tone": "..."}
}

Requirements:
1. Every field carries substantive content. No placeholders, no "N/A".
2. Write complete sentences; at least 100 words across the text fields.
3. Output ONLY the JSON object.%s`

// buildSynthesisPrompt renders the crawl bundle into the user prompt. Pinned
// fields are included as authoritative context so the generated fields stay
// consistent with them.
func buildSynthesisPrompt(bundle *model.CrawlBundle, pinned map[string]string) string {
	var b strings.Builder
	for _, p := range bundle.Pages {
		text := p.Text
		if len(text) > promptPageBudget {
			text = text[:promptPageBudget]
		}
		fmt.Fprintf(&b, "--- %s: %s (%s) ---\n", strings.ToUpper(string(p.Kind)), p.Title, p.URL)
		if len(p.Headings) > 0 {
			fmt.Fprintf(&b, "Headings: %s\n", strings.Join(p.Headings, " | "))
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	return fmt.Sprintf(synthesisPromptTmpl,
		bundle.Domain,
		strings.TrimSpace(b.String()),
		pinnedContext(pinned),
	)
}

// pinnedContext renders user-authored fields in a fixed order so identical
// inputs produce identical prompts.
func pinnedContext(pinned map[string]string) string {
	if len(pinned) == 0 {
		return ""
	}
	names := make([]string, 0, len(pinned))
	for name := range pinned {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("\n\nAUTHORITATIVE FIELDS (supplied by the brand owner; reproduce them verbatim in your output and keep every other field consistent with them):\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, pinned[name])
	}
	return strings.TrimRight(b.String(), "\n")
}
