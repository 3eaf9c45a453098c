package question

import (
	"strings"
	"time"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// buildPanel normalizes generated questions into a valid panel: fixed size,
// round-robin platform assignment, full category coverage, no brand names in
// discovery questions.
func (g *Generator) buildPanel(questions []model.Question, brand string, kr *model.KnowledgeRepresentation) model.QuestionPanel {
	offering := primaryOffering(kr)

	qs := dedupe(questions)
	if len(qs) > model.PanelSize {
		qs = qs[:model.PanelSize]
	}
	qs = g.pad(qs, brand, offering)

	assignPlatforms(qs)
	fillBlankCategories(qs)
	repairCoverage(qs, brand)
	g.scrubDiscovery(qs, brand, offering)

	return model.QuestionPanel{Questions: qs, GeneratedAt: time.Now().UTC()}
}

// fallbackPanel builds the whole panel from templates. Coverage holds by
// construction: categories and platforms are both assigned round-robin.
func (g *Generator) fallbackPanel(brand string, kr *model.KnowledgeRepresentation) model.QuestionPanel {
	offering := primaryOffering(kr)
	cats := model.IntentCategories()
	platforms := model.Platforms()

	questions := make([]model.Question, 0, model.PanelSize)
	rotation := make(map[model.IntentCategory]int, len(cats))
	for i := 0; i < model.PanelSize; i++ {
		cat := cats[i%len(cats)]
		list := g.templates[cat]
		tpl := list[rotation[cat]%len(list)]
		rotation[cat]++

		q := tpl.question(cat, brand, offering)
		q.TargetPlatform = platforms[i%len(platforms)]
		questions = append(questions, q)
	}
	return model.QuestionPanel{Questions: questions, Fallback: true, GeneratedAt: time.Now().UTC()}
}

func dedupe(questions []model.Question) []model.Question {
	seen := make(map[string]bool, len(questions))
	out := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		key := strings.ToLower(q.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

// pad grows an undersized panel with template questions, cycling categories.
// Duplicate texts are skipped while alternatives remain.
func (g *Generator) pad(qs []model.Question, brand, offering string) []model.Question {
	if len(qs) >= model.PanelSize {
		return qs
	}
	seen := make(map[string]bool, model.PanelSize)
	for _, q := range qs {
		seen[strings.ToLower(q.Text)] = true
	}

	cats := model.IntentCategories()
	rotation := make(map[model.IntentCategory]int, len(cats))
	for attempt := 0; len(qs) < model.PanelSize && attempt < model.PanelSize*4; attempt++ {
		cat := cats[attempt%len(cats)]
		list := g.templates[cat]
		tpl := list[rotation[cat]%len(list)]
		rotation[cat]++

		q := tpl.question(cat, brand, offering)
		key := strings.ToLower(q.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		qs = append(qs, q)
	}
	// every skeleton already present: repeat rather than come up short
	for i := 0; len(qs) < model.PanelSize; i++ {
		cat := cats[i%len(cats)]
		list := g.templates[cat]
		qs = append(qs, list[i/len(cats)%len(list)].question(cat, brand, offering))
	}
	return qs
}

func assignPlatforms(qs []model.Question) {
	platforms := model.Platforms()
	for i := range qs {
		qs[i].TargetPlatform = platforms[i%len(platforms)]
	}
}

// fillBlankCategories assigns categories the parser could not map, cycling
// the category list in its fixed order.
func fillBlankCategories(qs []model.Question) {
	cats := model.IntentCategories()
	next := 0
	for i := range qs {
		if qs[i].IntentCategory != "" {
			continue
		}
		qs[i].IntentCategory = cats[next%len(cats)]
		next++
	}
}

// repairCoverage retags surplus questions so every category appears at least
// once, panel size permitting. Donors are taken from the back of the panel and
// only from categories that keep at least one question.
func repairCoverage(qs []model.Question, brand string) {
	counts := make(map[model.IntentCategory]int, len(qs))
	for _, q := range qs {
		counts[q.IntentCategory]++
	}
	for _, missing := range model.IntentCategories() {
		if counts[missing] > 0 {
			continue
		}
		idx := donorIndex(qs, counts, missing, brand, true)
		if idx < 0 {
			idx = donorIndex(qs, counts, missing, brand, false)
		}
		if idx < 0 {
			continue
		}
		counts[qs[idx].IntentCategory]--
		qs[idx].IntentCategory = missing
		counts[missing]++
	}
}

// donorIndex scans from the back for a retaggable question. With cleanOnly
// set, a donor for discovery must not name the brand; the scrub pass rewrites
// the text otherwise.
func donorIndex(qs []model.Question, counts map[model.IntentCategory]int, missing model.IntentCategory, brand string, cleanOnly bool) int {
	for i := len(qs) - 1; i >= 0; i-- {
		if counts[qs[i].IntentCategory] < 2 {
			continue
		}
		if cleanOnly && missing == model.IntentDiscovery && mentionsBrand(qs[i].Text, brand) {
			continue
		}
		return i
	}
	return -1
}

// scrubDiscovery replaces the text of any discovery question that names the
// brand with a template skeleton, keeping its platform slot.
func (g *Generator) scrubDiscovery(qs []model.Question, brand, offering string) {
	if brand == "" {
		return
	}
	list := g.templates[model.IntentDiscovery]
	replaced := 0
	for i := range qs {
		if qs[i].IntentCategory != model.IntentDiscovery || !mentionsBrand(qs[i].Text, brand) {
			continue
		}
		tpl := list[replaced%len(list)]
		replaced++
		clean := tpl.question(model.IntentDiscovery, brand, offering)
		qs[i].Text = clean.Text
		qs[i].UserIntent = clean.UserIntent
		qs[i].ExpectedMention = clean.ExpectedMention
	}
}

func mentionsBrand(text, brand string) bool {
	if brand == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(brand))
}

const fallbackOffering = "services in this category"

var offeringVerbs = []string{" sells ", " offers ", " provides ", " builds ", " delivers ", " makes ", " develops "}

var offeringStops = []string{",", ".", ";", " with ", " that ", " to ", " for ", " delivered", " so "}

// primaryOffering extracts a short noun phrase for the template slots, e.g.
// "The company sells a hosted analytics suite with dashboards" yields
// "hosted analytics suite".
func primaryOffering(kr *model.KnowledgeRepresentation) string {
	if kr == nil {
		return fallbackOffering
	}
	text := strings.TrimSpace(kr.ProductsAndServices)
	if text == "" {
		return fallbackOffering
	}

	lower := " " + strings.ToLower(text)
	for _, verb := range offeringVerbs {
		idx := strings.Index(lower, verb)
		if idx < 0 {
			continue
		}
		phrase := lower[idx+len(verb):]

		cut := len(phrase)
		for _, stop := range offeringStops {
			if i := strings.Index(phrase, stop); i >= 0 && i < cut {
				cut = i
			}
		}
		phrase = strings.TrimSpace(phrase[:cut])
		for _, article := range []string{"a ", "an ", "the "} {
			if strings.HasPrefix(phrase, article) {
				phrase = phrase[len(article):]
				break
			}
		}
		if words := strings.Fields(phrase); len(words) >= 1 && len(words) <= 8 {
			return strings.Join(words, " ")
		}
	}
	return fallbackOffering
}
