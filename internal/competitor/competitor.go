// Package competitor supplies the competitor names the answer analysis
// counts mentions against. The only implementation is a static catalog; a
// real market-intelligence provider would slot in behind the same interface.
package competitor

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// Competitor is one company the analysis watches for in assistant answers.
type Competitor struct {
	Name        string `json:"name"`
	Website     string `json:"website"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Source yields the competitor set for an analyzed domain.
type Source interface {
	Competitors(ctx context.Context, domain string) ([]Competitor, error)
}

// StaticSource serves a fixed catalog. The order is stable so repeated runs
// count mentions against an identical name list.
type StaticSource struct {
	catalog []Competitor
	limit   int
}

// Option configures a StaticSource.
type Option func(*StaticSource)

// WithCatalog replaces the built-in catalog.
func WithCatalog(cs []Competitor) Option {
	return func(s *StaticSource) { s.catalog = cs }
}

// WithLimit caps how many competitors a lookup returns.
func WithLimit(n int) Option {
	return func(s *StaticSource) { s.limit = n }
}

// NewStaticSource creates a catalog-backed source.
func NewStaticSource(opts ...Option) *StaticSource {
	s := &StaticSource{catalog: defaultCatalog}
	for _, opt := range opts {
		opt(s)
	}
	if s.limit <= 0 || s.limit > len(s.catalog) {
		s.limit = len(s.catalog)
	}
	return s
}

// Competitors returns the catalog minus the analyzed domain itself, in
// catalog order.
func (s *StaticSource) Competitors(ctx context.Context, domain string) ([]Competitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "competitor: lookup cancelled")
	}

	self := domain
	if norm, err := model.NormalizeDomain(domain); err == nil {
		self = norm
	}

	out := make([]Competitor, 0, s.limit)
	for _, c := range s.catalog {
		if strings.EqualFold(c.Website, self) {
			continue
		}
		out = append(out, c)
		if len(out) >= s.limit {
			break
		}
	}
	return out, nil
}

// Names extracts just the company names, in order.
func Names(cs []Competitor) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// LoadCatalogFromFile reads a JSON array of Competitor from the given path.
func LoadCatalogFromFile(path string) ([]Competitor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "competitor: read catalog file")
	}

	var cs []Competitor
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, eris.Wrap(err, "competitor: unmarshal catalog")
	}
	if len(cs) == 0 {
		return nil, eris.New("competitor: catalog file is empty")
	}
	return cs, nil
}

// defaultCatalog covers the analytics and BI space the product competes in.
var defaultCatalog = []Competitor{
	{
		Name:        "DataRobot",
		Website:     "datarobot.com",
		Description: "Enterprise AI platform that accelerates and democratizes data science",
		Category:    "AI/ML Platform",
	},
	{
		Name:        "Alteryx",
		Website:     "alteryx.com",
		Description: "Self-service data analytics platform for business analysts",
		Category:    "Data Analytics",
	},
	{
		Name:        "Tableau",
		Website:     "tableau.com",
		Description: "Visual analytics platform transforming data into actionable insights",
		Category:    "Business Intelligence",
	},
	{
		Name:        "Looker",
		Website:     "looker.com",
		Description: "Business intelligence and big data analytics platform",
		Category:    "Business Intelligence",
	},
	{
		Name:        "Domo",
		Website:     "domo.com",
		Description: "Cloud-based business intelligence and data visualization platform",
		Category:    "Business Intelligence",
	},
	{
		Name:        "Sisense",
		Website:     "sisense.com",
		Description: "End-to-end business analytics software",
		Category:    "Analytics Platform",
	},
	{
		Name:        "ThoughtSpot",
		Website:     "thoughtspot.com",
		Description: "AI-powered analytics platform for search-driven insights",
		Category:    "AI Analytics",
	},
	{
		Name:        "Amplitude",
		Website:     "amplitude.com",
		Description: "Product analytics for web and mobile apps",
		Category:    "Product Analytics",
	},
	{
		Name:        "Mixpanel",
		Website:     "mixpanel.com",
		Description: "Product analytics platform to understand user behavior",
		Category:    "Product Analytics",
	},
	{
		Name:        "Segment",
		Website:     "segment.com",
		Description: "Customer data platform for data collection and routing",
		Category:    "Data Infrastructure",
	},
}
