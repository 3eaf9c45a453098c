package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Confidence grades how well-grounded a knowledge representation is, derived
// from how much usable site content the synthesizer saw.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Score maps a confidence grade to its numeric weight.
func (c Confidence) Score() float64 {
	switch c {
	case ConfidenceHigh:
		return 0.85
	case ConfidenceMedium:
		return 0.65
	default:
		return 0.40
	}
}

// FieldConfidence grades a single knowledge field.
type FieldConfidence string

const (
	// FieldVerified means the field is grounded in crawled content.
	FieldVerified FieldConfidence = "verified"
	// FieldPartial means the field mixes crawled content with inference.
	FieldPartial FieldConfidence = "partial"
	// FieldMissing means the field was inferred with no supporting content.
	FieldMissing FieldConfidence = "missing"
)

// KnowledgeRepresentation is the brand profile synthesized from crawled
// content. It is the single source of truth for question generation and
// content scoring.
type KnowledgeRepresentation struct {
	Overview            string         `json:"overview"`
	ProductsAndServices string         `json:"products_and_services"`
	TargetCustomers     string         `json:"target_customers"`
	Positioning         string         `json:"positioning"`
	BrandTone           string         `json:"brand_tone"`
	PreferredWords      []string       `json:"preferred_words"`
	AvoidedWords        []string       `json:"avoided_words"`
	Dos                 []string       `json:"dos"`
	Donts               []string       `json:"donts"`
	EvidenceItems       []EvidenceItem `json:"evidence_items"`

	Confidence      Confidence                 `json:"confidence"`
	FieldConfidence map[string]FieldConfidence `json:"field_confidence,omitempty"`
	// Generated is false only for the placeholder profile used when
	// synthesis was impossible.
	Generated   bool      `json:"generated"`
	GeneratedAt time.Time `json:"generated_at"`
}

// TextFields returns the free-text fields keyed by name, for validation and
// field-level patching.
func (k *KnowledgeRepresentation) TextFields() map[string]string {
	return map[string]string{
		"overview":              k.Overview,
		"products_and_services": k.ProductsAndServices,
		"target_customers":      k.TargetCustomers,
		"positioning":           k.Positioning,
		"brand_tone":            k.BrandTone,
	}
}

// SetTextField writes a free-text field by name. Unknown names are ignored.
func (k *KnowledgeRepresentation) SetTextField(name, value string) {
	switch name {
	case "overview":
		k.Overview = value
	case "products_and_services":
		k.ProductsAndServices = value
	case "target_customers":
		k.TargetCustomers = value
	case "positioning":
		k.Positioning = value
	case "brand_tone":
		k.BrandTone = value
	}
}

// EvidenceType classifies an evidence item.
type EvidenceType string

const (
	EvidenceCaseStudy  EvidenceType = "case-study"
	EvidenceReview     EvidenceType = "review"
	EvidenceStatistic  EvidenceType = "statistic"
	EvidenceCustomNote EvidenceType = "custom-note"
)

// ValidEvidenceType reports whether t is a recognized evidence type.
func ValidEvidenceType(t EvidenceType) bool {
	switch t {
	case EvidenceCaseStudy, EvidenceReview, EvidenceStatistic, EvidenceCustomNote:
		return true
	}
	return false
}

// EvidenceItem is a user-supplied trust signal attached to the knowledge
// representation. Items are append-and-delete only; there is no edit.
type EvidenceItem struct {
	ID        string       `json:"id"`
	Type      EvidenceType `json:"type"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Source    string       `json:"source,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewEvidenceID returns a fresh evidence item identifier.
func NewEvidenceID() string {
	return fmt.Sprintf("ev_%s", uuid.New().String()[:12])
}

// Validate checks an evidence item before it is accepted.
func (e *EvidenceItem) Validate() error {
	if !ValidEvidenceType(e.Type) {
		return fmt.Errorf("unknown evidence type %q", e.Type)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("evidence title is required")
	}
	if strings.TrimSpace(e.Content) == "" {
		return fmt.Errorf("evidence content is required")
	}
	return nil
}
