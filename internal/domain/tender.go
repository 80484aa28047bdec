package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Provenance distinguishes a real upstream record from a synthetic fallback record.
type Provenance string

const (
	// ProvenanceReal marks a record normalized from a live upstream payload.
	ProvenanceReal Provenance = "real"
	// ProvenanceSynthetic marks a record generated by the fallback path.
	ProvenanceSynthetic Provenance = "synthetic"
)

// MaxKeywords bounds the derived keyword set on a tender.
const MaxKeywords = 10

// TenderRecord is a normalized procurement notice.
type TenderRecord struct {
	ID              string
	Source          string
	Title           string
	Description     string
	Buyer           string
	CPVCodes        []string
	Sector          string
	Country         string
	RequiredCerts   []string
	EstimatedValue  float64
	Currency        string
	PublicationDate time.Time
	Deadline        time.Time
	SourceURL       string
	Provenance      Provenance
	Embedding       []float32
	Complexity      float64
	Keywords        []string
	Raw             json.RawMessage // opaque upstream payload, kept for audit
	UpdatedAt       time.Time
}

// Validate checks the canonical schema invariants. It does not check the
// embedding dimension: that is owned by the store, which knows D.
func (t *TenderRecord) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return NewValidationError("id", "is empty")
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "is empty")
	}
	if t.Provenance != ProvenanceReal && t.Provenance != ProvenanceSynthetic {
		return NewValidationError("provenance", "must be real or synthetic")
	}
	if !t.PublicationDate.IsZero() && !t.Deadline.IsZero() && t.Deadline.Before(t.PublicationDate) {
		return NewValidationError("deadline", "precedes publication date")
	}
	if t.EstimatedValue < 0 {
		return NewValidationError("estimated_value", "is negative")
	}
	if t.Complexity < 0 || t.Complexity > 1 {
		return NewValidationError("complexity", "outside [0,1]")
	}
	if len(t.Keywords) > MaxKeywords {
		return NewValidationError("keywords", "exceeds cap")
	}
	return nil
}

// Expired reports whether the submission deadline has passed at the given instant.
// Records without a deadline never expire.
func (t *TenderRecord) Expired(now time.Time) bool {
	return !t.Deadline.IsZero() && t.Deadline.Before(now)
}

// EmbeddingText assembles the free text that represents this tender in vector space.
func (t *TenderRecord) EmbeddingText() string {
	parts := []string{t.Title, t.Description}
	if t.Sector != "" {
		parts = append(parts, t.Sector)
	}
	if len(t.Keywords) > 0 {
		parts = append(parts, strings.Join(t.Keywords, " "))
	}
	return strings.Join(parts, "\n")
}
