package domain

import (
	"strings"
	"time"
)

// SizeCategory buckets companies by headcount.
type SizeCategory string

const (
	SizeMicro  SizeCategory = "micro"
	SizeSmall  SizeCategory = "small"
	SizeMedium SizeCategory = "medium"
	SizeLarge  SizeCategory = "large"
)

// sizeRank orders categories for size-fit scoring. Unknown sizes rank -1.
var sizeRank = map[SizeCategory]int{
	SizeMicro:  0,
	SizeSmall:  1,
	SizeMedium: 2,
	SizeLarge:  3,
}

// Rank returns the ordinal position of the size category, or -1 if unknown.
func (s SizeCategory) Rank() int {
	if r, ok := sizeRank[s]; ok {
		return r
	}
	return -1
}

// PastProject is a short summary of completed work, ordered most recent first.
type PastProject struct {
	Name        string
	Description string
}

// CompanyProfile describes an organization looking for tenders.
type CompanyProfile struct {
	ID             string
	Name           string
	Description    string
	Sectors        []string
	Certifications []string
	Size           SizeCategory
	PastProjects   []PastProject
	Location       string
	Embedding      []float32
	UpdatedAt      time.Time
}

// Validate checks the profile invariants.
func (c *CompanyProfile) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return NewValidationError("id", "is empty")
	}
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", "is empty")
	}
	if c.Size != "" && c.Size.Rank() < 0 {
		return NewValidationError("size", "must be micro, small, medium or large")
	}
	return nil
}

// EmbeddingText assembles the free text that represents this company in vector space.
func (c *CompanyProfile) EmbeddingText() string {
	parts := []string{c.Name, c.Description}
	if len(c.Sectors) > 0 {
		parts = append(parts, strings.Join(c.Sectors, " "))
	}
	for _, p := range c.PastProjects {
		parts = append(parts, p.Name+" "+p.Description)
	}
	return strings.Join(parts, "\n")
}
