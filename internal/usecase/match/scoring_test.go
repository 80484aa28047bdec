package match

import (
	"math"
	"testing"

	"github.com/procurelab/tendermatch/internal/domain"
)

func TestCertCoverage(t *testing.T) {
	tests := []struct {
		name     string
		held     []string
		required []string
		want     float64
	}{
		{"no requirements", []string{"ISO9001"}, nil, 1.0},
		{"full coverage", []string{"ISO9001", "ISO27001"}, []string{"ISO27001"}, 1.0},
		{"partial coverage", []string{"ISO9001"}, []string{"ISO9001", "ISO27001"}, 0.5},
		{"no coverage", nil, []string{"ISO27001"}, 0.0},
		{"case insensitive", []string{"iso27001"}, []string{"ISO27001"}, 1.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := certCoverage(tc.held, tc.required); got != tc.want {
				t.Errorf("certCoverage = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSizeFit(t *testing.T) {
	tests := []struct {
		name  string
		size  domain.SizeCategory
		value float64
		want  float64
	}{
		{"exact bucket", domain.SizeMedium, 5_000_000, 1.0},
		{"one bucket off", domain.SizeSmall, 5_000_000, 1.0 - 1.0/3.0},
		{"opposite ends", domain.SizeMicro, 50_000_000, 0.0},
		{"unknown size neutral", "", 5_000_000, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Bucket fractions like 1/3 do not round-trip exactly.
			if got := sizeFit(tc.size, tc.value); math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("sizeFit = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStructuredScore_AllFactorsMatch(t *testing.T) {
	company := itCompany()
	rec := itTender().Record

	score, factors := structuredScore(&company, &rec, DefaultWeights())
	if score != 1.0 {
		t.Errorf("score = %v, want 1.0", score)
	}
	if len(factors) != 4 {
		t.Errorf("factors = %v, want all four", factors)
	}
}

func TestStructuredScore_NoFactorsMatch(t *testing.T) {
	company := itCompany()
	rec := constructionTender().Record

	score, factors := structuredScore(&company, &rec, DefaultWeights())
	// Sector, certs and location all miss; size is an exact bucket match.
	want := 0.25 * 1.0
	if score != want {
		t.Errorf("score = %v, want %v", score, want)
	}
	if len(factors) != 1 || factors[0] != domain.FactorSize {
		t.Errorf("factors = %v, want only size", factors)
	}
}

func TestComposite_BlendsByAlpha(t *testing.T) {
	w := Weights{Alpha: 0.6}
	got := composite(1.0, 0.5, w)
	want := 0.6*1.0 + 0.4*0.5
	if got != want {
		t.Errorf("composite = %v, want %v", got, want)
	}
}

func TestSizeRankForValue_Buckets(t *testing.T) {
	tests := []struct {
		value float64
		want  int
	}{
		{50_000, domain.SizeMicro.Rank()},
		{500_000, domain.SizeSmall.Rank()},
		{5_000_000, domain.SizeMedium.Rank()},
		{50_000_000, domain.SizeLarge.Rank()},
	}
	for _, tc := range tests {
		if got := sizeRankForValue(tc.value); got != tc.want {
			t.Errorf("sizeRankForValue(%v) = %d, want %d", tc.value, got, tc.want)
		}
	}
}
