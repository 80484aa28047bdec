// Package gemini generates natural-language match explanations via the
// Google GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/procurelab/tendermatch/internal/domain"
)

const defaultModel = "gemini-2.5-flash"

// generator abstracts content generation so tests can stub the API.
type generator interface {
	generate(ctx context.Context, model, prompt string) (string, error)
}

// Explainer produces a short natural-language rationale for a match.
type Explainer struct {
	gen     generator
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewExplainer creates an Explainer against the Gemini API backend.
func NewExplainer(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger) (*Explainer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Explainer{
		gen:     &genaiGenerator{client: client},
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Explain asks the model for a one-paragraph rationale of why the tender fits
// the company. Calls are bounded by the configured timeout.
func (e *Explainer) Explain(
	ctx context.Context,
	company *domain.CompanyProfile,
	tender *domain.TenderRecord,
	result *domain.MatchResult,
) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	text, err := e.gen.generate(ctx, e.model, buildPrompt(company, tender, result))
	if err != nil {
		return "", fmt.Errorf("explain match %s/%s: %w", company.ID, tender.ID, err)
	}
	return text, nil
}

func buildPrompt(company *domain.CompanyProfile, tender *domain.TenderRecord, result *domain.MatchResult) string {
	var b strings.Builder
	b.WriteString("You advise companies on public procurement. In one short paragraph, ")
	b.WriteString("explain why the tender below is (or is not) a good fit for the company. ")
	b.WriteString("Be concrete and mention the strongest factors only.\n\n")

	fmt.Fprintf(&b, "Company: %s\n", company.Name)
	if company.Description != "" {
		fmt.Fprintf(&b, "Company profile: %s\n", company.Description)
	}
	if len(company.Sectors) > 0 {
		fmt.Fprintf(&b, "Company sectors: %s\n", strings.Join(company.Sectors, ", "))
	}
	if len(company.Certifications) > 0 {
		fmt.Fprintf(&b, "Company certifications: %s\n", strings.Join(company.Certifications, ", "))
	}

	fmt.Fprintf(&b, "\nTender: %s\n", tender.Title)
	if tender.Buyer != "" {
		fmt.Fprintf(&b, "Buyer: %s\n", tender.Buyer)
	}
	if tender.Sector != "" {
		fmt.Fprintf(&b, "Tender sector: %s\n", tender.Sector)
	}
	if tender.EstimatedValue > 0 {
		fmt.Fprintf(&b, "Estimated value: %.0f %s\n", tender.EstimatedValue, tender.Currency)
	}
	if len(tender.RequiredCerts) > 0 {
		fmt.Fprintf(&b, "Required certifications: %s\n", strings.Join(tender.RequiredCerts, ", "))
	}

	fmt.Fprintf(&b, "\nComposite match score: %.2f (semantic %.2f, structured %.2f)\n",
		result.CompositeScore, result.VectorSimilarity, result.StructuredScore)
	if len(result.MatchedFactors) > 0 {
		fmt.Fprintf(&b, "Matched factors: %s\n", strings.Join(result.MatchedFactors, ", "))
	}

	return b.String()
}

// genaiGenerator is the production generator backed by *genai.Client.
type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}
