// Package ted crawls the EU Tenders Electronic Daily (TED) notice API.
package ted

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/crawler"
	"github.com/procurelab/tendermatch/internal/domain"
)

const (
	// SourceName is the registry key for this adapter.
	SourceName = "ted"

	searchPath  = "/v3.0/notices/search"
	maxPageSize = 100
)

// Config holds the TED API settings.
type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Adapter implements crawler.Source against the TED search API.
type Adapter struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
	logger   *zap.Logger
}

// New creates a TED adapter.
func New(cfg *Config) *Adapter {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Adapter{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		client:   &http.Client{Timeout: timeout},
		logger:   cfg.Logger,
	}
}

// Name implements crawler.Source.
func (a *Adapter) Name() string { return SourceName }

// Search implements crawler.Source. It walks the paginated notice API and
// normalizes each notice; notices that fail validation are dropped and
// counted rather than failing the batch.
func (a *Adapter) Search(ctx context.Context, f crawler.Filters) (crawler.Batch, error) {
	var batch crawler.Batch
	batch.Provenance = domain.ProvenanceReal

	max := f.MaxResults
	page := 1
	for {
		resp, err := a.fetchPage(ctx, f, page)
		if err != nil {
			return crawler.Batch{}, err
		}

		for _, raw := range resp.Notices {
			rec, err := a.normalize(raw)
			if err != nil {
				batch.Dropped++
				a.logger.Warn("Dropping malformed notice",
					zap.Int("page", page), zap.Error(err))
				continue
			}
			batch.Records = append(batch.Records, rec)
			if max > 0 && len(batch.Records) >= max {
				return batch, nil
			}
		}

		fetched := page * a.pageSize
		if len(resp.Notices) == 0 || fetched >= resp.TotalNoticeCount {
			return batch, nil
		}
		page++
	}
}

// searchResponse is the paginated envelope of the notice search endpoint.
type searchResponse struct {
	Notices          []map[string]any `json:"notices"`
	TotalNoticeCount int              `json:"totalNoticeCount"`
	PageNum          int              `json:"pageNum"`
	PageSize         int              `json:"pageSize"`
}

func (a *Adapter) fetchPage(ctx context.Context, f crawler.Filters, page int) (*searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+searchPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}
	req.URL.RawQuery = a.buildQuery(f, page).Encode()

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ted request: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ted responded %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrUpstreamUnavailable)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode ted response: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	return &parsed, nil
}

func (a *Adapter) buildQuery(f crawler.Filters, page int) url.Values {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(a.pageSize))
	q.Set("pageNum", strconv.Itoa(page))
	q.Set("scope", "3")

	if len(f.Sectors) > 0 {
		q.Set("q", strings.Join(f.Sectors, " "))
	}
	for _, c := range f.Countries {
		q.Add("countryCode", c)
	}
	if !f.From.IsZero() {
		q.Set("publicationDateFrom", f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		q.Set("publicationDateTo", f.To.Format("2006-01-02"))
	}
	return q
}

// noticePayload mirrors the subset of a TED notice this service consumes.
// Multilingual fields arrive as either a plain string or a lang->text map,
// so they decode into any and go through pickText.
type noticePayload struct {
	NoticeID  string `mapstructure:"noticeId"`
	NoticeOjs struct {
		OjsNumber string `mapstructure:"ojsNumber"`
	} `mapstructure:"noticeOjs"`
	Title            any `mapstructure:"title"`
	ShortDescription any `mapstructure:"shortDescription"`
	ContractingBody  struct {
		OfficialName any `mapstructure:"officialName"`
	} `mapstructure:"contractingBody"`
	PlaceOfPerformance struct {
		Nuts struct {
			Code string `mapstructure:"code"`
		} `mapstructure:"nuts"`
		Country struct {
			Code string `mapstructure:"code"`
		} `mapstructure:"country"`
	} `mapstructure:"placeOfPerformance"`
	LotInfo []struct {
		EstimatedValue struct {
			Value    float64 `mapstructure:"value"`
			Currency string  `mapstructure:"currency"`
		} `mapstructure:"estimatedValue"`
	} `mapstructure:"lotInfo"`
	TenderSubmissionDeadline struct {
		Date string `mapstructure:"date"`
	} `mapstructure:"tenderSubmissionDeadline"`
	CPV struct {
		Main struct {
			Code string `mapstructure:"code"`
		} `mapstructure:"main"`
		Additional []struct {
			Code string `mapstructure:"code"`
		} `mapstructure:"additional"`
	} `mapstructure:"cpv"`
	PublicationDate string   `mapstructure:"publicationDate"`
	CountryCode     string   `mapstructure:"countryCode"`
	RequiredCerts   []string `mapstructure:"requiredCertifications"`
}

func (a *Adapter) normalize(raw map[string]any) (domain.TenderRecord, error) {
	var n noticePayload
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &n,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return domain.TenderRecord{}, fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return domain.TenderRecord{}, fmt.Errorf("decode notice: %w", err)
	}

	id := n.NoticeOjs.OjsNumber
	if id == "" {
		id = n.NoticeID
	}

	country := n.CountryCode
	if country == "" {
		country = n.PlaceOfPerformance.Country.Code
	}
	if country == "" && len(n.PlaceOfPerformance.Nuts.Code) >= 2 {
		country = n.PlaceOfPerformance.Nuts.Code[:2]
	}

	var value float64
	currency := "EUR"
	if len(n.LotInfo) > 0 {
		value = n.LotInfo[0].EstimatedValue.Value
		if c := n.LotInfo[0].EstimatedValue.Currency; c != "" {
			currency = c
		}
	}

	var cpvCodes []string
	if n.CPV.Main.Code != "" {
		cpvCodes = append(cpvCodes, n.CPV.Main.Code)
	}
	for _, add := range n.CPV.Additional {
		if add.Code != "" {
			cpvCodes = append(cpvCodes, add.Code)
		}
	}

	rawJSON, _ := json.Marshal(raw)

	rec := domain.TenderRecord{
		ID:              id,
		Source:          SourceName,
		Title:           pickText(n.Title),
		Description:     pickText(n.ShortDescription),
		Buyer:           pickText(n.ContractingBody.OfficialName),
		CPVCodes:        cpvCodes,
		Country:         country,
		RequiredCerts:   n.RequiredCerts,
		EstimatedValue:  value,
		Currency:        currency,
		PublicationDate: parseDate(n.PublicationDate),
		Deadline:        parseDate(n.TenderSubmissionDeadline.Date),
		SourceURL:       fmt.Sprintf("https://ted.europa.eu/udl?uri=TED:NOTICE:%s", id),
		Provenance:      domain.ProvenanceReal,
		Raw:             rawJSON,
		UpdatedAt:       time.Now(),
	}

	if err := rec.Validate(); err != nil {
		return domain.TenderRecord{}, fmt.Errorf("notice %q: %w", id, err)
	}
	return rec, nil
}

// pickText resolves a multilingual field, preferring English, then the other
// common TED languages, then whatever is present.
func pickText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, lang := range []string{"en", "fr", "de", "es", "it"} {
			if s, ok := t[lang].(string); ok && s != "" {
				return s
			}
		}
		langs := make([]string, 0, len(t))
		for lang := range t {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		for _, lang := range langs {
			if s, ok := t[lang].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
