// Package chi exposes the tendermatch HTTP API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/crawler"
	"github.com/procurelab/tendermatch/internal/domain"
	healthuc "github.com/procurelab/tendermatch/internal/usecase/health"
	ingestuc "github.com/procurelab/tendermatch/internal/usecase/ingest"
	matchuc "github.com/procurelab/tendermatch/internal/usecase/match"
)

// ErrorResponseCode identifies an error class in API responses.
type ErrorResponseCode string

const (
	CodeBadRequest           ErrorResponseCode = "bad_request"
	CodeValidationFailed     ErrorResponseCode = "validation_failed"
	CodeVectorDimMismatch    ErrorResponseCode = "vector_dim_mismatch"
	CodeCompanyNotFound      ErrorResponseCode = "company_not_found"
	CodeTenderNotFound       ErrorResponseCode = "tender_not_found"
	CodeUnknownSource        ErrorResponseCode = "unknown_source"
	CodeConflict             ErrorResponseCode = "conflict"
	CodeEmbeddingUnavailable ErrorResponseCode = "embedding_unavailable"
	CodeUpstreamUnavailable  ErrorResponseCode = "upstream_unavailable"
	CodeDeadlineExceeded     ErrorResponseCode = "deadline_exceeded"
	CodeUnauthorized         ErrorResponseCode = "unauthorized"
	CodeInternalError        ErrorResponseCode = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes API requests to the use case services.
type Server struct {
	ingest        *ingestuc.Service
	match         *matchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest *ingestuc.Service,
	match *matchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest: ingest,
		match:  match,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrCompanyNotFound, http.StatusNotFound, CodeCompanyNotFound),
		sentinelHandler(domain.ErrTenderNotFound, http.StatusNotFound, CodeTenderNotFound),
		sentinelHandler(domain.ErrUnknownSource, http.StatusNotFound, CodeUnknownSource),
		sentinelHandler(domain.ErrPersistenceConflict, http.StatusConflict, CodeConflict),
		sentinelHandler(domain.ErrEmbeddingUnavailable,
			http.StatusServiceUnavailable, CodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, CodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, CodeUpstreamUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeDeadlineExceeded),
	}
	return s
}

// Mount registers all API routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.GetHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingest", s.IngestAll)
		r.Post("/ingest/{source}", s.IngestSource)

		r.Post("/companies", s.UpsertCompany)
		r.Get("/companies/{id}", s.GetCompany)
		r.Delete("/companies/{id}", s.DeleteCompany)

		r.Post("/recommendations", s.Recommend)
	})
}

// IngestRequest narrows an ingest run. All fields are optional.
type IngestRequest struct {
	Sectors    []string `json:"sectors,omitempty"`
	Countries  []string `json:"countries,omitempty"`
	From       string   `json:"from,omitempty"` // RFC 3339 or YYYY-MM-DD
	To         string   `json:"to,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

// IngestSource handles POST /v1/ingest/{source}.
func (s *Server) IngestSource(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	f, ok := s.decodeFilters(w, r)
	if !ok {
		return
	}

	report, err := s.ingest.IngestSource(r.Context(), source, f)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// IngestAll handles POST /v1/ingest. It fans out to every registered source
// and always returns 200: per-source failures surface as zeroed reports.
func (s *Server) IngestAll(w http.ResponseWriter, r *http.Request) {
	f, ok := s.decodeFilters(w, r)
	if !ok {
		return
	}

	reports := s.ingest.IngestAll(r.Context(), f)
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) decodeFilters(w http.ResponseWriter, r *http.Request) (crawler.Filters, bool) {
	var req IngestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
			return crawler.Filters{}, false
		}
	}

	f := crawler.Filters{
		Sectors:    req.Sectors,
		Countries:  req.Countries,
		MaxResults: req.MaxResults,
	}

	var err error
	if f.From, err = parseFilterDate(req.From); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "Invalid from date: "+req.From)
		return crawler.Filters{}, false
	}
	if f.To, err = parseFilterDate(req.To); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "Invalid to date: "+req.To)
		return crawler.Filters{}, false
	}

	return f, true
}

func parseFilterDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// CompanyRequest is the upsert body for a company profile.
type CompanyRequest struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Sectors        []string      `json:"sectors,omitempty"`
	Certifications []string      `json:"certifications,omitempty"`
	Size           string        `json:"size,omitempty"`
	PastProjects   []PastProject `json:"past_projects,omitempty"`
	Location       string        `json:"location,omitempty"`
}

// PastProject mirrors domain.PastProject on the wire.
type PastProject struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CompanyResponse is the stored profile without its vector.
type CompanyResponse struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Sectors        []string      `json:"sectors,omitempty"`
	Certifications []string      `json:"certifications,omitempty"`
	Size           string        `json:"size,omitempty"`
	PastProjects   []PastProject `json:"past_projects,omitempty"`
	Location       string        `json:"location,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// UpsertCompany handles POST /v1/companies. The profile is vectorized on
// write so recommendations never block on the embedding gateway.
func (s *Server) UpsertCompany(w http.ResponseWriter, r *http.Request) {
	var req CompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	profile := companyFromRequest(&req)
	if err := s.ingest.IndexCompany(r.Context(), profile); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, companyToResponse(profile))
}

// GetCompany handles GET /v1/companies/{id}.
func (s *Server) GetCompany(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	profile, err := s.ingest.GetCompany(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, companyToResponse(&profile))
}

// DeleteCompany handles DELETE /v1/companies/{id}.
func (s *Server) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.DeleteCompany(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecommendRequest asks for ranked tenders for a stored company.
type RecommendRequest struct {
	CompanyID      string  `json:"company_id"`
	TopN           int     `json:"top_n,omitempty"`
	PoolSize       int     `json:"pool_size,omitempty"`
	MinSimilarity  float64 `json:"min_similarity,omitempty"`
	IncludeExpired bool    `json:"include_expired,omitempty"`
	Explain        bool    `json:"explain,omitempty"`
}

// RecommendationItem is one ranked result on the wire.
type RecommendationItem struct {
	TenderID         string   `json:"tender_id"`
	VectorSimilarity float64  `json:"vector_similarity"`
	StructuredScore  float64  `json:"structured_score"`
	CompositeScore   float64  `json:"composite_score"`
	MatchedFactors   []string `json:"matched_factors,omitempty"`
	Explanation      string   `json:"explanation,omitempty"`
}

// RecommendResponse is the ranked recommendation list.
type RecommendResponse struct {
	CompanyID   string               `json:"company_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Results     []RecommendationItem `json:"results"`
}

// Recommend handles POST /v1/recommendations.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.CompanyID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "company_id is required")
		return
	}
	if req.TopN < 0 || req.PoolSize < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "top_n and pool_size must not be negative")
		return
	}
	if req.MinSimilarity < 0 || req.MinSimilarity > 1 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "min_similarity must be within [0, 1]")
		return
	}

	results, err := s.match.Recommend(r.Context(), req.CompanyID, matchuc.Options{
		PoolSize:       req.PoolSize,
		TopN:           req.TopN,
		MinSimilarity:  req.MinSimilarity,
		IncludeExpired: req.IncludeExpired,
		Explain:        req.Explain,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := RecommendResponse{
		CompanyID:   req.CompanyID,
		GeneratedAt: time.Now().UTC(),
		Results:     make([]RecommendationItem, len(results)),
	}
	for i, m := range results {
		resp.Results[i] = RecommendationItem{
			TenderID:         m.TenderID,
			VectorSimilarity: m.VectorSimilarity,
			StructuredScore:  m.StructuredScore,
			CompositeScore:   m.CompositeScore,
			MatchedFactors:   m.MatchedFactors,
			Explanation:      m.Explanation,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetHealth handles GET /health. A degraded report is still 200: the store
// serves recommendations even when the embedding gateway is down.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func companyFromRequest(req *CompanyRequest) *domain.CompanyProfile {
	projects := make([]domain.PastProject, len(req.PastProjects))
	for i, p := range req.PastProjects {
		projects[i] = domain.PastProject{Name: p.Name, Description: p.Description}
	}
	return &domain.CompanyProfile{
		ID:             req.ID,
		Name:           req.Name,
		Description:    req.Description,
		Sectors:        req.Sectors,
		Certifications: req.Certifications,
		Size:           domain.SizeCategory(req.Size),
		PastProjects:   projects,
		Location:       req.Location,
	}
}

func companyToResponse(p *domain.CompanyProfile) CompanyResponse {
	projects := make([]PastProject, len(p.PastProjects))
	for i, pp := range p.PastProjects {
		projects[i] = PastProject{Name: pp.Name, Description: pp.Description}
	}
	return CompanyResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Sectors:        p.Sectors,
		Certifications: p.Certifications,
		Size:           string(p.Size),
		PastProjects:   projects,
		Location:       p.Location,
		UpdatedAt:      p.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns the sentinel text for known errors and a generic
// message otherwise, so upstream payloads never leak into responses.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrVectorDimMismatch,
		domain.ErrCompanyNotFound,
		domain.ErrTenderNotFound,
		domain.ErrUnknownSource,
		domain.ErrPersistenceConflict,
		domain.ErrEmbeddingUnavailable,
		domain.ErrEmbeddingProvider,
		domain.ErrUpstreamUnavailable,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler surfaces the offending field when the error carries one.
func validationHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, ve.Error())
		return true
	}
	writeError(w, http.StatusBadRequest, CodeValidationFailed, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
