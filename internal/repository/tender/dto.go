package tender

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/procurelab/tendermatch/internal/db"
	"github.com/procurelab/tendermatch/internal/domain"
)

// tenderFieldNames lists the hash fields fetched on search. The raw payload
// stays out of search results on purpose; Get returns it.
var tenderFieldNames = []string{
	"source", "title", "description", "buyer", "cpv_codes", "sector",
	"country", "required_certs", "estimated_value", "currency",
	"publication_date", "deadline", "source_url", "provenance",
	"complexity", "keywords", "updated_at_ns", "__vector_score",
}

const listSeparator = ","

func marshalTender(rec *domain.TenderRecord) map[string]string {
	fields := map[string]string{
		"source":          rec.Source,
		"title":           rec.Title,
		"description":     rec.Description,
		"buyer":           rec.Buyer,
		"cpv_codes":       strings.Join(rec.CPVCodes, listSeparator),
		"sector":          rec.Sector,
		"country":         rec.Country,
		"required_certs":  strings.Join(rec.RequiredCerts, listSeparator),
		"estimated_value": strconv.FormatFloat(rec.EstimatedValue, 'f', -1, 64),
		"currency":        rec.Currency,
		"source_url":      rec.SourceURL,
		"provenance":      string(rec.Provenance),
		"complexity":      strconv.FormatFloat(rec.Complexity, 'f', -1, 64),
		"keywords":        strings.Join(rec.Keywords, listSeparator),
		"updated_at_ns":   strconv.FormatInt(rec.UpdatedAt.UnixNano(), 10),
		"vector":          string(db.EncodeVector(rec.Embedding)),
	}
	if !rec.PublicationDate.IsZero() {
		fields["publication_date"] = rec.PublicationDate.Format(time.RFC3339)
	}
	if !rec.Deadline.IsZero() {
		fields["deadline"] = rec.Deadline.Format(time.RFC3339)
		fields["deadline_unix"] = strconv.FormatInt(rec.Deadline.Unix(), 10)
	}
	if len(rec.Raw) > 0 {
		fields["raw"] = string(rec.Raw)
	}
	return fields
}

func unmarshalTender(id string, fields map[string]string) domain.TenderRecord {
	rec := domain.TenderRecord{
		ID:            id,
		Source:        fields["source"],
		Title:         fields["title"],
		Description:   fields["description"],
		Buyer:         fields["buyer"],
		CPVCodes:      splitList(fields["cpv_codes"]),
		Sector:        fields["sector"],
		Country:       fields["country"],
		RequiredCerts: splitList(fields["required_certs"]),
		Currency:      fields["currency"],
		SourceURL:     fields["source_url"],
		Provenance:    domain.Provenance(fields["provenance"]),
		Keywords:      splitList(fields["keywords"]),
	}

	if v, err := strconv.ParseFloat(fields["estimated_value"], 64); err == nil {
		rec.EstimatedValue = v
	}
	if c, err := strconv.ParseFloat(fields["complexity"], 64); err == nil {
		rec.Complexity = c
	}
	if ts, err := time.Parse(time.RFC3339, fields["publication_date"]); err == nil {
		rec.PublicationDate = ts
	}
	if ts, err := time.Parse(time.RFC3339, fields["deadline"]); err == nil {
		rec.Deadline = ts
	}
	if ns, err := strconv.ParseInt(fields["updated_at_ns"], 10, 64); err == nil {
		rec.UpdatedAt = time.Unix(0, ns)
	}
	if raw, ok := fields["raw"]; ok {
		rec.Raw = json.RawMessage(raw)
	}
	if vec, ok := fields["vector"]; ok {
		rec.Embedding = db.DecodeVector([]byte(vec))
	}

	return rec
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}
