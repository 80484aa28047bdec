package company

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/procurelab/tendermatch/internal/db"
	"github.com/procurelab/tendermatch/internal/domain"
)

const listSeparator = ","

func marshalCompany(profile *domain.CompanyProfile) map[string]string {
	fields := map[string]string{
		"name":           profile.Name,
		"description":    profile.Description,
		"sectors":        strings.Join(profile.Sectors, listSeparator),
		"certifications": strings.Join(profile.Certifications, listSeparator),
		"size":           string(profile.Size),
		"location":       profile.Location,
		"updated_at_ns":  strconv.FormatInt(profile.UpdatedAt.UnixNano(), 10),
		"vector":         string(db.EncodeVector(profile.Embedding)),
	}
	if len(profile.PastProjects) > 0 {
		// Project summaries are free text and may contain the separator,
		// so they go through JSON.
		if b, err := json.Marshal(profile.PastProjects); err == nil {
			fields["past_projects"] = string(b)
		}
	}
	return fields
}

func unmarshalCompany(id string, fields map[string]string) domain.CompanyProfile {
	profile := domain.CompanyProfile{
		ID:             id,
		Name:           fields["name"],
		Description:    fields["description"],
		Sectors:        splitList(fields["sectors"]),
		Certifications: splitList(fields["certifications"]),
		Size:           domain.SizeCategory(fields["size"]),
		Location:       fields["location"],
	}

	if raw, ok := fields["past_projects"]; ok {
		var projects []domain.PastProject
		if err := json.Unmarshal([]byte(raw), &projects); err == nil {
			profile.PastProjects = projects
		}
	}
	if ns, err := strconv.ParseInt(fields["updated_at_ns"], 10, 64); err == nil {
		profile.UpdatedAt = time.Unix(0, ns)
	}
	if vec, ok := fields["vector"]; ok {
		profile.Embedding = db.DecodeVector([]byte(vec))
	}

	return profile
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}
