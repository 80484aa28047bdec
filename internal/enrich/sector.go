// Package enrich derives sector, keywords, and complexity from normalized records.
// All functions are pure: identical input yields identical output.
package enrich

import "strings"

// SectorOther is returned when no CPV prefix matches.
const SectorOther = "Other"

// cpvSectors maps CPV code prefixes to sectors. Lookup is longest-prefix:
// a more specific prefix always wins over a division-level one.
var cpvSectors = map[string]string{
	"09": "Energy",
	"31": "Energy",
	"33": "Healthcare",
	"34": "Transport",
	"45": "Construction",
	"48": "IT",
	"50": "Maintenance",
	"60": "Transport",
	"71": "Engineering",
	"72": "IT",
	"79": "Business Services",
	"80": "Education",
	"85": "Healthcare",
	"90": "Environment",
	// Subdivision overrides.
	"4511": "Demolition",
	"4523": "Civil Engineering",
	"7222": "IT Consulting",
}

// SectorForCodes classifies a code set by longest-prefix match against the
// fixed CPV table. The first code that matches any prefix decides; among
// prefixes matching one code, the longest wins. Unmatched sets yield SectorOther.
func SectorForCodes(codes []string) string {
	best := ""
	bestLen := 0
	for _, code := range codes {
		code = strings.TrimSpace(code)
		for prefix, sector := range cpvSectors {
			if len(prefix) > bestLen && strings.HasPrefix(code, prefix) {
				best = sector
				bestLen = len(prefix)
			}
		}
	}
	if best == "" {
		return SectorOther
	}
	return best
}
