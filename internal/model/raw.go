package model

import (
	"fmt"
	"strings"
)

// Field names understood by the validation stage. Adapters may set any
// subset; only title, company_name, source and source_url are required.
const (
	FieldTitle        = "title"
	FieldCompanyName  = "company_name"
	FieldCompanyID    = "company_id"
	FieldLocation     = "location"
	FieldCity         = "city"
	FieldProvince     = "province"
	FieldCountry      = "country"
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldIndustry     = "industry"
	FieldJobType      = "job_type"
	FieldSalaryRaw    = "salary_raw"
	FieldSalaryMin    = "salary_min"
	FieldSalaryMax    = "salary_max"
	FieldDescription  = "description"
	FieldRequirements = "requirements"
	FieldSource       = "source"
	FieldSourceID     = "source_id"
	FieldSourceURL    = "source_url"
	FieldPostedAt     = "posted_at"
	FieldExpiresAt    = "expires_at"
	FieldScrapedAt    = "scraped_at"
)

// RawListing is the loosely structured record an adapter hands to the pipeline.
type RawListing map[string]any

// String returns the value stored at key as a string. Missing or nil values
// yield "".
func (r RawListing) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Set stores v at key unless v is the zero string, which keeps the listing
// free of empty placeholders.
func (r RawListing) Set(key string, v any) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return
	}
	if v == nil {
		return
	}
	r[key] = v
}
