package model

import (
	"context"
	"iter"
	"time"
)

// Industry is one of the fixed resource-sector categories.
type Industry string

const (
	IndustryMining          Industry = "mining"
	IndustryOilGas          Industry = "oil_gas"
	IndustryForestry        Industry = "forestry"
	IndustryFishing         Industry = "fishing"
	IndustryAgriculture     Industry = "agriculture"
	IndustryRenewableEnergy Industry = "renewable_energy"
	IndustryEnvironmental   Industry = "environmental"
)

// Industries lists every category in tie-break order.
var Industries = []Industry{
	IndustryMining,
	IndustryOilGas,
	IndustryForestry,
	IndustryFishing,
	IndustryAgriculture,
	IndustryRenewableEnergy,
	IndustryEnvironmental,
}

// ParseIndustry returns the Industry for s, or false if s is not a known category.
func ParseIndustry(s string) (Industry, bool) {
	for _, ind := range Industries {
		if string(ind) == s {
			return ind, true
		}
	}
	return "", false
}

// JobType is the canonical employment type.
type JobType string

const (
	JobTypeFullTime   JobType = "full_time"
	JobTypePartTime   JobType = "part_time"
	JobTypeContract   JobType = "contract"
	JobTypeTemporary  JobType = "temporary"
	JobTypeInternship JobType = "internship"
)

// SalaryPeriod is the unit a salary range is expressed in.
type SalaryPeriod string

const (
	SalaryHourly SalaryPeriod = "hourly"
	SalaryYearly SalaryPeriod = "yearly"
)

// JobRecord is the canonical listing that flows through the pipeline after
// validation. (Source, SourceID) is the natural key used for upserts.
type JobRecord struct {
	Title       string
	CompanyName string
	CompanyID   *string // internal company linkage, never overwritten by ingestion

	Location  string // raw location text
	City      string
	Province  string // two-letter code, empty when unknown
	Country   string
	Latitude  *float64
	Longitude *float64

	IsRemote       bool
	IsFlyInFlyOut  bool
	Industry       Industry // empty until classified
	JobType        JobType
	SalaryRaw      string
	SalaryMin      *int
	SalaryMax      *int
	SalaryCurrency string
	SalaryPeriod   SalaryPeriod

	Description  string
	Requirements string

	Source    string
	SourceID  string
	SourceURL string

	PostedAt  *time.Time
	ExpiresAt *time.Time
	ScrapedAt time.Time

	Fingerprint    uint64
	HasFingerprint bool
}

// HasCoordinates reports whether both latitude and longitude are set.
func (r *JobRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// DocumentID is the deterministic search-index id for the record.
func (r *JobRecord) DocumentID() string {
	return r.Source + "_" + r.SourceID
}

// Adapter produces raw listings from one external source family.
// Yielded errors are non-fatal failed units of work (*PageError); the sequence
// keeps going with the next page or worklist entry.
type Adapter interface {
	Source() string
	Listings(ctx context.Context) iter.Seq2[RawListing, error]
}
