// Package validate turns loosely typed raw listings into JobRecords,
// rejecting the ones that lack the fields every later stage relies on.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"github.com/amishk599/harvester/internal/model"
)

const (
	DefaultMaxTitle       = 500
	DefaultMaxDescription = 50000
)

// fields mirrors the raw listing keys; mapstructure does the weak typing
// (numbers in strings, float salaries, several date layouts).
type fields struct {
	Title        string     `mapstructure:"title"`
	CompanyName  string     `mapstructure:"company_name"`
	CompanyID    string     `mapstructure:"company_id"`
	Location     string     `mapstructure:"location"`
	City         string     `mapstructure:"city"`
	Province     string     `mapstructure:"province"`
	Country      string     `mapstructure:"country"`
	Latitude     *float64   `mapstructure:"latitude"`
	Longitude    *float64   `mapstructure:"longitude"`
	Industry     string     `mapstructure:"industry"`
	JobType      string     `mapstructure:"job_type"`
	SalaryRaw    string     `mapstructure:"salary_raw"`
	SalaryMin    *float64   `mapstructure:"salary_min"`
	SalaryMax    *float64   `mapstructure:"salary_max"`
	Description  string     `mapstructure:"description"`
	Requirements string     `mapstructure:"requirements"`
	Source       string     `mapstructure:"source"`
	SourceID     string     `mapstructure:"source_id"`
	SourceURL    string     `mapstructure:"source_url"`
	PostedAt     *time.Time `mapstructure:"posted_at"`
	ExpiresAt    *time.Time `mapstructure:"expires_at"`
	ScrapedAt    *time.Time `mapstructure:"scraped_at"`
}

// Validator checks raw listings and builds JobRecords from them.
type Validator struct {
	maxTitle       int
	maxDescription int
	now            func() time.Time
}

// New returns a Validator with the default length limits.
func New() *Validator {
	return &Validator{
		maxTitle:       DefaultMaxTitle,
		maxDescription: DefaultMaxDescription,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Validate returns the JobRecord for raw, or a *model.Rejection when a
// required field is missing. Optional fields that fail to decode are left
// unset; they never cost the record.
func (v *Validator) Validate(raw model.RawListing) (*model.JobRecord, error) {
	var f fields
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           &f,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(timeHook, numberHook),
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	// mapstructure keeps decoding the remaining fields after one fails, so
	// the error only matters when it left a required field empty.
	decodeErr := dec.Decode(map[string]any(raw))

	f.Title = collapse(f.Title)
	f.CompanyName = collapse(f.CompanyName)
	f.Location = collapse(f.Location)
	f.Description = collapse(f.Description)
	f.Requirements = collapse(f.Requirements)
	f.Source = strings.TrimSpace(f.Source)
	f.SourceURL = strings.TrimSpace(f.SourceURL)
	f.SourceID = strings.TrimSpace(f.SourceID)

	if decodeErr != nil && (f.Title == "" || f.CompanyName == "" || f.Source == "" || f.SourceURL == "") {
		return nil, model.Reject(model.StageValidate, "decode: %v", decodeErr)
	}

	switch {
	case f.Title == "":
		return nil, model.Reject(model.StageValidate, "missing required field: title")
	case f.CompanyName == "":
		return nil, model.Reject(model.StageValidate, "missing required field: company_name")
	case f.Source == "":
		return nil, model.Reject(model.StageValidate, "missing required field: source")
	case f.SourceURL == "":
		return nil, model.Reject(model.StageValidate, "missing required field: source_url")
	}

	rec := &model.JobRecord{
		Title:        truncate(f.Title, v.maxTitle),
		CompanyName:  f.CompanyName,
		Location:     f.Location,
		City:         strings.TrimSpace(f.City),
		Province:     strings.TrimSpace(f.Province),
		Country:      strings.TrimSpace(f.Country),
		Latitude:     f.Latitude,
		Longitude:    f.Longitude,
		JobType:      model.JobType(strings.TrimSpace(f.JobType)),
		SalaryRaw:    strings.TrimSpace(f.SalaryRaw),
		SalaryMin:    toInt(f.SalaryMin),
		SalaryMax:    toInt(f.SalaryMax),
		Description:  truncate(f.Description, v.maxDescription),
		Requirements: f.Requirements,
		Source:       f.Source,
		SourceID:     f.SourceID,
		SourceURL:    f.SourceURL,
		PostedAt:     nonZero(f.PostedAt),
		ExpiresAt:    nonZero(f.ExpiresAt),
	}

	// Sources without a native id are keyed by their URL.
	if rec.SourceID == "" {
		rec.SourceID = rec.SourceURL
	}
	if id := strings.TrimSpace(f.CompanyID); id != "" {
		rec.CompanyID = &id
	}
	if ind, ok := model.ParseIndustry(strings.TrimSpace(f.Industry)); ok {
		rec.Industry = ind
	}
	if at := nonZero(f.ScrapedAt); at != nil {
		rec.ScrapedAt = *at
	} else {
		rec.ScrapedAt = v.now()
	}

	return rec, nil
}

// collapse folds runs of whitespace into single spaces and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func toInt(f *float64) *int {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	n := int(*f)
	return &n
}

func nonZero(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	floatPtrType = reflect.TypeOf((*float64)(nil))
)

// numberHook decodes optional numbers leniently: numeric strings are parsed,
// anything else ("80,000", "competitive", "n/a") becomes nil. It must stay
// last in the hook chain, since a nil result cannot be fed to another hook.
func numberHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != floatPtrType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return nil, nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, nil
		}
		return n, nil
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return nil, nil
		}
		return n, nil
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v, nil
	default:
		return nil, nil
	}
}

// timeHook decodes timestamps from strings in any of timeLayouts and from
// unix milliseconds. Unparseable values become the zero time, which the
// caller treats as unset.
func timeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return *v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, nil
	case int64:
		return time.UnixMilli(v), nil
	case float64:
		return time.UnixMilli(int64(v)), nil
	default:
		return time.Time{}, nil
	}
}
