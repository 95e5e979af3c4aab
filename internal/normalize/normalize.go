// Package normalize canonicalizes location, job type, salary and the
// remote and rotational-work flags of validated records.
package normalize

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/amishk599/harvester/internal/model"
)

// provinces maps every recognised province or territory spelling to its
// two-letter code.
var provinces = map[string]string{
	"alberta":                   "AB",
	"british columbia":          "BC",
	"manitoba":                  "MB",
	"new brunswick":             "NB",
	"newfoundland and labrador": "NL",
	"newfoundland":              "NL",
	"nova scotia":               "NS",
	"northwest territories":     "NT",
	"nunavut":                   "NU",
	"ontario":                   "ON",
	"prince edward island":      "PE",
	"quebec":                    "QC",
	"québec":                    "QC",
	"saskatchewan":              "SK",
	"yukon":                     "YT",
	"ab":                        "AB",
	"bc":                        "BC",
	"mb":                        "MB",
	"nb":                        "NB",
	"nl":                        "NL",
	"ns":                        "NS",
	"nt":                        "NT",
	"nu":                        "NU",
	"on":                        "ON",
	"pe":                        "PE",
	"pei":                       "PE",
	"qc":                        "QC",
	"sk":                        "SK",
	"yt":                        "YT",
}

type provincePattern struct {
	code string
	re   *regexp.Regexp
}

// provincePatterns are tried longest name first. Abbreviations only count
// at the end of a comma-separated segment or before a postal code, so words
// like "on" inside a sentence are not taken for Ontario.
var provincePatterns = func() []provincePattern {
	names := make([]string, 0, len(provinces))
	for name := range provinces {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	patterns := make([]provincePattern, 0, len(names))
	for _, name := range names {
		expr := `(?i)\b` + regexp.QuoteMeta(name) + `\b`
		if len(name) <= 3 {
			expr = `(?i)\b` + regexp.QuoteMeta(name) + `\s*(?:$|[,;)/|]|[a-z]\d[a-z])`
		}
		patterns = append(patterns, provincePattern{code: provinces[name], re: regexp.MustCompile(expr)})
	}
	return patterns
}()

var jobTypes = map[string]model.JobType{
	"full-time":  model.JobTypeFullTime,
	"full time":  model.JobTypeFullTime,
	"fulltime":   model.JobTypeFullTime,
	"permanent":  model.JobTypeFullTime,
	"full_time":  model.JobTypeFullTime,
	"part-time":  model.JobTypePartTime,
	"part time":  model.JobTypePartTime,
	"parttime":   model.JobTypePartTime,
	"part_time":  model.JobTypePartTime,
	"contract":   model.JobTypeContract,
	"contractor": model.JobTypeContract,
	"temp":       model.JobTypeTemporary,
	"temporary":  model.JobTypeTemporary,
	"seasonal":   model.JobTypeTemporary,
	"intern":     model.JobTypeInternship,
	"internship": model.JobTypeInternship,
	"co-op":      model.JobTypeInternship,
	"coop":       model.JobTypeInternship,
}

var remoteKeywords = []string{"remote", "work from home", "wfh", "virtual", "telecommute"}

var fifoKeywords = []string{
	"fly-in", "fly in", "fly-out", "fly out", "fifo",
	"camp", "rotational", "rotation", "2 weeks on", "14 days on",
}

var salaryNumberRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Normalizer applies the canonicalization rules. It is safe for concurrent use.
type Normalizer struct {
	defaultCountry  string
	defaultCurrency string
}

// New creates a Normalizer that fills in country and currency defaults.
func New(defaultCountry, defaultCurrency string) *Normalizer {
	return &Normalizer{defaultCountry: defaultCountry, defaultCurrency: defaultCurrency}
}

// Normalize rewrites rec in place and returns it. Applying it twice gives
// the same record as applying it once.
func (n *Normalizer) Normalize(rec *model.JobRecord) *model.JobRecord {
	if rec.Location != "" {
		city, province := splitLocation(rec.Location)
		if province != "" {
			rec.Province = province
		} else if code, ok := provinces[strings.ToLower(strings.TrimSpace(rec.Province))]; ok {
			rec.Province = code
		}
		if city != "" {
			rec.City = city
		}
		if rec.Country == "" {
			rec.Country = n.defaultCountry
		}
	}

	rec.JobType = normalizeJobType(string(rec.JobType))

	rec.IsRemote = containsAny(fold(rec.Location, rec.Title, rec.Description), remoteKeywords)
	rec.IsFlyInFlyOut = containsAny(fold(rec.Location, rec.Description), fifoKeywords)

	if rec.SalaryRaw != "" {
		lo, hi, period := parseSalary(rec.SalaryRaw)
		if lo != nil {
			rec.SalaryMin, rec.SalaryMax = lo, hi
		}
		rec.SalaryPeriod = period
	} else if rec.SalaryPeriod == "" && (rec.SalaryMin != nil || rec.SalaryMax != nil) {
		rec.SalaryPeriod = model.SalaryYearly
	}
	if rec.SalaryCurrency == "" {
		rec.SalaryCurrency = n.defaultCurrency
	}
	return rec
}

// splitLocation finds the province in location and returns the city text
// preceding it. Without a province match the whole string is the city.
func splitLocation(location string) (city, province string) {
	location = strings.TrimSpace(location)
	for _, p := range provincePatterns {
		loc := p.re.FindStringIndex(location)
		if loc == nil {
			continue
		}
		before := strings.TrimRight(location[:loc[0]], " ,-–(")
		if i := strings.LastIndex(before, ","); i >= 0 {
			before = before[i+1:]
		}
		return strings.TrimSpace(before), p.code
	}
	return location, ""
}

func normalizeJobType(s string) model.JobType {
	if jt, ok := jobTypes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return jt
	}
	return model.JobTypeFullTime
}

// parseSalary extracts the salary range and pay period from free text such
// as "$80,000 - $95,000 per year" or "$32.50/hr".
func parseSalary(raw string) (lo, hi *int, period model.SalaryPeriod) {
	text := strings.ToLower(raw)
	period = model.SalaryYearly
	if strings.Contains(text, "hour") || strings.Contains(text, "/hr") {
		period = model.SalaryHourly
	}

	var nums []float64
	for _, tok := range salaryNumberRegex.FindAllString(strings.ReplaceAll(text, ",", ""), -1) {
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			nums = append(nums, v)
		}
	}
	if len(nums) == 0 {
		return nil, nil, period
	}
	minV, maxV := int(slices.Min(nums)), int(slices.Max(nums))
	return &minV, &maxV, period
}

func fold(parts ...string) string {
	return cases.Fold().String(strings.Join(parts, " "))
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
