package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strings"

	"github.com/amishk599/harvester/internal/fetch"
	"github.com/amishk599/harvester/internal/model"
)

const (
	jobbankBaseURL = "https://www.jobbank.gc.ca"
	jobbankPerPage = 25
)

type jobbankSummary struct {
	JobID    int64  `json:"jobId"`
	Title    string `json:"title"`
	Employer string `json:"employer"`
	Location string `json:"location"`
}

type jobbankSearchResponse struct {
	Jobs  []jobbankSummary `json:"jobs"`
	Total int              `json:"total"`
}

type jobbankDetail struct {
	Title    string `json:"title"`
	Employer struct {
		Name string `json:"name"`
	} `json:"employer"`
	Location struct {
		City     string `json:"city"`
		Province string `json:"province"`
	} `json:"location"`
	Description    string `json:"description"`
	Requirements   string `json:"requirements"`
	EmploymentType string `json:"employmentType"`
	Salary         struct {
		Value string   `json:"value"`
		Min   *float64 `json:"min"`
		Max   *float64 `json:"max"`
	} `json:"salary"`
	DatePosted  string `json:"datePosted"`
	DateExpires string `json:"dateExpires"`
}

// JobbankAdapter searches the Government of Canada Job Bank once per keyword,
// following result pages up to the page cap and fetching each job's detail.
type JobbankAdapter struct {
	keywords     []string
	fetchDetails bool
	pageCap      int
	fetcher      fetch.Fetcher
	baseURL      string
	logger       *slog.Logger
}

// NewJobbankAdapter creates an adapter searching for each keyword.
func NewJobbankAdapter(keywords []string, fetchDetails bool, pageCap int, fetcher fetch.Fetcher, logger *slog.Logger) *JobbankAdapter {
	return &JobbankAdapter{
		keywords:     keywords,
		fetchDetails: fetchDetails,
		pageCap:      pageCap,
		fetcher:      fetcher,
		baseURL:      jobbankBaseURL,
		logger:       logger,
	}
}

func (a *JobbankAdapter) Source() string { return "jobbank" }

// Listings yields postings keyword by keyword. A failed or malformed search
// page is skipped and the next page tried, as long as an earlier page told
// us more results exist; a failed detail fetch skips only that job.
func (a *JobbankAdapter) Listings(ctx context.Context) iter.Seq2[model.RawListing, error] {
	return func(yield func(model.RawListing, error) bool) {
		for _, keyword := range a.keywords {
			if !a.searchKeyword(ctx, keyword, yield) {
				return
			}
		}
	}
}

// searchKeyword walks the result pages for one keyword. It returns false
// when the consumer stopped iterating.
func (a *JobbankAdapter) searchKeyword(ctx context.Context, keyword string, yield func(model.RawListing, error) bool) bool {
	total := -1 // unknown until a page parses
	for page := 1; page <= a.pageCap; page++ {
		if ctx.Err() != nil {
			return false
		}

		searchURL := fmt.Sprintf("%s/api/jobsearch?searchstring=%s&page=%d&sort=M",
			a.baseURL, url.QueryEscape(keyword), page)

		var resp jobbankSearchResponse
		if err := fetchJSON(ctx, a.fetcher, fetch.Get(searchURL), &resp); err != nil {
			if errors.Is(err, errMalformed) {
				a.logger.Warn("skipping malformed jobbank page", "keyword", keyword, "page", page, "error", err)
			} else if !yield(nil, &model.PageError{Source: a.Source(), Entity: keyword, Page: page, Err: err}) {
				return false
			}
			if total < 0 || page*jobbankPerPage >= total {
				return true
			}
			continue
		}
		total = resp.Total

		a.logger.Debug("jobbank page fetched",
			"keyword", keyword, "page", page, "jobs", len(resp.Jobs), "total", resp.Total)

		for _, summary := range resp.Jobs {
			if summary.JobID == 0 {
				continue
			}
			listing, err := a.listing(ctx, summary)
			if err != nil {
				if errors.Is(err, errMalformed) {
					a.logger.Warn("skipping malformed jobbank job", "job_id", summary.JobID, "error", err)
					continue
				}
				err = &model.PageError{Source: a.Source(), Entity: fmt.Sprintf("%s/job %d", keyword, summary.JobID), Page: page, Err: err}
			}
			if !yield(listing, err) {
				return false
			}
		}

		if len(resp.Jobs) < jobbankPerPage || page*jobbankPerPage >= resp.Total {
			return true
		}
	}

	a.logger.Info("jobbank page cap reached", "keyword", keyword, "page_cap", a.pageCap)
	return true
}

func (a *JobbankAdapter) listing(ctx context.Context, summary jobbankSummary) (model.RawListing, error) {
	l := newListing(a.Source())
	l.Set(model.FieldSourceID, fmt.Sprintf("%d", summary.JobID))
	l.Set(model.FieldSourceURL, fmt.Sprintf("%s/jobsearch/jobposting/%d", a.baseURL, summary.JobID))

	if !a.fetchDetails {
		l.Set(model.FieldTitle, summary.Title)
		l.Set(model.FieldCompanyName, summary.Employer)
		l.Set(model.FieldLocation, summary.Location)
		return l, nil
	}

	var d jobbankDetail
	detailURL := fmt.Sprintf("%s/api/job/%d", a.baseURL, summary.JobID)
	if err := fetchJSON(ctx, a.fetcher, fetch.Get(detailURL), &d); err != nil {
		return nil, err
	}

	l.Set(model.FieldTitle, firstNonEmpty(d.Title, summary.Title))
	l.Set(model.FieldCompanyName, firstNonEmpty(d.Employer.Name, summary.Employer))
	l.Set(model.FieldLocation, firstNonEmpty(joinNonEmpty(", ", d.Location.City, d.Location.Province), summary.Location))
	l.Set(model.FieldProvince, d.Location.Province)
	l.Set(model.FieldDescription, d.Description)
	l.Set(model.FieldRequirements, d.Requirements)
	l.Set(model.FieldJobType, string(mapJobType(d.EmploymentType)))
	l.Set(model.FieldSalaryRaw, d.Salary.Value)
	if d.Salary.Min != nil {
		l.Set(model.FieldSalaryMin, *d.Salary.Min)
	}
	if d.Salary.Max != nil {
		l.Set(model.FieldSalaryMax, *d.Salary.Max)
	}
	l.Set(model.FieldPostedAt, d.DatePosted)
	l.Set(model.FieldExpiresAt, d.DateExpires)
	return l, nil
}

func joinNonEmpty(sep string, values ...string) string {
	var parts []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
