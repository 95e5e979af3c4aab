package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/amishk599/harvester/internal/fetch"
	"github.com/amishk599/harvester/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Department       string `json:"department"`
	EmploymentType   string `json:"employmentType"`
	Location         string `json:"location"`
	IsRemote         bool   `json:"isRemote"`
	DescriptionPlain string `json:"descriptionPlain"`
	DescriptionHTML  string `json:"descriptionHtml"`
	JobURL           string `json:"jobUrl"`
	PublishedAt      string `json:"publishedAt"`
	IsListed         bool   `json:"isListed"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbyAdapter fetches jobs from the Ashby public job board API.
type AshbyAdapter struct {
	companies []Company
	fetcher   fetch.Fetcher
	baseURL   string
	logger    *slog.Logger
}

// NewAshbyAdapter creates an adapter over a list of Ashby job boards.
func NewAshbyAdapter(companies []Company, fetcher fetch.Fetcher, logger *slog.Logger) *AshbyAdapter {
	return &AshbyAdapter{
		companies: companies,
		fetcher:   fetcher,
		baseURL:   ashbyBaseURL,
		logger:    logger,
	}
}

func (a *AshbyAdapter) Source() string { return "ashby" }

// Listings yields every listed posting on every configured board. Unlisted
// postings are skipped.
func (a *AshbyAdapter) Listings(ctx context.Context) iter.Seq2[model.RawListing, error] {
	return func(yield func(model.RawListing, error) bool) {
		for _, co := range a.companies {
			if ctx.Err() != nil {
				return
			}

			url := fmt.Sprintf("%s/%s", a.baseURL, co.Token)
			var ashbyResp ashbyResponse
			if err := fetchJSON(ctx, a.fetcher, fetch.Get(url), &ashbyResp); err != nil {
				if errors.Is(err, errMalformed) {
					a.logger.Warn("skipping malformed ashby board", "company", co.Name, "error", err)
					continue
				}
				if !yield(nil, &model.PageError{Source: a.Source(), Entity: co.Token, Page: 1, Err: err}) {
					return
				}
				continue
			}

			for _, aj := range ashbyResp.Jobs {
				if !aj.IsListed {
					continue
				}
				if !yield(a.listing(co, aj), nil) {
					return
				}
			}
		}
	}
}

func (a *AshbyAdapter) listing(co Company, aj ashbyJob) model.RawListing {
	description := aj.DescriptionPlain
	if description == "" {
		description = htmlToText(aj.DescriptionHTML)
	}

	location := aj.Location
	if aj.IsRemote && location == "" {
		location = "Remote"
	}

	id := aj.ID
	if id == "" {
		id = aj.JobURL
	}

	l := newListing(a.Source())
	l.Set(model.FieldTitle, aj.Title)
	l.Set(model.FieldCompanyName, co.Name)
	l.Set(model.FieldLocation, location)
	l.Set(model.FieldIndustry, co.Industry)
	l.Set(model.FieldJobType, string(mapJobType(aj.EmploymentType)))
	l.Set(model.FieldDescription, description)
	l.Set(model.FieldRequirements, aj.Department)
	l.Set(model.FieldPostedAt, aj.PublishedAt)
	l.Set(model.FieldSourceURL, aj.JobURL)
	l.Set(model.FieldSourceID, fmt.Sprintf("ashby_%s_%s", co.Token, id))
	return l
}
