package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/amishk599/harvester/internal/fetch"
	"github.com/amishk599/harvester/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID          int64                  `json:"id"`
	Title       string                 `json:"title"`
	Location    greenhouseLocation     `json:"location"`
	Content     string                 `json:"content"`
	Departments []greenhouseDepartment `json:"departments"`
	UpdatedAt   string                 `json:"updated_at"`
	CreatedAt   string                 `json:"created_at"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseDepartment struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches jobs from the Greenhouse public boards API for
// every company in its worklist.
type GreenhouseAdapter struct {
	companies []Company
	fetcher   fetch.Fetcher
	baseURL   string
	logger    *slog.Logger
}

// NewGreenhouseAdapter creates an adapter over a list of Greenhouse boards.
func NewGreenhouseAdapter(companies []Company, fetcher fetch.Fetcher, logger *slog.Logger) *GreenhouseAdapter {
	return &GreenhouseAdapter{
		companies: companies,
		fetcher:   fetcher,
		baseURL:   greenhouseBaseURL,
		logger:    logger,
	}
}

func (a *GreenhouseAdapter) Source() string { return "greenhouse" }

// Listings yields every posting on every configured board. A board that
// cannot be fetched is reported as a *model.PageError and skipped.
func (a *GreenhouseAdapter) Listings(ctx context.Context) iter.Seq2[model.RawListing, error] {
	return func(yield func(model.RawListing, error) bool) {
		for _, co := range a.companies {
			if ctx.Err() != nil {
				return
			}

			url := fmt.Sprintf("%s/%s/jobs?content=true", a.baseURL, co.Token)
			var ghResp greenhouseResponse
			if err := fetchJSON(ctx, a.fetcher, fetch.Get(url), &ghResp); err != nil {
				if errors.Is(err, errMalformed) {
					a.logger.Warn("skipping malformed greenhouse board", "company", co.Name, "error", err)
					continue
				}
				if !yield(nil, &model.PageError{Source: a.Source(), Entity: co.Token, Page: 1, Err: err}) {
					return
				}
				continue
			}

			a.logger.Debug("greenhouse board fetched", "company", co.Name, "jobs", len(ghResp.Jobs))

			for _, gj := range ghResp.Jobs {
				if !yield(a.listing(co, gj), nil) {
					return
				}
			}
		}
	}
}

func (a *GreenhouseAdapter) listing(co Company, gj greenhouseJob) model.RawListing {
	departments := make([]string, 0, len(gj.Departments))
	for _, d := range gj.Departments {
		if d.Name != "" {
			departments = append(departments, d.Name)
		}
	}

	posted := gj.UpdatedAt
	if posted == "" {
		posted = gj.CreatedAt
	}

	l := newListing(a.Source())
	l.Set(model.FieldTitle, gj.Title)
	l.Set(model.FieldCompanyName, co.Name)
	l.Set(model.FieldLocation, gj.Location.Name)
	l.Set(model.FieldIndustry, co.Industry)
	l.Set(model.FieldDescription, htmlToText(gj.Content))
	l.Set(model.FieldRequirements, strings.Join(departments, ", "))
	l.Set(model.FieldPostedAt, posted)
	l.Set(model.FieldSourceURL, fmt.Sprintf("https://boards.greenhouse.io/%s/jobs/%d", co.Token, gj.ID))
	l.Set(model.FieldSourceID, fmt.Sprintf("greenhouse_%s_%d", co.Token, gj.ID))
	return l
}
