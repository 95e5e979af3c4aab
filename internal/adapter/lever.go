package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/amishk599/harvester/internal/fetch"
	"github.com/amishk599/harvester/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team       string `json:"team"`
	Location   string `json:"location"`
	Commitment string `json:"commitment"`
}

type leverList struct {
	Text    string `json:"text"`
	Content string `json:"content"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Description      string          `json:"description"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Lists            []leverList     `json:"lists"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	HostedURL        string          `json:"hostedUrl"`
}

// LeverAdapter fetches jobs from the Lever public postings API.
type LeverAdapter struct {
	companies []Company
	fetcher   fetch.Fetcher
	baseURL   string
	logger    *slog.Logger
}

// NewLeverAdapter creates an adapter over a list of Lever sites.
func NewLeverAdapter(companies []Company, fetcher fetch.Fetcher, logger *slog.Logger) *LeverAdapter {
	return &LeverAdapter{
		companies: companies,
		fetcher:   fetcher,
		baseURL:   leverBaseURL,
		logger:    logger,
	}
}

func (a *LeverAdapter) Source() string { return "lever" }

// Listings yields every posting of every configured Lever site.
func (a *LeverAdapter) Listings(ctx context.Context) iter.Seq2[model.RawListing, error] {
	return func(yield func(model.RawListing, error) bool) {
		for _, co := range a.companies {
			if ctx.Err() != nil {
				return
			}

			url := fmt.Sprintf("%s/%s?mode=json", a.baseURL, co.Token)
			var leverJobs []leverJob
			if err := fetchJSON(ctx, a.fetcher, fetch.Get(url), &leverJobs); err != nil {
				if errors.Is(err, errMalformed) {
					a.logger.Warn("skipping malformed lever site", "company", co.Name, "error", err)
					continue
				}
				if !yield(nil, &model.PageError{Source: a.Source(), Entity: co.Token, Page: 1, Err: err}) {
					return
				}
				continue
			}

			a.logger.Debug("lever site fetched", "company", co.Name, "jobs", len(leverJobs))

			for _, lj := range leverJobs {
				if !yield(a.listing(co, lj), nil) {
					return
				}
			}
		}
	}
}

func (a *LeverAdapter) listing(co Company, lj leverJob) model.RawListing {
	var parts []string
	body := lj.DescriptionPlain
	if body == "" {
		body = htmlToText(lj.Description)
	}
	if body != "" {
		parts = append(parts, body)
	}
	for _, list := range lj.Lists {
		if list.Text != "" {
			parts = append(parts, list.Text+":")
		}
		if list.Content != "" {
			parts = append(parts, htmlToText(list.Content))
		}
	}

	sourceURL := lj.HostedURL
	if sourceURL == "" {
		sourceURL = fmt.Sprintf("https://jobs.lever.co/%s/%s", co.Token, lj.ID)
	}

	l := newListing(a.Source())
	l.Set(model.FieldTitle, lj.Text)
	l.Set(model.FieldCompanyName, co.Name)
	l.Set(model.FieldLocation, lj.Categories.Location)
	l.Set(model.FieldIndustry, co.Industry)
	l.Set(model.FieldJobType, string(mapJobType(lj.Categories.Commitment)))
	l.Set(model.FieldDescription, strings.Join(parts, "\n\n"))
	l.Set(model.FieldRequirements, lj.Categories.Team)
	if lj.CreatedAt > 0 {
		l.Set(model.FieldPostedAt, time.UnixMilli(lj.CreatedAt).UTC())
	}
	l.Set(model.FieldSourceURL, sourceURL)
	l.Set(model.FieldSourceID, fmt.Sprintf("lever_%s_%s", co.Token, lj.ID))
	return l
}
