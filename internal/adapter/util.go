// Package adapter turns external job sources into streams of raw listings.
// Every adapter walks a worklist (companies or search keywords) taken from
// configuration and yields one model.RawListing per posting found.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/harvester/internal/fetch"
	"github.com/amishk599/harvester/internal/model"
)

// Company is one employer in an ATS worklist.
type Company struct {
	Name     string
	Token    string // greenhouse board token, lever/ashby site slug
	URL      string // workday careers site
	Industry string // optional source-side category hint
}

// errMalformed marks a page that was fetched but could not be parsed. Such
// pages are logged and skipped rather than reported as failed work.
var errMalformed = errors.New("malformed page")

// newListing starts a raw listing stamped with source and scrape time.
func newListing(source string) model.RawListing {
	return model.RawListing{
		model.FieldSource:    source,
		model.FieldScrapedAt: time.Now().UTC(),
	}
}

// fetchJSON fetches req and decodes the body into v. Decode failures wrap
// errMalformed; fetch failures are returned as-is.
func fetchJSON(ctx context.Context, f fetch.Fetcher, req *fetch.Request, v any) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := f.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return errors.Join(errMalformed, err)
	}
	return nil
}

// htmlToText converts an HTML or HTML-encoded string to plain text.
// It first unescapes HTML entities (handles Greenhouse's double-encoding;
// no-op on already-real HTML), then extracts text nodes and collapses whitespace.
func htmlToText(content string) string {
	if content == "" {
		return ""
	}
	unescaped := html.UnescapeString(content)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		return strings.Join(strings.Fields(unescaped), " ")
	}
	// Block elements would otherwise glue adjacent words together.
	doc.Find("p, li, br, div, h1, h2, h3, h4, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// mapJobType maps a source employment-type label to a canonical job type.
// Unknown or empty labels map to full time.
func mapJobType(label string) model.JobType {
	l := strings.ToLower(label)
	switch {
	case l == "":
		return model.JobTypeFullTime
	case strings.Contains(l, "part"):
		return model.JobTypePartTime
	case strings.Contains(l, "intern"), strings.Contains(l, "co-op"):
		return model.JobTypeInternship
	case strings.Contains(l, "contract"), strings.Contains(l, "term"):
		return model.JobTypeContract
	case strings.Contains(l, "seasonal"), strings.Contains(l, "temp"):
		return model.JobTypeTemporary
	default:
		return model.JobTypeFullTime
	}
}
