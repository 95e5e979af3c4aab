package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/amishk599/harvester/internal/fetch"
	"github.com/amishk599/harvester/internal/model"
)

// Markers the rendering browser waits for before a page counts as loaded.
const (
	workdayListMarker   = `li[data-automation-id="jobItem"]`
	workdayDetailMarker = `div[data-automation-id="jobPostingDescription"]`
)

// workdayPosting is one entry of the jobPostings array embedded in a
// rendered Workday listing page.
type workdayPosting struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	BulletFields  []string `json:"bulletFields"`
}

type workdayEmbedded struct {
	JobPostings []workdayPosting `json:"jobPostings"`
}

// workdayCard is a job found on a listing page, from either source.
type workdayCard struct {
	title    string
	location string
	href     string
	jobID    string
	postedAt *time.Time
}

var embeddedPostingsRegex = regexp.MustCompile(`(?s)\{.*"jobPostings".*\}`)

// WorkdayAdapter scrapes JavaScript-rendered Workday career sites. Listing
// pages are read from embedded JSON when present, otherwise from job cards;
// each job's detail page supplies the description.
type WorkdayAdapter struct {
	companies []Company
	pageCap   int
	fetcher   fetch.Fetcher
	logger    *slog.Logger
}

// NewWorkdayAdapter creates an adapter over a list of Workday career sites.
// fetcher must be able to serve rendered requests.
func NewWorkdayAdapter(companies []Company, pageCap int, fetcher fetch.Fetcher, logger *slog.Logger) *WorkdayAdapter {
	return &WorkdayAdapter{
		companies: companies,
		pageCap:   pageCap,
		fetcher:   fetcher,
		logger:    logger,
	}
}

func (a *WorkdayAdapter) Source() string { return "workday" }

// Listings walks each site's listing pages, following the next-page link
// until it disappears or the page cap is reached. Once a site has shown a
// next-page link, a page that fails or cannot be parsed is skipped in favour
// of the following ?page=N.
func (a *WorkdayAdapter) Listings(ctx context.Context) iter.Seq2[model.RawListing, error] {
	return func(yield func(model.RawListing, error) bool) {
		for _, co := range a.companies {
			if !a.crawlCompany(ctx, co, yield) {
				return
			}
		}
	}
}

func (a *WorkdayAdapter) crawlCompany(ctx context.Context, co Company, yield func(model.RawListing, error) bool) bool {
	slug := workdaySlug(co.URL)
	pageURL := co.URL
	seen := map[string]bool{}
	paged := false

	for page := 1; page <= a.pageCap && pageURL != "" && !seen[pageURL]; page++ {
		if ctx.Err() != nil {
			return false
		}
		seen[pageURL] = true

		resp, err := a.fetcher.Fetch(ctx, fetch.Rendered(pageURL, fetch.RenderOptions{WaitFor: workdayListMarker}))
		if err != nil {
			if !yield(nil, &model.PageError{Source: a.Source(), Entity: co.Name, Page: page, Err: err}) {
				return false
			}
			if pageURL = skipTo(co.URL, page+1, paged); pageURL == "" {
				return true
			}
			continue
		}

		base, _ := url.Parse(pageURL)
		cards, next, err := parseWorkdayListing(resp.Body, base)
		if err != nil {
			a.logger.Warn("skipping malformed workday page", "company", co.Name, "page", page, "error", err)
			if pageURL = skipTo(co.URL, page+1, paged); pageURL == "" {
				return true
			}
			continue
		}
		a.logger.Debug("workday page parsed", "company", co.Name, "page", page, "jobs", len(cards))

		for _, card := range cards {
			listing, err := a.detail(ctx, co, slug, card)
			if err != nil {
				err = &model.PageError{Source: a.Source(), Entity: co.Name + "/" + card.jobID, Page: page, Err: err}
			}
			if !yield(listing, err) {
				return false
			}
		}

		paged = paged || next != ""
		pageURL = next
	}
	return true
}

// skipTo returns the listing URL for page when the site is known to paginate,
// or "" when there is no evidence of further pages.
func skipTo(siteURL string, page int, paged bool) string {
	if !paged {
		return ""
	}
	u, err := url.Parse(siteURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// detail fetches one job page and builds the listing from card and page data.
func (a *WorkdayAdapter) detail(ctx context.Context, co Company, slug string, card workdayCard) (model.RawListing, error) {
	resp, err := a.fetcher.Fetch(ctx, fetch.Rendered(card.href, fetch.RenderOptions{WaitFor: workdayDetailMarker}))
	if err != nil {
		return nil, err
	}

	title, description := parseWorkdayDetail(resp.Body, card.href)
	if card.title != "" {
		title = card.title
	}

	l := newListing(a.Source())
	l.Set(model.FieldTitle, title)
	l.Set(model.FieldCompanyName, co.Name)
	l.Set(model.FieldLocation, card.location)
	l.Set(model.FieldIndustry, co.Industry)
	l.Set(model.FieldDescription, description)
	if card.postedAt != nil {
		l.Set(model.FieldPostedAt, *card.postedAt)
	}
	l.Set(model.FieldSourceURL, card.href)
	l.Set(model.FieldSourceID, fmt.Sprintf("workday_%s_%s", slug, card.jobID))
	return l, nil
}

// parseWorkdayListing extracts job cards and the next-page URL from a
// rendered listing page.
func parseWorkdayListing(body []byte, base *url.URL) ([]workdayCard, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}

	cards := embeddedCards(doc, base)
	if len(cards) == 0 {
		cards = htmlCards(doc, base)
	}

	next, ok := doc.Find(`button[data-automation-id="paginationNextBtn"]`).Attr("href")
	if !ok || next == "" {
		next, _ = doc.Find(`a[aria-label="next page"]`).Attr("href")
	}
	return cards, resolve(base, next), nil
}

func embeddedCards(doc *goquery.Document, base *url.URL) []workdayCard {
	var cards []workdayCard
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "jobPostings") {
			return true
		}
		match := embeddedPostingsRegex.FindString(text)
		if match == "" {
			return true
		}
		var data workdayEmbedded
		if err := json.Unmarshal([]byte(match), &data); err != nil {
			return true
		}
		for _, p := range data.JobPostings {
			href := resolve(base, p.ExternalPath)
			if p.Title == "" || href == "" {
				continue
			}
			id := path.Base(p.ExternalPath)
			if len(p.BulletFields) > 0 && p.BulletFields[0] != "" {
				id = p.BulletFields[0]
			}
			cards = append(cards, workdayCard{
				title:    p.Title,
				location: p.LocationsText,
				href:     href,
				jobID:    id,
				postedAt: parsePostedOn(p.PostedOn),
			})
		}
		return false
	})
	return cards
}

func htmlCards(doc *goquery.Document, base *url.URL) []workdayCard {
	var cards []workdayCard
	doc.Find(`li[data-automation-id="jobItem"]`).Each(func(_ int, s *goquery.Selection) {
		link := s.Find(`a[data-automation-id="jobTitle"]`).First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		href = resolve(base, href)
		if title == "" || href == "" {
			return
		}
		u, _ := url.Parse(href)
		cards = append(cards, workdayCard{
			title:    title,
			location: strings.TrimSpace(s.Find(`dd[data-automation-id="locations"]`).First().Text()),
			href:     href,
			jobID:    path.Base(u.Path),
			postedAt: parsePostedOn(strings.TrimSpace(s.Find(`dd[data-automation-id="postedOn"]`).First().Text())),
		})
	})
	return cards
}

// parseWorkdayDetail returns the page heading and the job description. When
// the description container is missing, readability extracts the main text.
func parseWorkdayDetail(body []byte, pageURL string) (title, description string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}
	title = strings.TrimSpace(doc.Find("h1").First().Text())

	desc := doc.Find(workdayDetailMarker).First()
	if desc.Length() > 0 {
		if h, err := desc.Html(); err == nil {
			description = htmlToText(h)
		}
	}
	if description != "" {
		return title, description
	}

	u, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return title, ""
	}
	if title == "" {
		title = strings.TrimSpace(article.Title)
	}
	return title, strings.Join(strings.Fields(article.TextContent), " ")
}

// workdaySlug is the tenant subdomain, e.g. "teck" for teck.wd3.myworkdayjobs.com.
func workdaySlug(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	host := u.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return r.String()
	}
	// Embedded externalPath values ("/job/...") are relative to the tenant
	// root, not the host.
	if strings.HasPrefix(ref, "/job/") {
		ref = strings.TrimPrefix(ref, "/")
		r, _ = url.Parse(ref)
	}
	if !r.IsAbs() && !strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "?") {
		b := *base
		if !strings.HasSuffix(b.Path, "/") {
			b.Path += "/"
		}
		return b.ResolveReference(r).String()
	}
	return base.ResolveReference(r).String()
}

var daysAgoRegex = regexp.MustCompile(`^Posted (\d+) Days? Ago$`)

// parsePostedOn converts a Workday relative date string to an approximate timestamp.
func parsePostedOn(postedOn string) *time.Time {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch postedOn {
	case "Posted Today":
		return &today
	case "Posted Yesterday":
		t := today.AddDate(0, 0, -1)
		return &t
	}

	if n, ok := parseDaysAgo(postedOn); ok {
		t := today.AddDate(0, 0, -n)
		return &t
	}

	// "Posted 30+ Days Ago" or unknown → nil
	return nil
}

func parseDaysAgo(s string) (int, bool) {
	matches := daysAgoRegex.FindStringSubmatch(s)
	if matches == nil {
		return 0, false
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
