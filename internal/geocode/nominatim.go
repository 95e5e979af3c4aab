package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/amishk599/harvester/internal/fetch"
)

// NominatimProvider queries an OpenStreetMap Nominatim server.
type NominatimProvider struct {
	baseURL   string
	userAgent string
	fetcher   fetch.Fetcher
}

// NewNominatimProvider creates a provider. Nominatim's usage policy requires
// an identifying User-Agent.
func NewNominatimProvider(baseURL, userAgent string, fetcher fetch.Fetcher) *NominatimProvider {
	return &NominatimProvider{baseURL: baseURL, userAgent: userAgent, fetcher: fetcher}
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (p *NominatimProvider) Lookup(ctx context.Context, query string) (Point, bool, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("countrycodes", "ca")

	req := fetch.Get(p.baseURL + "/search?" + params.Encode())
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Point{}, false, fmt.Errorf("nominatim request: %w", err)
	}

	var places []nominatimPlace
	if err := json.Unmarshal(resp.Body, &places); err != nil {
		return Point{}, false, fmt.Errorf("parse nominatim response: %w", err)
	}
	if len(places) == 0 {
		return Point{}, false, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Point{}, false, fmt.Errorf("parse latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Point{}, false, fmt.Errorf("parse longitude %q: %w", places[0].Lon, err)
	}
	return Point{Lat: lat, Lon: lon}, true, nil
}
