package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/amishk599/harvester/internal/fetch"
)

// GoogleProvider queries the Google Geocoding API.
type GoogleProvider struct {
	baseURL string
	apiKey  string
	fetcher fetch.Fetcher
}

func NewGoogleProvider(baseURL, apiKey string, fetcher fetch.Fetcher) *GoogleProvider {
	return &GoogleProvider{baseURL: baseURL, apiKey: apiKey, fetcher: fetcher}
}

// googleResponse mirrors the relevant fields of a geocode/json response.
type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (p *GoogleProvider) Lookup(ctx context.Context, query string) (Point, bool, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("region", "ca")
	params.Set("key", p.apiKey)

	resp, err := p.fetcher.Fetch(ctx, fetch.Get(p.baseURL+"/json?"+params.Encode()))
	if err != nil {
		return Point{}, false, fmt.Errorf("google geocode request: %w", err)
	}

	var gr googleResponse
	if err := json.Unmarshal(resp.Body, &gr); err != nil {
		return Point{}, false, fmt.Errorf("parse google geocode response: %w", err)
	}

	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return Point{}, false, nil
	default:
		return Point{}, false, fmt.Errorf("google geocode status %s: %s", gr.Status, gr.ErrorMessage)
	}
	if len(gr.Results) == 0 {
		return Point{}, false, nil
	}
	loc := gr.Results[0].Geometry.Location
	return Point{Lat: loc.Lat, Lon: loc.Lng}, true, nil
}
