// Package search keeps the Elasticsearch jobs index in step with the
// relational store.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/amishk599/harvester/internal/model"
)

// DefaultIndex is the index name used when none is configured.
const DefaultIndex = "jobs"

// mapping mirrors the columns the search API filters and ranks on.
var mapping = map[string]any{
	"settings": map[string]any{
		"number_of_shards":   1,
		"number_of_replicas": 0,
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"title":             map[string]any{"type": "text", "analyzer": "english"},
			"description":       map[string]any{"type": "text", "analyzer": "english"},
			"requirements":      map[string]any{"type": "text", "analyzer": "english"},
			"location":          map[string]any{"type": "text"},
			"company_name":      map[string]any{"type": "keyword"},
			"city":              map[string]any{"type": "keyword"},
			"province":          map[string]any{"type": "keyword"},
			"country":           map[string]any{"type": "keyword"},
			"industry":          map[string]any{"type": "keyword"},
			"job_type":          map[string]any{"type": "keyword"},
			"source":            map[string]any{"type": "keyword"},
			"source_url":        map[string]any{"type": "keyword"},
			"salary_period":     map[string]any{"type": "keyword"},
			"salary_min":        map[string]any{"type": "integer"},
			"salary_max":        map[string]any{"type": "integer"},
			"is_remote":         map[string]any{"type": "boolean"},
			"is_fly_in_fly_out": map[string]any{"type": "boolean"},
			"geo_point":         map[string]any{"type": "geo_point"},
			"posted_at":         map[string]any{"type": "date"},
			"expires_at":        map[string]any{"type": "date"},
			"scraped_at":        map[string]any{"type": "date"},
		},
	},
}

// Indexer writes JobRecords into the search index.
type Indexer interface {
	Index(ctx context.Context, rec *model.JobRecord) error
}

// Config selects the cluster and index.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// ESIndexer is an Indexer backed by Elasticsearch.
type ESIndexer struct {
	client *es.Client
	index  string
}

// NewClient builds an Elasticsearch client for cfg.
func NewClient(cfg Config) (*es.Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// NewESIndexer writes into index through client.
func NewESIndexer(client *es.Client, index string) *ESIndexer {
	if index == "" {
		index = DefaultIndex
	}
	return &ESIndexer{client: client, index: index}
}

// EnsureIndex creates the index with its mapping unless it already exists.
func (x *ESIndexer) EnsureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.index}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", x.index, err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: %s", x.index, res.Status())
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	res, err = x.client.Indices.Create(x.index,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", x.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", x.index, res.String())
	}
	return nil
}

// document is the indexed shape of a JobRecord.
type document struct {
	Title         string     `json:"title"`
	CompanyName   string     `json:"company_name"`
	Location      string     `json:"location,omitempty"`
	City          string     `json:"city,omitempty"`
	Province      string     `json:"province,omitempty"`
	Country       string     `json:"country,omitempty"`
	GeoPoint      *geoPoint  `json:"geo_point,omitempty"`
	Industry      string     `json:"industry,omitempty"`
	JobType       string     `json:"job_type,omitempty"`
	SalaryMin     *int       `json:"salary_min,omitempty"`
	SalaryMax     *int       `json:"salary_max,omitempty"`
	SalaryPeriod  string     `json:"salary_period,omitempty"`
	Description   string     `json:"description,omitempty"`
	Requirements  string     `json:"requirements,omitempty"`
	IsRemote      bool       `json:"is_remote"`
	IsFlyInFlyOut bool       `json:"is_fly_in_fly_out"`
	Source        string     `json:"source"`
	SourceURL     string     `json:"source_url"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ScrapedAt     time.Time  `json:"scraped_at"`
}

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func toDocument(rec *model.JobRecord) document {
	doc := document{
		Title:         rec.Title,
		CompanyName:   rec.CompanyName,
		Location:      rec.Location,
		City:          rec.City,
		Province:      rec.Province,
		Country:       rec.Country,
		Industry:      string(rec.Industry),
		JobType:       string(rec.JobType),
		SalaryMin:     rec.SalaryMin,
		SalaryMax:     rec.SalaryMax,
		SalaryPeriod:  string(rec.SalaryPeriod),
		Description:   rec.Description,
		Requirements:  rec.Requirements,
		IsRemote:      rec.IsRemote,
		IsFlyInFlyOut: rec.IsFlyInFlyOut,
		Source:        rec.Source,
		SourceURL:     rec.SourceURL,
		PostedAt:      rec.PostedAt,
		ExpiresAt:     rec.ExpiresAt,
		ScrapedAt:     rec.ScrapedAt,
	}
	if rec.HasCoordinates() {
		doc.GeoPoint = &geoPoint{Lat: *rec.Latitude, Lon: *rec.Longitude}
	}
	return doc
}

// Index upserts rec under its deterministic document id, so re-ingesting a
// record replaces its document.
func (x *ESIndexer) Index(ctx context.Context, rec *model.JobRecord) error {
	body, err := json.Marshal(toDocument(rec))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := x.client.Index(x.index, bytes.NewReader(body),
		x.client.Index.WithContext(ctx),
		x.client.Index.WithDocumentID(rec.DocumentID()),
	)
	if err != nil {
		return fmt.Errorf("index document %s: %w", rec.DocumentID(), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document %s: %s", rec.DocumentID(), res.String())
	}
	return nil
}

// NopIndexer discards records. It stands in when search is disabled.
type NopIndexer struct{}

func (NopIndexer) Index(context.Context, *model.JobRecord) error { return nil }
