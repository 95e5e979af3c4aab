// Package geocode resolves record locations to coordinates through an
// external provider, memoizing successful lookups for the run.
package geocode

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/harvester/internal/model"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 5 * time.Second

// Point is a resolved coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// Provider looks up a free-text place query. found is false when the
// provider answered but knows no such place.
type Provider interface {
	Lookup(ctx context.Context, query string) (p Point, found bool, err error)
}

// Cache memoizes successful lookups. It is safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	points map[string]Point
}

func NewCache() *Cache {
	return &Cache{points: make(map[string]Point)}
}

func (c *Cache) Get(key string) (Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.points[key]
	return p, ok
}

func (c *Cache) Put(key string, p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points[key] = p
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}

// Geocoder fills in missing coordinates. A provider failure never fails the
// record; it is logged and the coordinates stay unset.
type Geocoder struct {
	provider Provider
	cache    *Cache
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Geocoder. A nil provider turns geocoding off.
func New(provider Provider, cache *Cache, timeout time.Duration, logger *slog.Logger) *Geocoder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Geocoder{provider: provider, cache: cache, timeout: timeout, logger: logger}
}

// Geocode sets rec's coordinates when they are missing and its city or
// province is known.
func (g *Geocoder) Geocode(ctx context.Context, rec *model.JobRecord) *model.JobRecord {
	if g.provider == nil || rec.HasCoordinates() {
		return rec
	}
	if rec.City == "" && rec.Province == "" {
		return rec
	}

	key := cacheKey(rec)
	if p, ok := g.cache.Get(key); ok {
		setPoint(rec, p)
		return rec
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	p, found, err := g.provider.Lookup(lookupCtx, query(rec))
	if err != nil {
		g.logger.Warn("geocoding failed",
			"source", rec.Source, "source_id", rec.SourceID, "query", query(rec), "error", err)
		return rec
	}
	if !found {
		g.logger.Debug("location not found", "query", query(rec))
		return rec
	}
	g.cache.Put(key, p)
	setPoint(rec, p)
	return rec
}

func setPoint(rec *model.JobRecord, p Point) {
	lat, lon := p.Lat, p.Lon
	rec.Latitude, rec.Longitude = &lat, &lon
}

func cacheKey(rec *model.JobRecord) string {
	return strings.ToLower(rec.City + "|" + rec.Province + "|" + rec.Country)
}

// query is the place string sent to the provider, e.g. "Calgary, AB, Canada".
func query(rec *model.JobRecord) string {
	var parts []string
	for _, s := range []string{rec.City, rec.Province} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, "Canada")
	return strings.Join(parts, ", ")
}
