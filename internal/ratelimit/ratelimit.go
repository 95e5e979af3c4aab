package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/amishk599/harvester/internal/fetch"
)

// Limit is the request budget for one domain.
type Limit struct {
	RequestsPerSecond float64
	Burst             int
	MaxConcurrency    int64
}

type domainState struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// DomainLimiter enforces a token-bucket rate and an in-flight cap per domain.
// Domains share nothing, so a slow host never holds back another.
type DomainLimiter struct {
	mu        sync.Mutex
	domains   map[string]*domainState
	def       Limit
	overrides map[string]Limit
}

// NewDomainLimiter creates a limiter applying def to every domain without an
// override. Non-positive values are clamped to one request at a time.
func NewDomainLimiter(def Limit, overrides map[string]Limit) *DomainLimiter {
	return &DomainLimiter{
		domains:   make(map[string]*domainState),
		def:       def,
		overrides: overrides,
	}
}

func (l *DomainLimiter) state(domain string) *domainState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.domains[domain]
	if ok {
		return st
	}

	lim := l.def
	if o, ok := l.overrides[domain]; ok {
		lim = o
	}
	if lim.Burst < 1 {
		lim.Burst = 1
	}
	if lim.MaxConcurrency < 1 {
		lim.MaxConcurrency = 1
	}
	r := rate.Inf
	if lim.RequestsPerSecond > 0 {
		r = rate.Limit(lim.RequestsPerSecond)
	}

	st = &domainState{
		limiter: rate.NewLimiter(r, lim.Burst),
		sem:     semaphore.NewWeighted(lim.MaxConcurrency),
	}
	l.domains[domain] = st
	return st
}

// Acquire blocks until domain has a free concurrency slot and a rate token.
// The returned release must be called once the request finishes.
func (l *DomainLimiter) Acquire(ctx context.Context, domain string) (release func(), err error) {
	st := l.state(domain)

	if err := st.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("rate limiter slot for %s: %w", domain, err)
	}
	if err := st.limiter.Wait(ctx); err != nil {
		st.sem.Release(1)
		return nil, fmt.Errorf("rate limiter wait for %s: %w", domain, err)
	}
	return func() { st.sem.Release(1) }, nil
}

// Fetcher is a decorator that enforces per-domain limits before delegating to
// the wrapped fetcher. All fetchers should share one DomainLimiter.
type Fetcher struct {
	inner   fetch.Fetcher
	limiter *DomainLimiter
}

// NewFetcher wraps a fetcher with domain-level rate limiting.
func NewFetcher(inner fetch.Fetcher, limiter *DomainLimiter) *Fetcher {
	return &Fetcher{inner: inner, limiter: limiter}
}

// Fetch waits for the request's domain to allow a request, then delegates.
func (f *Fetcher) Fetch(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	release, err := f.limiter.Acquire(ctx, req.Host())
	if err != nil {
		return nil, err
	}
	defer release()
	return f.inner.Fetch(ctx, req)
}
