package fetch

import (
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync/atomic"
)

// Decorator mutates an outgoing request, e.g. to rotate identifying headers.
type Decorator interface {
	Decorate(req *http.Request)
}

// DecoratorFunc adapts a function to Decorator.
type DecoratorFunc func(req *http.Request)

func (f DecoratorFunc) Decorate(req *http.Request) { f(req) }

var defaultAcceptHeaders = []string{
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
}

// HeaderRotator picks a random User-Agent and Accept-Language per request.
// Headers already set by the caller (e.g. Accept: application/json) win.
type HeaderRotator struct {
	userAgents []string
	languages  []string
}

// NewHeaderRotator returns a rotator. Empty lists leave those headers alone.
func NewHeaderRotator(userAgents, languages []string) *HeaderRotator {
	return &HeaderRotator{userAgents: userAgents, languages: languages}
}

func (h *HeaderRotator) Decorate(req *http.Request) {
	if len(h.userAgents) > 0 && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", h.userAgents[rand.IntN(len(h.userAgents))])
	}
	if len(h.languages) > 0 && req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", h.languages[rand.IntN(len(h.languages))])
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", defaultAcceptHeaders[rand.IntN(len(defaultAcceptHeaders))])
	}
}

// ProxyRotator hands out proxies round-robin. Plug Proxy into an
// http.Transport to route requests without touching adapter code.
type ProxyRotator struct {
	proxies []*url.URL
	next    atomic.Uint64
}

// NewProxyRotator parses proxy URLs. An empty list yields a rotator that
// never proxies.
func NewProxyRotator(rawProxies []string) (*ProxyRotator, error) {
	p := &ProxyRotator{}
	for _, raw := range rawProxies {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}
		p.proxies = append(p.proxies, u)
	}
	return p, nil
}

// Proxy satisfies http.Transport.Proxy.
func (p *ProxyRotator) Proxy(_ *http.Request) (*url.URL, error) {
	if len(p.proxies) == 0 {
		return nil, nil
	}
	i := p.next.Add(1) - 1
	return p.proxies[i%uint64(len(p.proxies))], nil
}

// NewTransport returns a transport that assigns proxies from rotator.
func NewTransport(rotator *ProxyRotator) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if rotator != nil && len(rotator.proxies) > 0 {
		t.Proxy = rotator.Proxy
	}
	return t
}
