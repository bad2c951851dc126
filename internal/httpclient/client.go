package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Static headers sent with every request, matching what a crawler advertises.
const (
	AcceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	AcceptLanguageHeader = "en-US,en;q=0.5"
)

// UserAgentSource supplies the User-Agent for each request.
type UserAgentSource interface {
	Pick() string
}

type RequestBuilder struct {
	base    *url.URL
	headers http.Header
	agents  UserAgentSource
}

func NewRequestBuilder(baseURL string, agents UserAgentSource) (*RequestBuilder, error) {
	target := strings.TrimSpace(baseURL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	base, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target URL: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("target URL %q must be absolute", target)
	}
	if agents == nil {
		return nil, errors.New("user agent source is required")
	}

	headers := http.Header{}
	headers.Set("Accept", AcceptHeader)
	headers.Set("Accept-Language", AcceptLanguageHeader)
	headers.Set("Connection", "keep-alive")

	return &RequestBuilder{
		base:    base,
		headers: headers,
		agents:  agents,
	}, nil
}

// ResolveURL joins path onto the base URL using RFC 3986 reference resolution:
// an absolute path replaces the base path, a relative one is merged with it.
func (b *RequestBuilder) ResolveURL(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	return b.base.ResolveReference(ref), nil
}

// Build creates a GET request for path with a freshly chosen User-Agent.
func (b *RequestBuilder) Build(ctx context.Context, path string) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := b.ResolveURL(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}

	req.Header = b.headers.Clone()
	req.Header.Set("User-Agent", b.agents.Pick())

	return req, nil
}

// NewClient returns a client that follows redirects and bounds every request,
// including redirects and body reads, by timeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
