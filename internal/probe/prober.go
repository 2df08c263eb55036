// Package probe performs single-URL reachability checks.
//
// A probe is exactly one HEAD request (with a GET fallback when the server
// answers 405) under a hard per-request timeout. Expected failures (HTTP
// errors, connection failures, timeouts) are classified into ErrorKind
// variants and returned as data, never as Go errors. One bad URL must never
// abort a batch of thousands.
package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/fedtools/fedcheck/internal/model"
)

// Default probe settings.
const (
	// DefaultTimeout is the hard per-request deadline. Privacy-statement
	// pages are ordinary web pages; anything slower than 10 seconds is
	// effectively unreachable for a human reading a policy.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies fedcheck in HTTP requests. A descriptive
	// User-Agent lets site operators attribute scanner traffic.
	DefaultUserAgent = "fedcheck/1.0 (+https://github.com/fedtools/fedcheck)"

	// DefaultMaxBodySize limits how much of a GET response body is drained.
	// We never inspect the body; draining a bounded amount keeps connections
	// reusable without risking memory or bandwidth on huge responses.
	DefaultMaxBodySize = 256 * 1024

	// maxRedirects bounds redirect chains. Ten matches net/http's own
	// default and is far beyond any legitimate policy-page setup.
	maxRedirects = 10
)

// Prober performs single network checks of URLs with bounded timeouts.
//
// Design decision: We hold the http.Client in a struct rather than passing
// it per call because client configuration (redirect policy, transport)
// must be consistent across a run, connection pooling works better with a
// shared client, and tests can inject a client bound to httptest servers.
type Prober struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxBodySize int64
}

// Option configures a Prober.
type Option func(*Prober)

// WithTimeout sets the hard per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with probes.
func WithUserAgent(ua string) Option {
	return func(p *Prober) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithClient replaces the underlying HTTP client. Mainly for tests.
// The redirect policy of the provided client is used as-is.
func WithClient(client *http.Client) Option {
	return func(p *Prober) {
		if client != nil {
			p.client = client
		}
	}
}

// WithMaxBodySize sets how many response body bytes a GET probe drains.
func WithMaxBodySize(n int64) Option {
	return func(p *Prober) {
		if n > 0 {
			p.maxBodySize = n
		}
	}
}

// New creates a Prober with the given options.
func New(opts ...Option) *Prober {
	p := &Prober{
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.client = &http.Client{
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}

	return p
}

// Probe checks one target and classifies the result. It never returns a Go
// error: expected failures are recorded in the outcome's ErrorKind. The
// only short-circuit is a malformed URL, which is classified as
// ErrorKindInvalidTarget without attempting a request.
//
// Probe has no side effects beyond the outbound request; cache updates are
// the scheduler's responsibility.
func (p *Prober) Probe(ctx context.Context, target model.ValidationTarget) model.ValidationOutcome {
	start := time.Now()
	out := model.ValidationOutcome{
		Target:    target,
		CheckedAt: start.UTC(),
	}

	u, err := url.Parse(target.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		out.ErrorKind = model.ErrorKindInvalidTarget
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.do(ctx, http.MethodHead, target.URL)

	// Some servers reject HEAD outright; retry once with GET.
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		p.discard(resp)
		resp, err = p.do(ctx, http.MethodGet, target.URL)
	}

	out.ResponseTimeMS = time.Since(start).Milliseconds()

	if err != nil {
		out.ErrorKind = classify(err)
		return out
	}
	defer p.discard(resp)

	out.StatusCode = resp.StatusCode
	if model.StatusAccessible(resp.StatusCode) {
		out.Accessible = true
	} else {
		out.ErrorKind = model.ErrorKindHTTP
	}

	// A redirect that lands on a different registrable domain still counts
	// as accessible, but we record where it went so reporting can flag
	// policy pages that moved off-site.
	if resp.Request != nil && resp.Request.URL != nil {
		final := resp.Request.URL
		if final.Hostname() != u.Hostname() && !sameSite(u.Hostname(), final.Hostname()) {
			out.RedirectedTo = final.String()
		}
	}

	return out
}

// do issues a single request with the prober's standard headers.
func (p *Prober) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	return p.client.Do(req)
}

// discard drains a bounded amount of the body and closes it, keeping the
// underlying connection reusable.
func (p *Prober) discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, p.maxBodySize)) //nolint:errcheck // best effort drain
	_ = resp.Body.Close()                                                //nolint:errcheck // best effort close
}

// classify maps a transport error onto the expected-failure taxonomy.
func classify(err error) model.ErrorKind {
	// Deadline and cancellation both mean the request was cut short before
	// completing; from the caller's perspective that is a timeout.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.ErrorKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrorKindTimeout
	}

	return model.ErrorKindNetwork
}

// sameSite reports whether two hostnames share a registrable domain
// (eTLD+1). IP addresses and hosts without a public suffix fall back to
// exact comparison.
func sameSite(a, b string) bool {
	da, errA := publicsuffix.EffectiveTLDPlusOne(a)
	db, errB := publicsuffix.EffectiveTLDPlusOne(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return da == db
}
