package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/watchpost/watchpost/internal/domain"
)

const defaultUserAgent = "watchpost/1.0 (+https://github.com/watchpost/watchpost)"

// Renderer fetches a target through a JavaScript-capable browser. Targets
// flagged RenderJS are delegated to it wholesale; the probe returns its
// observation unchanged.
type Renderer interface {
	Render(ctx context.Context, t domain.Target) domain.UptimeObservation
}

// UptimeProbe issues a single HTTP check against a target. It never returns
// an error: every failure mode is encoded in the observation so callers can
// treat "probe failed" as data.
type UptimeProbe struct {
	Client    *http.Client
	UserAgent string
	Renderer  Renderer

	// AcceptStatuses lists status codes that count as reachable transport
	// even though they are not 2xx (e.g. a site that answers 403 to
	// automated clients). Such codes skip the hard server-error path and
	// go through the regular expected-status comparison.
	AcceptStatuses []int
}

// NewUptimeProbe builds a probe whose client never follows redirects on its
// own; the redirect loop below is explicit so hop count and effective URL
// stay observable and boundable.
func NewUptimeProbe() *UptimeProbe {
	return &UptimeProbe{
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (p *UptimeProbe) userAgent() string {
	if p.UserAgent == "" {
		return defaultUserAgent
	}
	return p.UserAgent
}

func (p *UptimeProbe) accepted(code int) bool {
	for _, c := range p.AcceptStatuses {
		if c == code {
			return true
		}
	}
	return false
}

// Probe runs one uptime check. Timing is end-to-end (request through body
// read) rounded to milliseconds.
func (p *UptimeProbe) Probe(ctx context.Context, t domain.Target) domain.UptimeObservation {
	if t.RenderJS && p.Renderer != nil {
		return p.Renderer.Render(ctx, t)
	}

	start := time.Now()
	obs := domain.UptimeObservation{
		TargetID:           t.ID,
		ContentCheckPassed: true,
		FinalURL:           t.URL,
		CheckedAt:          start.UTC(),
	}

	cctx, cancel := context.WithTimeout(ctx, t.EffectiveTimeout())
	defer cancel()

	current := t.URL
	hops := 0
	var resp *http.Response
	for {
		req, err := http.NewRequestWithContext(cctx, t.EffectiveMethod(), current, nil)
		if err != nil {
			return p.down(obs, start, fmt.Sprintf("invalid request: %v", err))
		}
		req.Header.Set("User-Agent", p.userAgent())

		resp, err = p.Client.Do(req)
		if err != nil {
			return p.down(obs, start, err.Error())
		}

		if !isRedirect(resp.StatusCode) || !t.FollowRedirects {
			break
		}
		loc := resp.Header.Get("Location")
		resp.Body.Close()

		hops++
		if hops > t.EffectiveMaxRedirects() {
			return p.down(obs, start, fmt.Sprintf("too many redirects (max %d)", t.EffectiveMaxRedirects()))
		}
		if loc == "" {
			return p.down(obs, start, "redirect response without Location header")
		}
		next, err := resolveLocation(current, loc)
		if err != nil {
			return p.down(obs, start, fmt.Sprintf("unresolvable redirect location %q: %v", loc, err))
		}
		current = next
		obs.FinalURL = current
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return p.down(obs, start, fmt.Sprintf("reading response body: %v", readErr))
	}

	obs.ResponseTimeMS = time.Since(start).Round(time.Millisecond).Milliseconds()
	obs.ResponseSizeBytes = int64(len(body))
	code := resp.StatusCode
	obs.HTTPStatusCode = &code
	obs.FinalURL = current

	expected := t.EffectiveExpectedStatus()
	if code != expected {
		obs.Status = domain.UptimeDown
		if code >= 500 && !p.accepted(code) {
			obs.ErrorMessage = fmt.Sprintf("HTTP %d Server Error", code)
		} else {
			obs.ErrorMessage = fmt.Sprintf("unexpected status %d (want %d)", code, expected)
		}
		return obs
	}

	if t.ExpectedContent != "" && !strings.Contains(string(body), t.ExpectedContent) {
		obs.ContentCheckPassed = false
		obs.ContentCheckReason = fmt.Sprintf("expected content %q not found", t.ExpectedContent)
		obs.Status = domain.UptimeContentMismatch
		return obs
	}
	if t.ForbiddenContent != "" && strings.Contains(string(body), t.ForbiddenContent) {
		obs.ContentCheckPassed = false
		obs.ContentCheckReason = fmt.Sprintf("forbidden content %q present", t.ForbiddenContent)
		obs.Status = domain.UptimeContentMismatch
		return obs
	}

	if obs.ResponseTimeMS > t.EffectiveMaxResponseTime() {
		obs.Status = domain.UptimeSlow
		return obs
	}

	obs.Status = domain.UptimeUp
	return obs
}

func (p *UptimeProbe) down(obs domain.UptimeObservation, start time.Time, msg string) domain.UptimeObservation {
	obs.Status = domain.UptimeDown
	obs.ErrorMessage = msg
	obs.ResponseTimeMS = time.Since(start).Round(time.Millisecond).Milliseconds()
	return obs
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// resolveLocation resolves a Location header against the URL of the request
// that produced it, so relative redirects stay on the original scheme+host.
func resolveLocation(base, loc string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
