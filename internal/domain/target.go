package domain

import (
	"net/url"
	"strconv"
	"time"
)

type TargetID string

// Defaults applied by the Effective* accessors when a field is unset.
const (
	DefaultExpectedStatus    = 200
	DefaultMaxRedirects      = 5
	DefaultTimeout           = 10 * time.Second
	DefaultMaxResponseTimeMS = 30000
	DefaultTLSPort           = 443
)

// Target is a monitored endpoint plus its check configuration. It is owned
// by the caller and treated as immutable for the duration of one probe.
type Target struct {
	ID               TargetID      `json:"id"`
	Name             string        `json:"name,omitempty"`
	URL              string        `json:"url"`
	Method           string        `json:"method,omitempty"`
	ExpectedStatus   int           `json:"expected_status,omitempty"`
	Timeout          time.Duration `json:"timeout,omitempty"`
	FollowRedirects  bool          `json:"follow_redirects"`
	MaxRedirects     int           `json:"max_redirects,omitempty"`
	ExpectedContent  string        `json:"expected_content,omitempty"`
	ForbiddenContent string        `json:"forbidden_content,omitempty"`
	MaxResponseTime  int64         `json:"max_response_time_ms,omitempty"`
	CheckUptime      bool          `json:"check_uptime"`
	CheckSSL         bool          `json:"check_ssl"`
	RenderJS         bool          `json:"render_js,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

func (t Target) EffectiveMethod() string {
	if t.Method == "" {
		return "GET"
	}
	return t.Method
}

func (t Target) EffectiveExpectedStatus() int {
	if t.ExpectedStatus == 0 {
		return DefaultExpectedStatus
	}
	return t.ExpectedStatus
}

func (t Target) EffectiveTimeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

func (t Target) EffectiveMaxRedirects() int {
	if t.MaxRedirects <= 0 {
		return DefaultMaxRedirects
	}
	return t.MaxRedirects
}

func (t Target) EffectiveMaxResponseTime() int64 {
	if t.MaxResponseTime <= 0 {
		return DefaultMaxResponseTimeMS
	}
	return t.MaxResponseTime
}

// Host returns the hostname part of the target URL, or "" if unparseable.
func (t Target) Host() string {
	u, err := url.Parse(t.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// TLSPort returns the explicit port of the target URL, defaulting to 443.
func (t Target) TLSPort() int {
	u, err := url.Parse(t.URL)
	if err != nil {
		return DefaultTLSPort
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	return DefaultTLSPort
}
