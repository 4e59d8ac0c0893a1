package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/watchpost/watchpost/internal/domain"
)

// TargetsFile is the YAML document loaded at startup to seed targets and
// alert rules. Target IDs come from the file so repeated loads are idempotent.
type TargetsFile struct {
	Targets []TargetEntry `yaml:"targets"`
}

type TargetEntry struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	URL              string        `yaml:"url"`
	Method           string        `yaml:"method"`
	ExpectedStatus   int           `yaml:"expected_status"`
	Timeout          time.Duration `yaml:"timeout"`
	FollowRedirects  bool          `yaml:"follow_redirects"`
	MaxRedirects     int           `yaml:"max_redirects"`
	ExpectedContent  string        `yaml:"expected_content"`
	ForbiddenContent string        `yaml:"forbidden_content"`
	MaxResponseTime  int64         `yaml:"max_response_time_ms"`
	CheckUptime      bool          `yaml:"check_uptime"`
	CheckSSL         bool          `yaml:"check_ssl"`
	RenderJS         bool          `yaml:"render_js"`

	Rules []RuleEntry `yaml:"rules"`
}

type RuleEntry struct {
	Type            string        `yaml:"type"`
	Severity        string        `yaml:"severity"`
	Enabled         *bool         `yaml:"enabled"` // nil means enabled
	ThresholdDays   int           `yaml:"threshold_days"`
	ThresholdRespMS int64         `yaml:"threshold_response_time_ms"`
	Channels        []string      `yaml:"channels"`
	Cooldown        time.Duration `yaml:"cooldown"`
}

// LoadTargetsFile parses the YAML file into domain targets and rules. Rule
// IDs are derived from target ID and type so a reload upserts in place.
func LoadTargetsFile(path string) ([]domain.Target, []domain.AlertRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var f TargetsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var targets []domain.Target
	var rules []domain.AlertRule
	for i, e := range f.Targets {
		if e.URL == "" {
			return nil, nil, fmt.Errorf("%s: target %d has no url", path, i)
		}
		if e.ID == "" {
			return nil, nil, fmt.Errorf("%s: target %q has no id", path, e.URL)
		}
		targets = append(targets, domain.Target{
			ID:               domain.TargetID(e.ID),
			Name:             e.Name,
			URL:              e.URL,
			Method:           e.Method,
			ExpectedStatus:   e.ExpectedStatus,
			Timeout:          e.Timeout,
			FollowRedirects:  e.FollowRedirects,
			MaxRedirects:     e.MaxRedirects,
			ExpectedContent:  e.ExpectedContent,
			ForbiddenContent: e.ForbiddenContent,
			MaxResponseTime:  e.MaxResponseTime,
			CheckUptime:      e.CheckUptime,
			CheckSSL:         e.CheckSSL,
			RenderJS:         e.RenderJS,
		})
		for _, r := range e.Rules {
			typ := domain.AlertType(r.Type)
			switch typ {
			case domain.AlertSSLExpiry, domain.AlertSSLInvalid, domain.AlertUptimeDown,
				domain.AlertResponseTime, domain.AlertLetsEncryptRenewal:
			default:
				return nil, nil, fmt.Errorf("%s: target %q: unknown alert type %q", path, e.ID, r.Type)
			}
			enabled := true
			if r.Enabled != nil {
				enabled = *r.Enabled
			}
			channels := make([]domain.ChannelKind, 0, len(r.Channels))
			for _, c := range r.Channels {
				channels = append(channels, domain.ChannelKind(c))
			}
			rules = append(rules, domain.AlertRule{
				ID:              e.ID + ":" + r.Type,
				TargetID:        domain.TargetID(e.ID),
				Type:            typ,
				Severity:        domain.Severity(r.Severity),
				Enabled:         enabled,
				ThresholdDays:   r.ThresholdDays,
				ThresholdRespMS: r.ThresholdRespMS,
				Channels:        channels,
				Cooldown:        r.Cooldown,
			})
		}
	}
	return targets, rules, nil
}
