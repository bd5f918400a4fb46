package rates

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/config"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

// Policy is the deny-list deciding which quotes may never be selected or
// persisted. All matching is case-insensitive; the policy is pure and
// filtering twice yields the same result as filtering once.
type Policy struct {
	deniedServices   map[string]struct{}
	deniedSubstrings []string
	deniedSources    map[string]struct{}
	deniedCarriers   map[string]struct{}
}

// policyFile is the YAML shape of an external policy override file. Lists
// present in the file are merged on top of the configured ones.
type policyFile struct {
	DeniedServices          []string `yaml:"denied_services"`
	DeniedServiceSubstrings []string `yaml:"denied_service_substrings"`
	DeniedSources           []string `yaml:"denied_sources"`
	DeniedCarriers          []string `yaml:"denied_carriers"`
}

// NewPolicy builds the eligibility policy from configuration, merging the
// optional external policy file when one is configured.
func NewPolicy(cfg config.EligibilityConfig) (*Policy, error) {
	services := append([]string(nil), cfg.DeniedServices...)
	substrings := append([]string(nil), cfg.DeniedServiceSubstrings...)
	sources := append([]string(nil), cfg.DeniedSources...)
	carriers := append([]string(nil), cfg.DeniedCarriers...)

	if cfg.PolicyFile != "" {
		raw, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			return nil, eris.Wrapf(err, "eligibility: read policy file %s", cfg.PolicyFile)
		}
		var pf policyFile
		if err := yaml.Unmarshal(raw, &pf); err != nil {
			return nil, eris.Wrapf(err, "eligibility: parse policy file %s", cfg.PolicyFile)
		}
		services = append(services, pf.DeniedServices...)
		substrings = append(substrings, pf.DeniedServiceSubstrings...)
		sources = append(sources, pf.DeniedSources...)
		carriers = append(carriers, pf.DeniedCarriers...)
		zap.L().Info("merged eligibility policy file",
			zap.String("path", cfg.PolicyFile))
	}

	return &Policy{
		deniedServices:   lowerSet(services),
		deniedSubstrings: lowerAll(substrings),
		deniedSources:    lowerSet(sources),
		deniedCarriers:   lowerSet(carriers),
	}, nil
}

// Eligible reports whether the quote may be offered at all.
func (p *Policy) Eligible(q model.RateQuote) bool {
	service := strings.ToLower(strings.TrimSpace(q.Service))
	if _, denied := p.deniedServices[service]; denied {
		return false
	}
	for _, sub := range p.deniedSubstrings {
		if strings.Contains(service, sub) {
			return false
		}
	}
	if _, denied := p.deniedSources[strings.ToLower(strings.TrimSpace(q.Source))]; denied {
		return false
	}
	if _, denied := p.deniedCarriers[strings.ToLower(strings.TrimSpace(q.Carrier))]; denied {
		return false
	}
	return true
}

// Filter returns only the eligible quotes.
func (p *Policy) Filter(quotes []model.RateQuote) []model.RateQuote {
	out := make([]model.RateQuote, 0, len(quotes))
	for _, q := range quotes {
		if p.Eligible(q) {
			out = append(out, q)
		}
	}
	return out
}

// FilterPersisted returns only the eligible persisted rows. Rows written
// before a policy tightened are filtered at read time, which is how an
// already stored Media Mail rate still never wins selection.
func (p *Policy) FilterPersisted(rows []model.PersistedRate) []model.PersistedRate {
	out := make([]model.PersistedRate, 0, len(rows))
	for _, r := range rows {
		if p.Eligible(r.Quote()) {
			out = append(out, r)
		}
	}
	return out
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
