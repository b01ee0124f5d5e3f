package commission

import (
	"fmt"
	"os"

	"spotter_portal_backend/platform/config"

	"gopkg.in/yaml.v3"
)

// fileSpec is the YAML shape of a policy file:
//
//	policy: tiered
//	spotter_share_bps: 1000
//	tiers:
//	  - up_to_cents: 50000000
//	    rate_bps: 300
//	  - rate_bps: 200
type fileSpec struct {
	Policy          string `yaml:"policy"`
	AgencyRateBps   *int64 `yaml:"agency_rate_bps"`
	SpotterShareBps *int64 `yaml:"spotter_share_bps"`
	Tiers           []Tier `yaml:"tiers"`
}

// LoadPolicy reads a policy from a YAML file. Rates omitted from the file
// fall back to the given defaults.
func LoadPolicy(path string, defaultAgencyBps, defaultShareBps int64) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read commission policy: %w", err)
	}
	return ParsePolicy(data, defaultAgencyBps, defaultShareBps)
}

// ParsePolicy builds a policy from YAML bytes.
func ParsePolicy(data []byte, defaultAgencyBps, defaultShareBps int64) (Policy, error) {
	var file fileSpec
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse commission policy: %w", err)
	}

	agencyBps := defaultAgencyBps
	if file.AgencyRateBps != nil {
		agencyBps = *file.AgencyRateBps
	}
	shareBps := defaultShareBps
	if file.SpotterShareBps != nil {
		shareBps = *file.SpotterShareBps
	}

	switch file.Policy {
	case "", "percentage":
		return NewPercentage(agencyBps, shareBps)
	case "tiered":
		return NewTiered(file.Tiers, shareBps)
	default:
		return nil, fmt.Errorf("unknown commission policy %q", file.Policy)
	}
}

// FromConfig selects the policy file when configured, otherwise the flat
// percentage policy with the configured rates.
func FromConfig(cfg config.CommissionConfig) (Policy, error) {
	if path := cfg.GetCommissionPolicyFile(); path != "" {
		return LoadPolicy(path, cfg.GetCommissionAgencyRateBps(), cfg.GetCommissionSpotterShareBps())
	}
	return NewPercentage(cfg.GetCommissionAgencyRateBps(), cfg.GetCommissionSpotterShareBps())
}
