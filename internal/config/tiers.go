package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Billing intervals as reported by Stripe prices.
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// Features are the entitlements a tier unlocks.
type Features struct {
	ExportLimit     int  `yaml:"export_limit" json:"export_limit"`
	RemoveWatermark bool `yaml:"remove_watermark" json:"remove_watermark"`
	TemplateCount   int  `yaml:"template_count" json:"template_count"`
}

// TierPlan is the allotment for one subscription tier.
type TierPlan struct {
	MonthlyCredits int64    `yaml:"monthly_credits"`
	Features       Features `yaml:"features"`
}

// PriceBinding maps a Stripe price id to a tier and billing interval.
type PriceBinding struct {
	Tier     string `yaml:"tier"`
	Interval string `yaml:"interval"`
}

// TierCatalog is the tier table injected into the ledger and subscription handlers.
type TierCatalog struct {
	Tiers  map[string]TierPlan     `yaml:"tiers"`
	Prices map[string]PriceBinding `yaml:"prices"`
}

// DefaultTierCatalog is used when no tiers file is configured.
func DefaultTierCatalog() *TierCatalog {
	return &TierCatalog{
		Tiers: map[string]TierPlan{
			"none":   {MonthlyCredits: 0, Features: Features{ExportLimit: 3}},
			"lite":   {MonthlyCredits: 2, Features: Features{ExportLimit: 25, TemplateCount: 3}},
			"pro":    {MonthlyCredits: 6, Features: Features{ExportLimit: 250, RemoveWatermark: true, TemplateCount: 10}},
			"agency": {MonthlyCredits: 20, Features: Features{ExportLimit: -1, RemoveWatermark: true, TemplateCount: 50}},
		},
		Prices: map[string]PriceBinding{},
	}
}

// LoadTierCatalog parses a tiers yaml file. An empty path yields the default catalog.
func LoadTierCatalog(path string) (*TierCatalog, error) {
	if path == "" {
		return DefaultTierCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tiers file: %w", err)
	}
	return ParseTierCatalog(data)
}

// ParseTierCatalog decodes and checks a tiers document.
func ParseTierCatalog(data []byte) (*TierCatalog, error) {
	var catalog TierCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tiers: %w", err)
	}
	if len(catalog.Tiers) == 0 {
		return nil, fmt.Errorf("tiers file defines no tiers")
	}
	if catalog.Prices == nil {
		catalog.Prices = map[string]PriceBinding{}
	}

	for id, binding := range catalog.Prices {
		if _, ok := catalog.Tiers[binding.Tier]; !ok {
			return nil, fmt.Errorf("price %s references unknown tier %q", id, binding.Tier)
		}
		if binding.Interval != IntervalMonth && binding.Interval != IntervalYear {
			return nil, fmt.Errorf("price %s has unsupported interval %q", id, binding.Interval)
		}
	}
	for name, plan := range catalog.Tiers {
		if plan.MonthlyCredits < 0 {
			return nil, fmt.Errorf("tier %s has negative monthly credits", name)
		}
	}
	return &catalog, nil
}

// Plan returns the allotment for a tier.
func (c *TierCatalog) Plan(tier string) (TierPlan, bool) {
	plan, ok := c.Tiers[tier]
	return plan, ok
}

// Price resolves a Stripe price id.
func (c *TierCatalog) Price(priceID string) (PriceBinding, bool) {
	binding, ok := c.Prices[priceID]
	return binding, ok
}
