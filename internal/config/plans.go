package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan kinds map onto checkout modes.
const (
	PlanKindOneTime      = "one_time"
	PlanKindSubscription = "subscription"
)

// Plan IDs known to the billing flow.
const (
	PlanPerCampaign     = "per-campaign"
	PlanProSubscription = "pro-subscription"
)

// Plan describes a purchasable option shown in the plan selector.
type Plan struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	AmountCents int64    `yaml:"amount_cents" json:"amountCents"`
	Currency    string   `yaml:"currency" json:"currency"`
	Kind        string   `yaml:"kind" json:"kind"`
	Interval    string   `yaml:"interval,omitempty" json:"interval,omitempty"`
	PriceID     string   `yaml:"price_id,omitempty" json:"-"`
	Popular     bool     `yaml:"popular,omitempty" json:"popular,omitempty"`
	Features    []string `yaml:"features" json:"features"`
}

// IsSubscription reports whether the plan bills on a recurring interval.
func (p Plan) IsSubscription() bool {
	return p.Kind == PlanKindSubscription
}

// PlanCatalog is the ordered set of plans.
type PlanCatalog struct {
	Plans []Plan `yaml:"plans"`
}

// Find returns the plan with the given ID.
func (c *PlanCatalog) Find(id string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// DefaultPlans returns the built-in catalog.
func DefaultPlans() *PlanCatalog {
	return &PlanCatalog{Plans: []Plan{
		{
			ID:          PlanPerCampaign,
			Name:        "Pay Per Campaign",
			Description: "Publish this campaign",
			AmountCents: 200,
			Currency:    "usd",
			Kind:        PlanKindOneTime,
			Features:    []string{"Publish this campaign", "Download all assets", "Valid for 30 days"},
		},
		{
			ID:          PlanProSubscription,
			Name:        "Pro Subscription",
			Description: "Unlimited campaigns every month",
			AmountCents: 1000,
			Currency:    "usd",
			Kind:        PlanKindSubscription,
			Interval:    "month",
			Popular:     true,
			Features: []string{
				"Unlimited campaign publishing",
				"Priority AI generation",
				"Advanced analytics",
				"Priority support",
				"Custom branding",
			},
		},
	}}
}

// LoadPlans reads the plan catalog. An empty path yields DefaultPlans.
// Stripe price IDs from cfg are attached to the matching built-in plans
// when the file does not set them.
func LoadPlans(cfg *Config) (*PlanCatalog, error) {
	catalog := DefaultPlans()
	if cfg != nil && cfg.PlansFile != "" {
		data, err := os.ReadFile(cfg.PlansFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read plans file %s: %w", cfg.PlansFile, err)
		}
		var fromFile PlanCatalog
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse plans file %s: %w", cfg.PlansFile, err)
		}
		if err := fromFile.validate(); err != nil {
			return nil, fmt.Errorf("invalid plans file %s: %w", cfg.PlansFile, err)
		}
		catalog = &fromFile
	}

	if cfg != nil {
		for i := range catalog.Plans {
			p := &catalog.Plans[i]
			if p.PriceID != "" {
				continue
			}
			switch p.ID {
			case PlanPerCampaign:
				p.PriceID = cfg.StripePricePerCampaign
			case PlanProSubscription:
				p.PriceID = cfg.StripePriceProSubscription
			}
		}
	}
	return catalog, nil
}

func (c *PlanCatalog) validate() error {
	if len(c.Plans) == 0 {
		return fmt.Errorf("no plans defined")
	}
	seen := make(map[string]bool, len(c.Plans))
	for i := range c.Plans {
		p := &c.Plans[i]
		if p.ID == "" {
			return fmt.Errorf("plan %d has no id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate plan id %q", p.ID)
		}
		seen[p.ID] = true
		if p.AmountCents <= 0 {
			return fmt.Errorf("plan %q must have a positive amount", p.ID)
		}
		switch p.Kind {
		case PlanKindOneTime:
		case PlanKindSubscription:
			if p.Interval == "" {
				p.Interval = "month"
			}
		default:
			return fmt.Errorf("plan %q has unknown kind %q", p.ID, p.Kind)
		}
		if p.Currency == "" {
			p.Currency = "usd"
		}
	}
	return nil
}
