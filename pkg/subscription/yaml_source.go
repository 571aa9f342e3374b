package subscription

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// planDoc is the YAML shape of a single plan entry.
type planDoc struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	GatewayPlanID string `yaml:"gateway_plan_id"`
	Price         int64  `yaml:"price"` // minor units
	Currency      string `yaml:"currency"`
	DisplayOrder  int    `yaml:"display_order"`
}

// ParsePlans decodes a YAML plan catalog:
//
//	plans:
//	  - id: 7f9c24e8-3b0f-4f6e-9d5a-64e2a8f3b111
//	    name: Starter
//	    gateway_plan_id: price_starter_monthly
//	    price: 900
//	    currency: USD
//	    display_order: 1
func ParsePlans(data []byte) ([]Plan, error) {
	var doc struct {
		Plans []planDoc `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("subscription: failed to parse plan catalog: %w", err)
	}
	if len(doc.Plans) == 0 {
		return nil, fmt.Errorf("subscription: plan catalog is empty")
	}

	plans := make([]Plan, 0, len(doc.Plans))
	for i, p := range doc.Plans {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, fmt.Errorf("subscription: plan %d has invalid id %q: %w", i, p.ID, err)
		}
		if p.GatewayPlanID == "" {
			return nil, fmt.Errorf("subscription: plan %q has no gateway plan id", p.Name)
		}
		currency := p.Currency
		if currency == "" {
			currency = "USD"
		}
		plans = append(plans, Plan{
			ID:            id,
			Name:          p.Name,
			Description:   p.Description,
			GatewayPlanID: p.GatewayPlanID,
			Price:         Money{Amount: p.Price, Currency: currency},
			DisplayOrder:  p.DisplayOrder,
		})
	}
	return plans, nil
}

// LoadPlansFile reads a YAML plan catalog from disk and seeds an
// in-memory PlanStore with it.
func LoadPlansFile(path string) (PlanStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("subscription: failed to read plan catalog: %w", err)
	}
	plans, err := ParsePlans(data)
	if err != nil {
		return nil, err
	}
	return NewMemoryPlanStore(plans...), nil
}
