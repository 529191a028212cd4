package billing

import "github.com/shopspring/decimal"

// Plan is one tier of the payment plan catalog. Fewer installments buy a
// lower admin fee rate.
type Plan struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	FeeRate           decimal.Decimal `json:"fee_rate"`
	TotalInstallments int             `json:"total_installments"`
}

func (p Plan) RemainingInstallments() int {
	return p.TotalInstallments - 1
}

type Catalog struct {
	plans map[string]Plan
	order []string
}

func NewCatalog(plans ...Plan) *Catalog {
	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c
}

// DefaultCatalog holds the three live tiers. The flexible tier shipped with
// both 8% and 7.5% in different surfaces; 7.5% is the rate in effect.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Plan{ID: "basic", Name: "Basic Plan", FeeRate: decimal.NewFromFloat(0.055), TotalInstallments: 5},
		Plan{ID: "premium", Name: "Premium Plan", FeeRate: decimal.NewFromFloat(0.065), TotalInstallments: 7},
		Plan{ID: "flexible", Name: "Flexible Plan", FeeRate: decimal.NewFromFloat(0.075), TotalInstallments: 9},
	)
}

func (c *Catalog) Lookup(planID string) (Plan, error) {
	p, ok := c.plans[planID]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return p, nil
}

// All returns the plans in catalog order, for display.
func (c *Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}
