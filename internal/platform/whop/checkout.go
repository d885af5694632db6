package whop

import (
	"context"
	"fmt"
)

const (
	PlanTypeRenewal = "renewal"
	PlanTypeOneTime = "one_time"
)

type CheckoutProduct struct {
	ExternalIdentifier string `json:"external_identifier"`
	Title              string `json:"title"`
}

type CheckoutPlan struct {
	CompanyID     string          `json:"company_id"`
	InitialPrice  float64         `json:"initial_price"`
	RenewalPrice  float64         `json:"renewal_price,omitempty"`
	PlanType      string          `json:"plan_type"`
	BillingPeriod int             `json:"billing_period,omitempty"`
	Currency      string          `json:"currency"`
	Product       CheckoutProduct `json:"product"`
}

type CreateCheckoutInput struct {
	Plan     CheckoutPlan      `json:"plan"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Checkout struct {
	ID          string `json:"id"`
	PlanID      string `json:"plan_id"`
	PurchaseURL string `json:"purchase_url"`
	Plan        *struct {
		ID string `json:"id"`
	} `json:"plan,omitempty"`
}

// CreateCheckout creates a checkout configuration. Prices are in whole
// currency units.
func (c *Client) CreateCheckout(ctx context.Context, in CreateCheckoutInput) (Checkout, error) {
	if in.Plan.Currency == "" {
		in.Plan.Currency = "usd"
	}
	var out Checkout
	if err := c.post(ctx, "/checkout_configurations", "", in, &out); err != nil {
		return Checkout{}, err
	}
	if out.PlanID == "" && out.Plan != nil {
		out.PlanID = out.Plan.ID
	}
	if out.ID == "" || out.PlanID == "" {
		return Checkout{}, fmt.Errorf("whop checkout response missing id or plan id")
	}
	return out, nil
}
