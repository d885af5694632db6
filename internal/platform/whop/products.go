package whop

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type Product struct {
	ID string `json:"id"`
}

// CreateProductInput creates or, when ExternalIdentifier matches an existing
// product of the company, updates that product in place.
type CreateProductInput struct {
	CompanyID          string `json:"company_id"`
	Title              string `json:"title"`
	ExternalIdentifier string `json:"external_identifier"`
	Visibility         string `json:"visibility,omitempty"`
}

type attachExperienceInput struct {
	ProductID string `json:"product_id"`
}

func (c *Client) CreateProduct(ctx context.Context, key string, in CreateProductInput) (Product, error) {
	if strings.TrimSpace(in.ExternalIdentifier) == "" {
		return Product{}, fmt.Errorf("whop product external identifier required")
	}
	var out Product
	if err := c.post(ctx, "/products", key, in, &out); err != nil {
		return Product{}, err
	}
	return out, requireID("product", out.ID)
}

// AttachExperience grants buyers of productID access to experienceID.
func (c *Client) AttachExperience(ctx context.Context, experienceID, productID string) error {
	if experienceID == "" || productID == "" {
		return fmt.Errorf("whop attach needs experience and product ids")
	}
	path := "/experiences/" + url.PathEscape(experienceID) + "/attach"
	return c.post(ctx, path, "attach:"+experienceID+":"+productID, attachExperienceInput{ProductID: productID}, nil)
}

// ProductExternalID is the per-company identifier of the product published
// courses are sold through.
func ProductExternalID(companyID string) string {
	return "course-builder-courses-" + companyID
}
