package erp

import (
	"context"
	"encoding/json"
	"fmt"
)

// Template is a product template row as the ERP reports it. Prices come
// back as floats in major currency units.
type Template struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	ListPrice    float64  `json:"list_price"`
	QtyAvailable float64  `json:"qty_available"`
	Active       bool     `json:"active"`
	CategoryPath string   `json:"categ_path"`
	Tags         []string `json:"tag_names"`
}

// Variant is one sellable combination under a template.
type Variant struct {
	ID         int64             `json:"id"`
	TemplateID int64             `json:"tmpl_id"`
	PriceExtra float64           `json:"price_extra"`
	Attributes map[string]string `json:"attributes"`
}

var templateFields = []string{"id", "name", "list_price", "qty_available", "active", "categ_path", "tag_names"}

// FetchTemplates pulls the sellable catalog from the ERP.
func (c *Client) FetchTemplates(ctx context.Context) ([]Template, error) {
	domain := []any{
		[]any{"sale_ok", "=", true},
	}
	var templates []Template
	if err := c.SearchRead(ctx, "product.template", domain, templateFields, 0, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// FetchVariants pulls the variants belonging to one template.
func (c *Client) FetchVariants(ctx context.Context, templateID int64) ([]Variant, error) {
	return c.FetchVariantsForTemplates(ctx, []int64{templateID})
}

// FetchVariantsForTemplates pulls the variants for a set of templates in
// one call, so a multi-line order costs one round-trip instead of one
// per line.
func (c *Client) FetchVariantsForTemplates(ctx context.Context, templateIDs []int64) ([]Variant, error) {
	if len(templateIDs) == 0 {
		return nil, nil
	}
	domain := []any{
		[]any{"product_tmpl_id", "in", templateIDs},
	}
	var raw []struct {
		ID         int64           `json:"id"`
		TemplateID int64           `json:"product_tmpl_id"`
		PriceExtra float64         `json:"price_extra"`
		Attributes json.RawMessage `json:"attribute_values"`
	}
	fields := []string{"id", "product_tmpl_id", "price_extra", "attribute_values"}
	if err := c.SearchRead(ctx, "product.product", domain, fields, 0, &raw); err != nil {
		return nil, err
	}

	variants := make([]Variant, 0, len(raw))
	for _, r := range raw {
		v := Variant{ID: r.ID, TemplateID: r.TemplateID, PriceExtra: r.PriceExtra}
		if len(r.Attributes) > 0 {
			// Attribute payload shape varies between ERP versions; a
			// flat map is the common case and anything else is skipped.
			_ = json.Unmarshal(r.Attributes, &v.Attributes)
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// MatchVariant finds the variant id under a template matching an
// attribute selection. With no selection a template's sole variant
// matches. Returns 0 when nothing matches.
func MatchVariant(variants []Variant, templateID int64, attributes map[string]string) int64 {
	var candidates []Variant
	for _, v := range variants {
		if v.TemplateID == templateID {
			candidates = append(candidates, v)
		}
	}
	if len(attributes) == 0 {
		if len(candidates) == 1 {
			return candidates[0].ID
		}
		return 0
	}
	for _, v := range candidates {
		if matchesAttributes(v.Attributes, attributes) {
			return v.ID
		}
	}
	return 0
}

func matchesAttributes(have, want map[string]string) bool {
	if len(have) != len(want) {
		return false
	}
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// EnsureCustomer finds a partner by email or creates one.
func (c *Client) EnsureCustomer(ctx context.Context, email, name string) (int64, error) {
	domain := []any{
		[]any{"email", "=", email},
	}
	var partners []struct {
		ID int64 `json:"id"`
	}
	if err := c.SearchRead(ctx, "res.partner", domain, []string{"id"}, 1, &partners); err != nil {
		return 0, err
	}
	if len(partners) > 0 {
		return partners[0].ID, nil
	}
	if name == "" {
		name = email
	}
	return c.Create(ctx, "res.partner", map[string]any{
		"name":  name,
		"email": email,
	})
}

// SaleOrderLine is one line of an ERP sale order.
type SaleOrderLine struct {
	VariantID int64
	Quantity  int
	UnitPrice float64
}

// CreateSaleOrder mirrors a local order into the ERP and returns the
// sale order id. The client reference carries the local order number so
// repeated pushes are detectable on the ERP side too.
func (c *Client) CreateSaleOrder(ctx context.Context, customerID int64, clientRef string, lines []SaleOrderLine) (int64, error) {
	orderLines := make([]any, 0, len(lines))
	for _, line := range lines {
		orderLines = append(orderLines, []any{0, 0, map[string]any{
			"product_id":      line.VariantID,
			"product_uom_qty": line.Quantity,
			"price_unit":      line.UnitPrice,
		}})
	}
	id, err := c.Create(ctx, "sale.order", map[string]any{
		"partner_id":       customerID,
		"client_order_ref": clientRef,
		"order_line":       orderLines,
	})
	if err != nil {
		return 0, fmt.Errorf("create sale order %s: %w", clientRef, err)
	}
	return id, nil
}
