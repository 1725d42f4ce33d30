package cart

import (
	"context"
	"errors"
	"fmt"

	"storefront-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type IssueKind string

const (
	IssueStatus IssueKind = "status"
	IssueStock  IssueKind = "stock"
	IssuePrice  IssueKind = "price"
)

// Blocking reports whether the issue must stop checkout.
func (k IssueKind) Blocking() bool { return k == IssueStatus || k == IssueStock }

var (
	priceDriftRatio  = decimal.RequireFromString("0.01")
	minPriceDriftAbs = decimal.RequireFromString("0.01")
)

type Issue struct {
	Type    IssueKind `json:"type"`
	Message string    `json:"message"`
}

// ItemIssues groups the findings for one line item.
type ItemIssues struct {
	ItemID    uuid.UUID `json:"item_id"`
	VariantID uuid.UUID `json:"variant_id"`
	Issues    []Issue   `json:"issues"`
}

type Validation struct {
	Warnings []ItemIssues `json:"warnings"`
	Errors   []ItemIssues `json:"errors"`
}

// Detail is the validated read model of a cart.
type Detail struct {
	models.Cart
	ItemCount  int             `json:"item_count"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Validation *Validation     `json:"validation,omitempty"`
}

// HasErrors reports whether any line carries a blocking issue.
func (d *Detail) HasErrors() bool {
	return d.Validation != nil && len(d.Validation.Errors) > 0
}

// GetCartByID loads the cart with its items, re-validates every line against
// the current catalog and caches the result only when nothing is blocking.
func (s *Service) GetCartByID(ctx context.Context, cartID uuid.UUID) (*Detail, error) {
	key := CartKey(cartID)

	var cached Detail
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	c, err := s.store.FindCartDetail(ctx, cartID)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(ErrNotFound, "Cart not found")
	}
	if err != nil {
		return nil, err
	}

	detail := &Detail{Cart: *c, Subtotal: decimal.Zero}
	var v Validation
	for _, item := range c.Items {
		detail.ItemCount += item.Quantity
		detail.Subtotal = detail.Subtotal.Add(item.PriceAtAdd.Mul(decimal.NewFromInt(int64(item.Quantity))))

		issues := validateItem(&item)
		if len(issues) == 0 {
			continue
		}
		entry := ItemIssues{ItemID: item.ID, VariantID: item.VariantID, Issues: issues}
		if hasBlocking(issues) {
			v.Errors = append(v.Errors, entry)
		} else {
			v.Warnings = append(v.Warnings, entry)
		}
	}
	if len(v.Errors) > 0 || len(v.Warnings) > 0 {
		detail.Validation = &v
	}

	// blocking carts are re-validated on every read until fixed
	if !detail.HasErrors() {
		s.cacheSet(ctx, key, detail)
	}
	return detail, nil
}

func validateItem(item *models.CartItem) []Issue {
	variant := item.Variant
	if variant == nil || variant.Product == nil {
		return []Issue{{Type: IssueStatus, Message: "Product is no longer available"}}
	}

	var issues []Issue
	if !variant.Product.IsPublished() {
		issues = append(issues, Issue{
			Type:    IssueStatus,
			Message: fmt.Sprintf("Product %q is not available for purchase", variant.Product.Name),
		})
	}

	if item.Quantity > variant.StockQuantity {
		issues = append(issues, Issue{
			Type:    IssueStock,
			Message: fmt.Sprintf("Only %d item(s) available, but %d requested", variant.StockQuantity, item.Quantity),
		})
	}

	current := variant.EffectivePrice()
	if priceDrifted(item.PriceAtAdd, current) {
		issues = append(issues, Issue{
			Type:    IssuePrice,
			Message: fmt.Sprintf("Price changed from %s to %s", item.PriceAtAdd.StringFixed(2), current.StringFixed(2)),
		})
	}
	return issues
}

// priceDrifted compares against max(1% of the snapshot, 0.01).
func priceDrifted(snapshot, current decimal.Decimal) bool {
	threshold := decimal.Max(snapshot.Abs().Mul(priceDriftRatio), minPriceDriftAbs)
	return current.Sub(snapshot).Abs().GreaterThan(threshold)
}

func hasBlocking(issues []Issue) bool {
	for _, is := range issues {
		if is.Type.Blocking() {
			return true
		}
	}
	return false
}
