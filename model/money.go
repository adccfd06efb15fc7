package model

import "math"

// Pricing constants. Every view that shows a total must go through
// ComputeTotals so the displayed numbers never disagree.
const (
	FreeShippingAbove = 500
	FlatShippingFee   = 50
	TaxRate           = 0.05
)

type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// ComputeTotals applies the storefront money rule: free shipping above
// the threshold, flat fee otherwise, 5% tax rounded to the nearest
// whole currency unit.
func ComputeTotals(subtotal int64) Totals {
	var shipping int64 = FlatShippingFee
	if subtotal > FreeShippingAbove {
		shipping = 0
	}
	tax := int64(math.Round(float64(subtotal) * TaxRate))
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
	}
}
