package dispatch

import "github.com/shopspring/decimal"

// Discrepancy is a read-only comparison of recorded quantities for one item.
// Ordered quantities are never adjusted; mismatches are only reported.
type Discrepancy struct {
	ItemID      string
	ItemName    string
	OrderedQty  decimal.Decimal
	PackedQty   decimal.NullDecimal
	ReceivedQty decimal.NullDecimal

	// PackedDelta is packed - ordered, valid once packedQty is recorded.
	PackedDelta decimal.NullDecimal
	// ReceivedDelta is received - packed (or ordered when nothing was packed).
	ReceivedDelta decimal.NullDecimal
}

// HasMismatch reports whether any recorded quantity differs from the expected one.
func (d Discrepancy) HasMismatch() bool {
	return (d.PackedDelta.Valid && !d.PackedDelta.Decimal.IsZero()) ||
		(d.ReceivedDelta.Valid && !d.ReceivedDelta.Decimal.IsZero())
}

// Discrepancies lists items whose recorded packed or received quantity differs from expectation.
func Discrepancies(sub SubDispatch) []Discrepancy {
	var out []Discrepancy
	for _, it := range sub.Items {
		d := Discrepancy{
			ItemID:      it.ID,
			ItemName:    it.Name,
			OrderedQty:  it.OrderedQty,
			PackedQty:   it.PackedQty,
			ReceivedQty: it.ReceivedQty,
		}
		if it.PackedQty.Valid {
			d.PackedDelta = decimal.NewNullDecimal(it.PackedQty.Decimal.Sub(it.OrderedQty))
		}
		if it.ReceivedQty.Valid {
			base := it.OrderedQty
			if it.PackedQty.Valid {
				base = it.PackedQty.Decimal
			}
			d.ReceivedDelta = decimal.NewNullDecimal(it.ReceivedQty.Decimal.Sub(base))
		}
		if d.HasMismatch() {
			out = append(out, d)
		}
	}
	return out
}
