package productlist

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a discount value is applied.
type DiscountKind string

const (
	// DiscountFlat subtracts a fixed amount.
	DiscountFlat DiscountKind = "flat"

	// DiscountPercentage subtracts a percentage of the price.
	DiscountPercentage DiscountKind = "percentage"
)

var hundred = decimal.NewFromInt(100)

// Discount is the per-item discount. The zero value is no discount.
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// Validate checks the kind and the value range.
func (d Discount) Validate() error {
	switch d.Kind {
	case DiscountFlat, DiscountPercentage, "":
	default:
		return fmt.Errorf("%w: unknown discount kind %q", ErrInvalidDiscount, d.Kind)
	}
	if d.Value.IsNegative() {
		return fmt.Errorf("%w: value must be >= 0 (got %s)", ErrInvalidDiscount, d.Value)
	}
	if d.Kind == DiscountPercentage && d.Value.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage must be <= 100 (got %s)", ErrInvalidDiscount, d.Value)
	}
	return nil
}

// Apply returns the discounted price, never below zero.
func (d Discount) Apply(price decimal.Decimal) decimal.Decimal {
	var out decimal.Decimal
	switch d.Kind {
	case DiscountFlat:
		out = price.Sub(d.Value)
	case DiscountPercentage:
		out = price.Mul(hundred.Sub(d.Value)).Div(hundred)
	default:
		return price
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out.Round(2)
}

// String renders the discount for display, e.g. "10% off" or "5.00 off".
func (d Discount) String() string {
	if d.Value.IsZero() {
		return "no discount"
	}
	if d.Kind == DiscountPercentage {
		return d.Value.String() + "% off"
	}
	return d.Value.StringFixed(2) + " off"
}

// ParseDiscount builds a discount from user input.
func ParseDiscount(kind DiscountKind, value string) (Discount, error) {
	if value == "" {
		value = "0"
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return Discount{}, fmt.Errorf("%w: %q is not a number", ErrInvalidDiscount, value)
	}
	d := Discount{Kind: kind, Value: v}
	if err := d.Validate(); err != nil {
		return Discount{}, err
	}
	return d, nil
}
