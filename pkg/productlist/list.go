// Package productlist holds the ordered list of chosen products with the
// per-item edit state (discount, variant expansion).
package productlist

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-picker/pkg/catalog"
	"github.com/google/uuid"
)

var (
	// ErrLastItem is returned when an operation would leave the list empty.
	ErrLastItem = errors.New("at least one product must remain")

	// ErrIndexOutOfRange is returned for indexes outside the list.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidDiscount is returned for malformed or out of range discounts.
	ErrInvalidDiscount = errors.New("invalid discount")
)

// Item is one row of the list.
type Item struct {
	// Key identifies the row independently of the product it holds.
	Key          uuid.UUID
	Product      catalog.Product
	Discount     Discount
	ShowVariants bool
}

// HasVariantToggle reports whether the variants of the item can be expanded.
func (it Item) HasVariantToggle() bool {
	return len(it.Product.Variants) > 1
}

// List is an ordered list that always holds at least one item.
type List struct {
	items []Item
}

// New creates a list of products. With no products the list starts with
// one empty placeholder item.
func New(products ...catalog.Product) *List {
	l := &List{}
	for _, p := range products {
		l.items = append(l.items, newItem(p))
	}
	if len(l.items) == 0 {
		l.Add()
	}
	return l
}

func newItem(p catalog.Product) Item {
	return Item{
		Key:      uuid.New(),
		Product:  p.Clone(),
		Discount: Discount{Kind: DiscountFlat},
	}
}

// Len returns the number of items.
func (l *List) Len() int {
	return len(l.items)
}

// Items returns a copy of the items in order.
func (l *List) Items() []Item {
	return append([]Item(nil), l.items...)
}

// At returns the item at index.
func (l *List) At(index int) (Item, error) {
	if err := l.check(index); err != nil {
		return Item{}, err
	}
	return l.items[index], nil
}

// Add appends an empty placeholder item and returns its index.
func (l *List) Add() int {
	l.items = append(l.items, newItem(catalog.Product{}))
	return len(l.items) - 1
}

// Move removes the item at from and inserts it at to. The relative order
// of all other items is preserved.
func (l *List) Move(from, to int) error {
	if err := l.check(from); err != nil {
		return err
	}
	if err := l.check(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	item := l.items[from]
	l.items = append(l.items[:from], l.items[from+1:]...)
	l.items = append(l.items[:to], append([]Item{item}, l.items[to:]...)...)
	return nil
}

// RemoveAt removes the item at index. The last remaining item cannot be
// removed.
func (l *List) RemoveAt(index int) error {
	if err := l.check(index); err != nil {
		return err
	}
	if len(l.items) == 1 {
		return ErrLastItem
	}

	l.items = append(l.items[:index], l.items[index+1:]...)
	return nil
}

// ReplaceRange replaces the item at index with products, splicing in zero
// or more new items at that position. New items get fresh keys and default
// edit state.
func (l *List) ReplaceRange(index int, products []catalog.Product) error {
	if err := l.check(index); err != nil {
		return err
	}
	if len(products) == 0 && len(l.items) == 1 {
		return ErrLastItem
	}

	replacement := make([]Item, 0, len(products))
	for _, p := range products {
		replacement = append(replacement, newItem(p))
	}

	out := make([]Item, 0, len(l.items)-1+len(replacement))
	out = append(out, l.items[:index]...)
	out = append(out, replacement...)
	out = append(out, l.items[index+1:]...)
	l.items = out
	return nil
}

// SetDiscount validates and stores the discount of the item at index.
func (l *List) SetDiscount(index int, d Discount) error {
	if err := l.check(index); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Kind == "" {
		d.Kind = DiscountFlat
	}
	l.items[index].Discount = d
	return nil
}

// ToggleVariants flips variant expansion of the item at index and returns
// the new state. Items with a single variant never expand.
func (l *List) ToggleVariants(index int) (bool, error) {
	if err := l.check(index); err != nil {
		return false, err
	}
	item := &l.items[index]
	if !item.HasVariantToggle() {
		item.ShowVariants = false
		return false, nil
	}
	item.ShowVariants = !item.ShowVariants
	return item.ShowVariants, nil
}

func (l *List) check(index int) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(l.items))
	}
	return nil
}
