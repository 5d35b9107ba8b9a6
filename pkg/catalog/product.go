// Package catalog defines the product records returned by the remote catalog
// search endpoint.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Image is the optional product image.
type Image struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src"`
}

// Variant is a purchasable variant of a product.
type Variant struct {
	// ID is unique within the parent product.
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id,omitempty"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
}

// Product is a catalog product as returned by the search endpoint.
// Records are treated as immutable once fetched.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Image    *Image    `json:"image,omitempty"`
	Variants []Variant `json:"variants"`
}

// ImageSrc returns the image URL or an empty string.
func (p Product) ImageSrc() string {
	if p.Image == nil {
		return ""
	}
	return p.Image.Src
}

// IsPlaceholder reports whether the product is an empty slot that has not
// been picked from the catalog yet.
func (p Product) IsPlaceholder() bool {
	return p.ID == 0 && p.Title == "" && len(p.Variants) == 0
}

// VariantSummary renders the variant count, e.g. "1 variant" or "3 variants".
func (p Product) VariantSummary() string {
	n := len(p.Variants)
	if n == 1 {
		return "1 variant"
	}
	return strconv.Itoa(n) + " variants"
}

// Clone returns a deep copy so callers can hold products without sharing
// the variant slice.
func (p Product) Clone() Product {
	out := p
	if p.Image != nil {
		img := *p.Image
		out.Image = &img
	}
	if p.Variants != nil {
		out.Variants = append([]Variant(nil), p.Variants...)
	}
	return out
}

// DecodePage decodes a search response body into an ordered page of products.
// A JSON null decodes to an empty page.
func DecodePage(data []byte) ([]Product, error) {
	var page []Product
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode product page: %w", err)
	}
	if page == nil {
		page = []Product{}
	}
	for i := range page {
		if page[i].Variants == nil {
			page[i].Variants = []Variant{}
		}
	}
	return page, nil
}
