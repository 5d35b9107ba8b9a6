package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecodePage(t *testing.T) {
	body := []byte(`[
		{"id": 77, "title": "Fog Linen Chambray Towel", "image": {"id": 266, "src": "https://cdn.example.com/77.jpg"},
		 "variants": [{"id": 1, "product_id": 77, "title": "XS / Silver", "price": "49"},
		              {"id": 2, "product_id": 77, "title": "S / Silver", "price": 49.5}]},
		{"id": 80, "title": "Orbit Terrarium", "variants": []}
	]`)

	page, err := DecodePage(body)
	if err != nil {
		t.Fatalf("DecodePage failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("len(page) = %d, want 2", len(page))
	}

	first := page[0]
	if first.ID != 77 || first.Title != "Fog Linen Chambray Towel" {
		t.Errorf("first = %+v", first)
	}
	if first.ImageSrc() != "https://cdn.example.com/77.jpg" {
		t.Errorf("ImageSrc = %q", first.ImageSrc())
	}
	if !first.Variants[0].Price.Equal(decimal.NewFromInt(49)) {
		t.Errorf("string price = %s, want 49", first.Variants[0].Price)
	}
	if !first.Variants[1].Price.Equal(decimal.RequireFromString("49.5")) {
		t.Errorf("numeric price = %s, want 49.5", first.Variants[1].Price)
	}

	if page[1].ImageSrc() != "" {
		t.Errorf("missing image should yield empty src, got %q", page[1].ImageSrc())
	}
}

func TestDecodePage_Null(t *testing.T) {
	page, err := DecodePage([]byte("null"))
	if err != nil {
		t.Fatalf("DecodePage failed: %v", err)
	}
	if page == nil || len(page) != 0 {
		t.Errorf("null body should decode to empty page, got %#v", page)
	}
}

func TestDecodePage_Invalid(t *testing.T) {
	if _, err := DecodePage([]byte(`{"message": "not a list"}`)); err == nil {
		t.Error("expected error for non-array body")
	}
}

func TestDecodePage_NilVariants(t *testing.T) {
	page, err := DecodePage([]byte(`[{"id": 1, "title": "Hat"}]`))
	if err != nil {
		t.Fatalf("DecodePage failed: %v", err)
	}
	if page[0].Variants == nil {
		t.Error("Variants should be an empty slice, not nil")
	}
}

func TestVariantSummary(t *testing.T) {
	tests := []struct {
		variants int
		want     string
	}{
		{0, "0 variants"},
		{1, "1 variant"},
		{3, "3 variants"},
	}

	for _, tt := range tests {
		p := Product{Variants: make([]Variant, tt.variants)}
		if got := p.VariantSummary(); got != tt.want {
			t.Errorf("VariantSummary(%d) = %q, want %q", tt.variants, got, tt.want)
		}
	}
}

func TestClone(t *testing.T) {
	p := Product{
		ID:       1,
		Title:    "Hat",
		Image:    &Image{Src: "a.jpg"},
		Variants: []Variant{{ID: 1, Title: "Red"}},
	}

	c := p.Clone()
	c.Image.Src = "b.jpg"
	c.Variants[0].Title = "Blue"

	if p.Image.Src != "a.jpg" {
		t.Error("Clone shares image with original")
	}
	if p.Variants[0].Title != "Red" {
		t.Error("Clone shares variants with original")
	}
}

func TestIsPlaceholder(t *testing.T) {
	if !(Product{}).IsPlaceholder() {
		t.Error("zero product should be a placeholder")
	}
	if (Product{ID: 3, Title: "Cap"}).IsPlaceholder() {
		t.Error("fetched product should not be a placeholder")
	}
}
