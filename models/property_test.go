package models

import (
	"encoding/json"
	"testing"
)

func TestFlexString_AcceptsStringAndNumber(t *testing.T) {
	var rec PropertyListingRecord
	data := `{"bedrooms": 4, "bathrooms": "2.5", "price": "$750,000", "squareFeet": 1850.5, "yearBuilt": null, "sourceUrl": "x"}`
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if rec.Bedrooms != "4" {
		t.Fatalf("expected bedrooms 4, got %q", rec.Bedrooms)
	}
	if rec.Bathrooms != "2.5" {
		t.Fatalf("expected bathrooms 2.5, got %q", rec.Bathrooms)
	}
	if rec.Price != "$750,000" {
		t.Fatalf("expected price $750,000, got %q", rec.Price)
	}
	if rec.SquareFeet != "1850.5" {
		t.Fatalf("expected sqft 1850.5, got %q", rec.SquareFeet)
	}
	if rec.YearBuilt != "" {
		t.Fatalf("expected empty yearBuilt, got %q", rec.YearBuilt)
	}
}

func TestRecordJSON_AlwaysHasSourceURL(t *testing.T) {
	out, err := json.Marshal(NewRecord("https://example.com/a"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `{"sourceUrl":"https://example.com/a"}` {
		t.Fatalf("unexpected json %s", out)
	}
}

func TestMerge_FirstFoundWins(t *testing.T) {
	site := NewRecord("u")
	site.Bedrooms = "3"

	ai := NewRecord("u")
	ai.Bedrooms = "4"
	ai.Price = "$750,000"

	site.Merge(ai)
	if site.Bedrooms != "3" {
		t.Fatalf("expected bedrooms 3, got %s", site.Bedrooms)
	}
	if site.Price != "$750,000" {
		t.Fatalf("expected price from second layer, got %s", site.Price)
	}
}

func TestMerge_ListsAreAppendOnly(t *testing.T) {
	a := NewRecord("u")
	a.Features = []string{"Pool", "Garage"}
	a.ImageURLs = []string{"https://img/1.jpg"}

	b := NewRecord("u")
	b.Features = []string{"Garage", "Fireplace", ""}
	b.ImageURLs = []string{"https://img/2.jpg", "https://img/1.jpg"}

	a.Merge(b)
	if len(a.Features) != 3 || a.Features[0] != "Pool" || a.Features[2] != "Fireplace" {
		t.Fatalf("unexpected features %v", a.Features)
	}
	if len(a.ImageURLs) != 2 || a.ImageURLs[1] != "https://img/2.jpg" {
		t.Fatalf("unexpected images %v", a.ImageURLs)
	}
}

func TestMissingAndFields(t *testing.T) {
	r := NewRecord("u")
	if !r.IsEmpty() {
		t.Fatalf("new record should be empty")
	}
	if len(r.Missing()) != 18 {
		t.Fatalf("expected 18 missing fields, got %v", r.Missing())
	}

	r.Address = "1 Main St"
	r.Price = "100"
	r.Bedrooms = "2"
	r.Bathrooms = "1"
	r.ListingAgentName = "Jane"
	if len(r.Fields()) != 5 {
		t.Fatalf("expected 5 fields, got %v", r.Fields())
	}
	missing := r.Missing()
	if len(missing) != 13 {
		t.Fatalf("expected 13 missing fields, got %v", missing)
	}
	for _, name := range missing {
		if name == "address" || name == "price" || name == "sourceUrl" {
			t.Fatalf("%s should not be reported missing", name)
		}
	}

	r.City, r.State, r.Zip = "Austin", "TX", "78701"
	r.PropertyType, r.SquareFeet, r.YearBuilt = "Condo", "900", "2001"
	r.Description = "Bright unit"
	r.ListingAgentPhone, r.ListingAgentCompany = "5125550100", "Acme Realty"
	r.ListingAgentLicenseNumber, r.ListingAgentEmail = "0123456", "jane@acme.test"
	r.Features = []string{"Pool"}
	r.ImageURLs = []string{"https://img.test/1.jpg"}
	if m := r.Missing(); len(m) != 0 {
		t.Fatalf("expected nothing missing, got %v", m)
	}
}
