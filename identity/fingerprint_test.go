package identity

import (
	"testing"

	"listing_scrooper/models"
)

func TestNormalizeAddress(t *testing.T) {
	tests := map[string]string{
		"123 Main Street":              "123 main st",
		"  123  MAIN st.  ":            "123 main st",
		"45 North Lakeshore Boulevard": "45 n lakeshore blvd",
		"9 Streetsville Road, Apt 4":   "9 streetsville rd apt 4",
	}
	for in, want := range tests {
		if got := NormalizeAddress(in); got != want {
			t.Fatalf("NormalizeAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFingerprint_SameProperty(t *testing.T) {
	a := &models.PropertyListingRecord{Address: "123 Main Street", Zip: "94103", Bedrooms: "3", Bathrooms: "2", SquareFeet: "1850"}
	b := &models.PropertyListingRecord{Address: "123 main st.", Zip: "94103", Bedrooms: "3", Bathrooms: "2", SquareFeet: "1850", Price: "$1"}

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("expected equal fingerprints for the same property")
	}
}

func TestFingerprint_DifferentProperty(t *testing.T) {
	a := &models.PropertyListingRecord{Address: "123 Main St", Zip: "94103", Bedrooms: "3"}
	b := &models.PropertyListingRecord{Address: "123 Main St", Zip: "94103", Bedrooms: "4"}

	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("expected different fingerprints")
	}
}

func TestFingerprint_IgnoresAddressSentinel(t *testing.T) {
	a := &models.PropertyListingRecord{Address: models.AddressUnavailable}
	b := &models.PropertyListingRecord{}

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("expected sentinel address to fingerprint as empty")
	}
}

func TestURLKey(t *testing.T) {
	base := URLKey("https://www.zillow.com/homedetails/123-Main-St/1_zpid/")
	same := []string{
		"http://zillow.com/homedetails/123-Main-St/1_zpid",
		"https://WWW.Zillow.com/homedetails/123-Main-St/1_zpid/?utm_source=x#photos",
	}
	for _, u := range same {
		if got := URLKey(u); got != base {
			t.Fatalf("expected %s to share key with base", u)
		}
	}
	if URLKey("https://www.zillow.com/homedetails/456-Oak-Ave/2_zpid/") == base {
		t.Fatal("expected a different key for a different listing")
	}
}

func TestURLKey_QueryIdentifiesListing(t *testing.T) {
	first := URLKey("https://homes.example.com/property.php?id=1001")
	second := URLKey("https://homes.example.com/property.php?id=2002")
	if first == second {
		t.Fatal("expected different keys for different id parameters")
	}

	same := []string{
		"https://homes.example.com/property.php?id=1001&utm_campaign=spring&gclid=abc",
		"https://www.homes.example.com/property.php?fbclid=xyz&id=1001#gallery",
	}
	for _, u := range same {
		if got := URLKey(u); got != first {
			t.Fatalf("expected %s to share key with the untracked url", u)
		}
	}

	if URLKey("https://homes.example.com/search?city=austin&page=2") != URLKey("https://homes.example.com/search?page=2&city=austin") {
		t.Fatal("expected query parameter order not to change the key")
	}
}
