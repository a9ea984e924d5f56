package scraper

import "testing"

func TestLocationFromURL_HyphenPath(t *testing.T) {
	loc := locationFromURL("https://www.zillow.com/homedetails/123-Main-St-SanFrancisco-CA-94103/15012345_zpid/")

	if loc.City != "SanFrancisco" || loc.State != "CA" || loc.Zip != "94103" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestLocationFromURL_UnderscorePath(t *testing.T) {
	loc := locationFromURL("https://www.realtor.com/realestateandhomes-detail/456-Oak-Ave_San-Jose_CA_95112_M12345-67890")

	if loc.City != "San Jose" || loc.State != "CA" || loc.Zip != "95112" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestLocationFromURL_NoMatch(t *testing.T) {
	if loc := locationFromURL("https://example.com/listing/42"); loc != (Location{}) {
		t.Fatalf("expected empty location, got %+v", loc)
	}
}

func TestResolveLocation_FallsBackToAddress(t *testing.T) {
	loc := resolveLocation("https://example.com/listing/42", "789 Pine St, Oakland, CA 94607")

	if loc.City != "Oakland" || loc.State != "CA" || loc.Zip != "94607" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestLocationFromAddress_NoCity(t *testing.T) {
	loc := locationFromAddress("Unit 4 CA 94607")

	if loc.City != "" || loc.State != "CA" || loc.Zip != "94607" {
		t.Fatalf("unexpected location %+v", loc)
	}
}
