package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressUnavailable is set on records where no layer found an address.
const AddressUnavailable = "Address unavailable"

// FlexString holds a value that upstream sources emit either as a JSON string
// or as a JSON number. Numbers keep their literal text.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
	case 't', 'f':
		// booleans carry no usable value for these fields
		*f = ""
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("flex string: %w", err)
		}
		*f = FlexString(n.String())
	}
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// PropertyListingRecord is the canonical output of one extraction call.
type PropertyListingRecord struct {
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city,omitempty"`
	State        string     `json:"state,omitempty"`
	Zip          string     `json:"zip,omitempty"`
	PropertyType string     `json:"propertyType,omitempty"`
	Bedrooms     FlexString `json:"bedrooms,omitempty"`
	Bathrooms    FlexString `json:"bathrooms,omitempty"`
	SquareFeet   FlexString `json:"squareFeet,omitempty"`
	Price        FlexString `json:"price,omitempty"`
	YearBuilt    FlexString `json:"yearBuilt,omitempty"`
	Description  string     `json:"description,omitempty"`
	Features     []string   `json:"features,omitempty"`
	ImageURLs    []string   `json:"imageUrls,omitempty"`
	SourceURL    string     `json:"sourceUrl"`

	ListingAgentName          string `json:"listingAgentName,omitempty"`
	ListingAgentPhone         string `json:"listingAgentPhone,omitempty"`
	ListingAgentCompany       string `json:"listingAgentCompany,omitempty"`
	ListingAgentLicenseNumber string `json:"listingAgentLicenseNumber,omitempty"`
	ListingAgentEmail         string `json:"listingAgentEmail,omitempty"`
}

func NewRecord(sourceURL string) *PropertyListingRecord {
	return &PropertyListingRecord{SourceURL: sourceURL}
}

// scalarFields lists every single-valued field except SourceURL, in output order.
func (r *PropertyListingRecord) scalarFields() []struct {
	name string
	ptr  *string
} {
	return []struct {
		name string
		ptr  *string
	}{
		{"address", &r.Address},
		{"city", &r.City},
		{"state", &r.State},
		{"zip", &r.Zip},
		{"propertyType", &r.PropertyType},
		{"bedrooms", (*string)(&r.Bedrooms)},
		{"bathrooms", (*string)(&r.Bathrooms)},
		{"squareFeet", (*string)(&r.SquareFeet)},
		{"price", (*string)(&r.Price)},
		{"yearBuilt", (*string)(&r.YearBuilt)},
		{"description", &r.Description},
		{"listingAgentName", &r.ListingAgentName},
		{"listingAgentPhone", &r.ListingAgentPhone},
		{"listingAgentCompany", &r.ListingAgentCompany},
		{"listingAgentLicenseNumber", &r.ListingAgentLicenseNumber},
		{"listingAgentEmail", &r.ListingAgentEmail},
	}
}

// Merge folds a later layer's partial record into r. A scalar field is only
// taken from other when r has no value for it; list values are appended
// without dropping or duplicating what r already holds.
func (r *PropertyListingRecord) Merge(other *PropertyListingRecord) {
	if other == nil {
		return
	}
	mine := r.scalarFields()
	theirs := other.scalarFields()
	for i := range mine {
		if strings.TrimSpace(*mine[i].ptr) == "" {
			*mine[i].ptr = strings.TrimSpace(*theirs[i].ptr)
		}
	}
	r.Features = appendUnique(r.Features, other.Features)
	r.ImageURLs = appendUnique(r.ImageURLs, other.ImageURLs)
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}

// Fields returns the names of populated fields, excluding sourceUrl.
func (r *PropertyListingRecord) Fields() []string {
	var names []string
	for _, f := range r.scalarFields() {
		if strings.TrimSpace(*f.ptr) != "" {
			names = append(names, f.name)
		}
	}
	if len(r.Features) > 0 {
		names = append(names, "features")
	}
	if len(r.ImageURLs) > 0 {
		names = append(names, "imageUrls")
	}
	return names
}

func (r *PropertyListingRecord) IsEmpty() bool {
	return len(r.Fields()) == 0
}

// Missing lists the empty fields, excluding sourceUrl. A later extraction
// layer is worth running while this is non-empty.
func (r *PropertyListingRecord) Missing() []string {
	var missing []string
	for _, f := range r.scalarFields() {
		if strings.TrimSpace(*f.ptr) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(r.Features) == 0 {
		missing = append(missing, "features")
	}
	if len(r.ImageURLs) == 0 {
		missing = append(missing, "imageUrls")
	}
	return missing
}
