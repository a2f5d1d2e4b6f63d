// Package listing provides the canonical property record shared by every stage
// of the daily reconciliation, and the per-provider normalizers that produce it.
package listing

// Status represents where a listing is in its lifecycle as of a given day.
// The zero value means the record has not been reconciled yet.
type Status string

const (
	StatusActive    Status = "actively_listed"
	StatusOffMarket Status = "off_market"
)

// ValidStatus returns true if s is a known listing status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusActive, StatusOffMarket:
		return true
	}
	return false
}

// Source identifies the provider a record came from.
type Source string

// DefaultProviders is the provider priority order used when none is configured.
// Earlier providers win when more than one reports the same address.
var DefaultProviders = []Source{"company_a", "company_b", "company_c"}

// Record is the canonical representation of a listing.
type Record struct {
	Address     string   `json:"address"`
	Market      string   `json:"market"`
	SubMarket   string   `json:"subMarket"`
	State       string   `json:"state"`
	ZipCode     string   `json:"zipCode"`
	Source      Source   `json:"source"`
	NumBeds     int      `json:"numBeds"`
	NumBaths    float64  `json:"numBaths"`
	SquareFeet  int64    `json:"squareFeet"`
	Price       int64    `json:"price"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	DateAdded   string   `json:"dateAdded"`
	Status      Status   `json:"status,omitempty"`
}

// Trackable reports whether the record can be followed across days.
// Records without an address have no key to join on.
func (r Record) Trackable() bool {
	return r.Address != ""
}

// Clone returns a copy of r that shares no memory with it.
func (r Record) Clone() Record {
	if r.Images != nil {
		r.Images = append(make([]string, 0, len(r.Images)), r.Images...)
	}
	return r
}

// CloneAll copies every record in records.
func CloneAll(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
