package market

import (
	"strings"

	"github.com/evcraddock/listing-tracker/internal/listing"
)

// Assign sets r.Market and r.SubMarket from the catalog.
//
// A market already present on the record is kept when the catalog knows it.
// Otherwise the record gets the market nearest to its coordinates. SubMarket
// is always the lowercase market name. A nil catalog leaves r unchanged.
func Assign(r *listing.Record, c *Catalog) {
	if c == nil {
		return
	}
	if _, ok := c.Lookup(r.Market); r.Market == "" || !ok {
		if m, found := c.Nearest(r.Latitude, r.Longitude); found {
			r.Market = m.Name
		}
	}
	r.SubMarket = strings.ToLower(r.Market)
}
