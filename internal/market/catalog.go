// Package market holds the reference list of markets and assigns listings to
// them, either from an explicit market name or by nearest geographic center.
package market

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrEmptyCatalog is returned when a catalog has no markets to assign.
var ErrEmptyCatalog = errors.New("market catalog is empty")

// Market is a named geographic center.
type Market struct {
	Name      string  `json:"market" yaml:"market"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Catalog is an immutable, ordered set of markets. It is safe for concurrent
// use once constructed.
type Catalog struct {
	markets []Market
	byName  map[string]int
}

// NewCatalog builds a catalog from markets, keeping their order.
// Order matters: nearest-market ties go to the earlier entry.
func NewCatalog(markets []Market) (*Catalog, error) {
	if len(markets) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		markets: make([]Market, len(markets)),
		byName:  make(map[string]int, len(markets)),
	}
	for i, m := range markets {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("market %d has no name", i)
		}
		if _, dup := c.byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate market %q", m.Name)
		}
		c.markets[i] = m
		c.byName[m.Name] = i
	}
	return c, nil
}

// Markets returns a copy of the catalog entries in order.
func (c *Catalog) Markets() []Market {
	return append([]Market(nil), c.markets...)
}

// Len returns the number of markets.
func (c *Catalog) Len() int {
	return len(c.markets)
}

// Lookup returns the market with the given name.
func (c *Catalog) Lookup(name string) (Market, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Market{}, false
	}
	return c.markets[i], true
}

// Nearest returns the market whose center is closest to (lat, lon).
// Exact ties go to the market listed first.
func (c *Catalog) Nearest(lat, lon float64) (Market, bool) {
	var (
		best    Market
		found   bool
		closest = math.Inf(1)
	)
	for _, m := range c.markets {
		if d := Distance(lat, lon, m.Latitude, m.Longitude); d < closest {
			best, closest, found = m, d, true
		}
	}
	return best, found
}
