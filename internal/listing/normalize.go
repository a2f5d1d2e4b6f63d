package listing

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Normalizer maps one raw provider payload to a canonical record.
// Normalizers never fail: unusable fields come back as zero values.
// The caller stamps Source on the result.
type Normalizer interface {
	Normalize(raw map[string]any) Record
}

// NormalizerFunc adapts a plain function to the Normalizer interface.
type NormalizerFunc func(raw map[string]any) Record

// Normalize calls f(raw).
func (f NormalizerFunc) Normalize(raw map[string]any) Record {
	return f(raw)
}

// Feed formats understood by the built-in normalizers.
const (
	FormatA = "a"
	FormatB = "b"
	FormatC = "c"
)

var normalizers = map[string]Normalizer{
	FormatA: NormalizerFunc(normalizeA),
	FormatB: NormalizerFunc(normalizeB),
	FormatC: NormalizerFunc(normalizeC),
}

// NormalizerFor returns the normalizer registered for a feed format.
func NormalizerFor(format string) (Normalizer, error) {
	n, ok := normalizers[format]
	if !ok {
		return nil, fmt.Errorf("unknown feed format %q (known: %s)", format, strings.Join(Formats(), ", "))
	}
	return n, nil
}

// Formats returns the registered feed format names, sorted.
func Formats() []string {
	names := make([]string, 0, len(normalizers))
	for name := range normalizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeA handles feeds with flat beds/baths/squareFootage/rentAmount fields
// and a plain list of photo URLs.
func normalizeA(raw map[string]any) Record {
	r := common(raw)
	r.Address = normalizeAddress(rawString(raw, "address"))
	r.NumBeds = int(count(raw, "beds"))
	r.NumBaths = count(raw, "baths")
	r.SquareFeet = int64(count(raw, "squareFootage"))
	r.Price = int64(count(raw, "rentAmount"))
	r.Images = stringList(raw["photos"])
	r.DateAdded = rawString(raw, "dateAvailable")
	return r
}

// normalizeB handles XML-derived feeds where the street is nested under
// "#text" and photos carry their URL in "@_source".
func normalizeB(raw map[string]any) Record {
	r := common(raw)
	address := ""
	if street, ok := raw["street"].(map[string]any); ok {
		address = rawString(street, "#text")
	}
	if address == "" {
		address = rawString(raw, "address")
	}
	r.Address = normalizeAddress(address)
	r.NumBeds = int(count(raw, "numBedrooms"))
	r.NumBaths = count(raw, "numFullBaths")
	r.SquareFeet = int64(count(raw, "squareFeet"))
	r.Price = int64(count(raw, "price"))
	r.Images = objectURLs(raw["ListingPhoto"], "@_source")
	r.DateAdded = rawString(raw, "dateAvailable")
	return r
}

// normalizeC handles feeds with numBeds/numBaths and image objects keyed by "Url".
// These feeds carry no availability date.
func normalizeC(raw map[string]any) Record {
	r := common(raw)
	r.Address = normalizeAddress(rawString(raw, "address"))
	r.NumBeds = int(count(raw, "numBeds"))
	r.NumBaths = count(raw, "numBaths")
	r.SquareFeet = int64(count(raw, "squareFeet"))
	r.Price = int64(count(raw, "price"))
	r.Images = objectURLs(raw["images"], "Url")
	return r
}

// common extracts the fields every format names the same way.
func common(raw map[string]any) Record {
	return Record{
		State:       strings.ToLower(strings.TrimSpace(rawString(raw, "state"))),
		ZipCode:     zipCode(raw["zip"]),
		Description: rawString(raw, "description"),
		Latitude:    number(raw, "latitude"),
		Longitude:   number(raw, "longitude"),
		Images:      []string{},
	}
}

func normalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// number returns the numeric value at key, accepting JSON numbers and numeric
// strings. Anything else, including NaN and infinities, is zero.
func number(raw map[string]any, key string) float64 {
	var f float64
	switch v := raw[key].(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// count is number clamped at zero, for fields that cannot be negative.
func count(raw map[string]any, key string) float64 {
	f := number(raw, key)
	if f < 0 {
		return 0
	}
	return f
}

// rawString returns the string at key, or "" for missing and non-string values.
func rawString(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// zipCode coerces a zip that may arrive as a number or a string.
func zipCode(v any) string {
	switch z := v.(type) {
	case string:
		return strings.TrimSpace(z)
	case json.Number:
		return z.String()
	case float64:
		return strconv.FormatFloat(z, 'f', -1, 64)
	case int:
		return strconv.Itoa(z)
	case int64:
		return strconv.FormatInt(z, 10)
	}
	return ""
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// objectURLs collects key from a list of objects. A single object is treated
// as a one-element list, since XML conversions collapse singletons.
func objectURLs(v any, key string) []string {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		items = []any{t}
	default:
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if s := rawString(obj, key); s != "" {
			out = append(out, s)
		}
	}
	return out
}
