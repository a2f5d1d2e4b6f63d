package market

import (
	"math"

	"github.com/evcraddock/listing-tracker/internal/listing"
)

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle distances.
	EarthRadiusKm = 6371.0

	// KmPerMile converts statute miles to kilometers.
	KmPerMile = 1.609344
)

// Distance returns the haversine great-circle distance in kilometers between
// two points given in decimal degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// WithinRadius returns the records located within miles of (lat, lon), in
// their input order.
func WithinRadius(lat, lon float64, records []listing.Record, miles float64) []listing.Record {
	limit := miles * KmPerMile
	out := make([]listing.Record, 0)
	for _, r := range records {
		if Distance(r.Latitude, r.Longitude, lat, lon) <= limit {
			out = append(out, r)
		}
	}
	return out
}
