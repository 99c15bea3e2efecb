package resolver

import (
	"fmt"

	"github.com/kelvins/geocoder"
)

// GeocodeFunc returns coordinates for a city within a state/province.
type GeocodeFunc func(city, state string) (lat, lon float64, err error)

// NewGoogleGeocoder geocodes through the Google Maps API. The geocoder
// package keys requests with a process-wide variable.
func NewGoogleGeocoder(apiKey string) GeocodeFunc {
	geocoder.ApiKey = apiKey
	return func(city, state string) (float64, float64, error) {
		loc, err := geocoder.Geocoding(geocoder.Address{
			City:    city,
			State:   state,
			Country: "South Korea",
		})
		if err != nil {
			return 0, 0, err
		}
		return loc.Latitude, loc.Longitude, nil
	}
}

// FillCoordinates geocodes records that name a geocode_city but carry no
// coordinates. Records that already have coordinates are left untouched.
func FillCoordinates(t *Table, geocode GeocodeFunc) error {
	for i := range t.Records {
		rec := &t.Records[i]
		if rec.Lat != 0 || rec.Lon != 0 || rec.GeocodeCity == "" {
			continue
		}
		lat, lon, err := geocode(rec.GeocodeCity, rec.GeocodeState)
		if err != nil {
			return fmt.Errorf("geocode %s/%s: %w", rec.Region, rec.Crop, err)
		}
		rec.Lat, rec.Lon = lat, lon
	}
	return nil
}
