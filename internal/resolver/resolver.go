package resolver

import (
	"fmt"
	"strings"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
)

type lookupKey struct{ region, crop string }

// Resolver is a pure in-memory lookup over a validated table.
type Resolver struct {
	version    string
	identities map[lookupKey]evidence.Identity
}

// New validates t and indexes every region/crop spelling it declares.
func New(t Table) (*Resolver, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	r := &Resolver{version: t.Version, identities: map[lookupKey]evidence.Identity{}}
	for _, rec := range t.Records {
		id := rec.identity()
		regions := append([]string{rec.Region}, rec.Aliases...)
		crops := append([]string{rec.Crop}, rec.CropAliases...)
		for _, region := range regions {
			for _, crop := range crops {
				k := lookupKey{normalize(region), normalize(crop)}
				if prev, ok := r.identities[k]; ok && prev != id {
					return nil, fmt.Errorf("resolver table %q: conflicting entries for %s/%s", t.Version, region, crop)
				}
				r.identities[k] = id
			}
		}
	}
	return r, nil
}

// Resolve returns the identity for region and crop or an
// *evidence.UnknownProfileError.
func (r *Resolver) Resolve(region, crop string) (evidence.Identity, error) {
	id, ok := r.identities[lookupKey{normalize(region), normalize(crop)}]
	if !ok {
		return evidence.Identity{}, &evidence.UnknownProfileError{Region: region, Crop: crop}
	}
	return id, nil
}

// Version identifies the loaded table.
func (r *Resolver) Version() string { return r.version }

func (rec Record) identity() evidence.Identity {
	x, y := LatLonToGrid(rec.Lat, rec.Lon)
	return evidence.Identity{
		Lat:            rec.Lat,
		Lon:            rec.Lon,
		GridX:          x,
		GridY:          y,
		AreaCode:       rec.AreaCode,
		TempAreaCode:   rec.TempAreaCode,
		WarnAreaCode:   rec.WarnAreaCode,
		CropCode:       rec.CropCode,
		PestSidoCode:   rec.PestSidoCode,
		PestRegionCode: rec.PestRegionCode,
		PestRegionName: rec.PestRegionName,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
