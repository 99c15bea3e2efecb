package resolver

import "math"

// Lambert conformal conic parameters of the weather agency's 5 km forecast grid.
const (
	earthRadiusKm = 6371.00877
	gridKm        = 5.0
	stdLat1       = 30.0
	stdLat2       = 60.0
	originLon     = 126.0
	originLat     = 38.0
	originX       = 43.0
	originY       = 136.0
)

// LatLonToGrid projects WGS84 coordinates onto the forecast grid.
func LatLonToGrid(lat, lon float64) (int, int) {
	const rad = math.Pi / 180.0

	re := earthRadiusKm / gridKm
	slat1 := stdLat1 * rad
	slat2 := stdLat2 * rad
	olon := originLon * rad
	olat := originLat * rad

	sn := math.Tan(math.Pi*0.25+slat2*0.5) / math.Tan(math.Pi*0.25+slat1*0.5)
	sn = math.Log(math.Cos(slat1)/math.Cos(slat2)) / math.Log(sn)
	sf := math.Tan(math.Pi*0.25 + slat1*0.5)
	sf = math.Pow(sf, sn) * math.Cos(slat1) / sn
	ro := math.Tan(math.Pi*0.25 + olat*0.5)
	ro = re * sf / math.Pow(ro, sn)

	ra := math.Tan(math.Pi*0.25 + lat*rad*0.5)
	ra = re * sf / math.Pow(ra, sn)
	theta := lon*rad - olon
	if theta > math.Pi {
		theta -= 2 * math.Pi
	}
	if theta < -math.Pi {
		theta += 2 * math.Pi
	}
	theta *= sn

	x := math.Floor(ra*math.Sin(theta) + originX + 0.5)
	y := math.Floor(ro - ra*math.Cos(theta) + originY + 0.5)
	return int(x), int(y)
}
