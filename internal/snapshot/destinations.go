package snapshot

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

type destination struct {
	code    string
	country string
	city    string
}

// destinationTable lists the destinations the results page sells.
var destinationTable = []destination{
	{"PUJ", "República Dominicana", "Punta Cana"},
	{"SDQ", "República Dominicana", "Santo Domingo"},
	{"STI", "República Dominicana", "Santiago"},
	{"LRM", "República Dominicana", "La Romana"},
	{"AUA", "Aruba", "Oranjestad"},
	{"CUN", "México", "Cancún"},
	{"CZM", "México", "Cozumel"},
	{"VRA", "Cuba", "Varadero"},
	{"HAV", "Cuba", "Havana"},
	{"MBJ", "Jamaica", "Montego Bay"},
}

var destinations = func() map[string]destination {
	m := make(map[string]destination, len(destinationTable))
	for _, d := range destinationTable {
		m[d.code] = d
	}
	return m
}()

var origins = map[string]string{
	"LIS": "Lisboa",
	"OPO": "Porto",
	"FAO": "Faro",
	"MAD": "Madrid",
	"BCN": "Barcelona",
	"SVQ": "Sevilha",
	"BIO": "Bilbau",
	"VLC": "Valência",
}

const defaultOrigin = "Lisboa"

// maxCityDistance bounds the edit distance for matching a server-provided
// description against a known city.
const maxCityDistance = 2

// resolveDestination returns country and city for a destination code. Unknown
// codes fall back to the server-provided description for the city; the country
// is recovered when that description is a near match of a known city.
func resolveDestination(code, description string) (country, city string) {
	if d, ok := destinations[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return d.country, d.city
	}

	city = strings.TrimSpace(description)
	if city == "" {
		return "", ""
	}
	if d, ok := closestDestination(city); ok {
		return d.country, city
	}
	return "", city
}

func closestDestination(name string) (destination, bool) {
	name = strings.ToLower(name)
	best, bestDist := destination{}, maxCityDistance+1
	for _, d := range destinationTable {
		dist := levenshtein.ComputeDistance(name, strings.ToLower(d.city))
		if dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best, bestDist <= maxCityDistance
}

// resolveOrigin maps a departure airport code to a city name.
func resolveOrigin(code string) string {
	code = strings.TrimSpace(code)
	if city, ok := origins[strings.ToUpper(code)]; ok {
		return city
	}
	if code != "" {
		return code
	}
	return defaultOrigin
}
