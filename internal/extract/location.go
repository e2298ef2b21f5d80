package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Source names the heuristic that produced a Location.
type Source int

const (
	SourceNone Source = iota
	SourceCoordinates
	SourceCityState
	SourceCityCountry
	SourcePreposition
	SourceKnownCity
)

// String returns the source name used in logs.
func (s Source) String() string {
	switch s {
	case SourceCoordinates:
		return "coordinates"
	case SourceCityState:
		return "city_state"
	case SourceCityCountry:
		return "city_country"
	case SourcePreposition:
		return "preposition"
	case SourceKnownCity:
		return "known_city"
	}
	return "none"
}

// Location is a place found in free text: either a coordinate pair or a
// name to geocode.
type Location struct {
	Source    Source
	Latitude  float64
	Longitude float64
	Name      string
}

// Found reports whether any heuristic matched.
func (l Location) Found() bool {
	return l.Source != SourceNone
}

// HasCoordinates reports whether the location is an explicit pair.
func (l Location) HasCoordinates() bool {
	return l.Source == SourceCoordinates
}

var (
	coordRE       = regexp.MustCompile(`(?:^|[^\d.\-])(-?\d{1,2}(?:\.\d+)?)[,\s]+(-?\d{1,3}(?:\.\d+)?)\b`)
	cityStateRE   = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*,\s*[A-Z]{2}\b`)
	cityCountryRE = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*,\s*[A-Z][a-z]{2,}\b`)
)

// prepositions anchor the capitalized-word heuristic.
var prepositions = map[string]bool{
	"in": true, "at": true, "about": true, "to": true, "from": true,
}

// FindLocation runs the location cascade over texts: an explicit
// coordinate pair, then "City, ST", then "City, Country", then
// capitalized words after in/at/about/to/from, then a known city name.
// Each stage scans every text before the next stage runs.
func FindLocation(texts ...string) Location {
	for _, t := range texts {
		if loc, ok := findCoords(t); ok {
			return loc
		}
	}
	for _, t := range texts {
		if m := cityStateRE.FindString(t); m != "" {
			return Location{Source: SourceCityState, Name: m}
		}
	}
	for _, t := range texts {
		if m := cityCountryRE.FindString(t); m != "" {
			return Location{Source: SourceCityCountry, Name: m}
		}
	}
	for _, t := range texts {
		if name := afterPreposition(t); name != "" {
			return Location{Source: SourcePreposition, Name: name}
		}
	}
	for _, t := range texts {
		if name := knownCity(t); name != "" {
			return Location{Source: SourceKnownCity, Name: name}
		}
	}
	return Location{}
}

func findCoords(text string) (Location, bool) {
	for _, m := range coordRE.FindAllStringSubmatch(text, -1) {
		lat, err1 := strconv.ParseFloat(m[1], 64)
		lon, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			continue
		}
		return Location{Source: SourceCoordinates, Latitude: lat, Longitude: lon}, true
	}
	return Location{}, false
}

// afterPreposition returns one or two capitalized words following a
// location preposition.
func afterPreposition(text string) string {
	words := cleanWords(text)
	for i := 1; i < len(words); i++ {
		if !prepositions[strings.ToLower(words[i-1])] {
			continue
		}
		first := words[i]
		if !placeWord(first) {
			continue
		}
		if i+1 < len(words) && placeWord(words[i+1]) {
			return first + " " + words[i+1]
		}
		return first
	}
	return ""
}

func placeWord(w string) bool {
	if len(w) <= 2 || !isAlpha(w) || cityStopwords[strings.ToLower(w)] {
		return false
	}
	return unicode.IsUpper([]rune(w)[0])
}

func knownCity(text string) string {
	joined := " " + strings.ToLower(strings.Join(cleanWords(text), " ")) + " "
	for _, c := range knownCities {
		if strings.Contains(joined, " "+c+" ") {
			return titleCase(c)
		}
	}
	return ""
}
