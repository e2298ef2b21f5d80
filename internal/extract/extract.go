// Package extract pulls operation parameters and locations out of free
// text with ordered, best-effort heuristics.
//
// Nothing here validates meaning: a capitalized word after "in" is taken
// for a place whether or not it is one ("weather in Excel" yields
// "Excel"). Callers treat results as suggestions and let the geocoder or
// the dataset reject them.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/nugget/tao-agent/internal/canonical"
)

// DefaultYearThreshold is used when a growth question names no year.
const DefaultYearThreshold = 2015

var yearRE = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

// Year returns the first 19xx or 20xx token in text, or
// DefaultYearThreshold.
func Year(text string) int {
	m := yearRE.FindString(text)
	if m == "" {
		return DefaultYearThreshold
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return DefaultYearThreshold
	}
	return y
}

// cityStopwords are interrogative, determiner and domain words that are
// never taken for a city.
var cityStopwords = map[string]bool{
	"what": true, "what's": true, "where": true, "when": true, "why": true,
	"who": true, "which": true, "how": true, "tell": true, "give": true,
	"show": true, "about": true, "the": true, "our": true, "your": true,
	"this": true, "that": true, "these": true, "those": true, "and": true,
	"with": true, "for": true, "from": true, "are": true, "has": true,
	"have": true, "was": true, "were": true, "does": true, "please": true,
	"office": true, "offices": true, "details": true, "detail": true,
	"profile": true, "information": true, "info": true, "location": true,
	"branch": true, "revenue": true, "employees": true, "headcount": true,
	"weather": true, "temperature": true, "climate": true, "like": true,
	"most": true, "average": true, "many": true, "much": true,
}

// knownCities are resolved even when lowercase or not anchored by a
// preposition. Multi-word names are matched as phrases.
var knownCities = []string{
	"new york", "san francisco", "los angeles",
	"paris", "london", "chicago", "boston", "seattle",
	"denver", "miami", "atlanta", "austin",
}

// City returns the first plausible city name in text: the first token
// longer than two letters, purely alphabetic and not a stopword, title
// cased. A known two-word city starting at that token ("new york") is
// returned whole. It returns "" when nothing qualifies.
func City(text string) string {
	words := cleanWords(text)
	for i, w := range words {
		lw := strings.ToLower(w)
		if len(lw) <= 2 || !isAlpha(lw) || cityStopwords[lw] {
			continue
		}
		if i+1 < len(words) {
			pair := lw + " " + strings.ToLower(words[i+1])
			for _, k := range knownCities {
				if k == pair {
					return titleCase(pair)
				}
			}
		}
		return titleCase(lw)
	}
	return ""
}

// Params extracts the parameters an operation needs from text. The map
// may be empty; validation decides whether that is acceptable.
func Params(operation, text string) map[string]any {
	params := map[string]any{}
	switch operation {
	case canonical.GrowthAnalysis:
		params["year_threshold"] = Year(text)
	case canonical.OfficeProfile:
		if city := City(text); city != "" {
			params["city"] = city
		}
	}
	return params
}

// cleanWords splits on whitespace and trims surrounding punctuation.
func cleanWords(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) && r != '\''
		})
		f = strings.Trim(f, `'"`)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
