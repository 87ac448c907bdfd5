package matcher

import (
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// DefaultCityAliases maps raw PO city names to the warehouse city that serves them
func DefaultCityAliases() map[string]string {
	return map[string]string{
		"surat":         "ahmedabad",
		"ahmedabad":     "ahmedabad",
		"bengaluru":     "bangalore",
		"chennai":       "chennai",
		"coimbatore":    "coimbatore",
		"bhubaneswar":   "cuttack",
		"dasna":         "delhi",
		"farukhnagar":   "delhi",
		"kundli":        "delhi",
		"noida":         "ghaziabad",
		"bhopal":        "ghaziabad",
		"jaipur":        "ghaziabad",
		"guwahati":      "guwahati",
		"hyderabad":     "hyderabad",
		"kolkata":       "kolkata",
		"lucknow":       "lucknow",
		"ludhiana":      "lucknow",
		"varanasi":      "lucknow",
		"mumbai":        "mumbai",
		"pune":          "pune",
		"goa":           "pune",
		"indore":        "pune",
		"nagpur":        "pune",
		"patna":         "ranchi",
		"ranchi":        "ranchi",
		"visakhapatnam": "vijayawada",
		"dehradun":      "zirakpur",
		"rajpura":       "zirakpur",
	}
}

// CityResolver maps raw city names to canonical warehouse cities.
// It is immutable once built and safe for concurrent use.
type CityResolver struct {
	aliases map[string]string
}

// NewCityResolver builds a resolver from the default table with the given
// overrides applied on top. Override keys are matched case-insensitively.
func NewCityResolver(overrides map[string]string) *CityResolver {
	aliases := make(map[string]string)
	for raw, canonical := range DefaultCityAliases() {
		aliases[cityKey(raw)] = canonical
	}
	for raw, canonical := range overrides {
		key := cityKey(raw)
		if key == "" {
			continue
		}
		aliases[key] = strings.TrimSpace(canonical)
	}
	return &CityResolver{aliases: aliases}
}

// Resolve returns the canonical city for a raw value. Unknown cities pass through
// trimmed, and a missing value is returned as-is.
func (r *CityResolver) Resolve(raw interface{}) interface{} {
	if raw == nil {
		return nil
	}
	name, ok := cityName(raw)
	if !ok {
		return raw
	}
	if canonical, found := r.aliases[strings.ToLower(name)]; found {
		return canonical
	}
	return name
}

// ResolveString is Resolve for callers that only deal in strings. Missing input
// resolves to "" and ok is false.
func (r *CityResolver) ResolveString(raw interface{}) (string, bool) {
	resolved := r.Resolve(raw)
	if resolved == nil {
		return "", false
	}
	name, ok := cityName(resolved)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Aliases returns a copy of the alias table
func (r *CityResolver) Aliases() map[string]string {
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// Names returns the raw names the resolver knows, sorted
func (r *CityResolver) Names() []string {
	names := make([]string, 0, len(r.aliases))
	for name := range r.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SameCity compares two city names ignoring case and surrounding whitespace
func SameCity(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func cityKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func cityName(v interface{}) (string, bool) {
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}
