package matcher

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// MissingKey is the canonical key for blank or NaN identifiers
const MissingKey = "nan"

// NormalizeKey converts an identifier cell into its canonical comparable form.
// Numeric values (and numeric strings) are truncated to an integer and rendered
// in decimal, so 123, 123.0 and "123" all become "123". Anything else falls back
// to its trimmed string form. Blank and NaN values become MissingKey.
func NormalizeKey(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return MissingKey
	case float64:
		if math.IsNaN(val) {
			return MissingKey
		}
	case float32:
		if math.IsNaN(float64(val)) {
			return MissingKey
		}
	case decimal.Decimal:
		return val.Truncate(0).String()
	}

	raw := strings.TrimSpace(cast.ToString(v))
	if raw == "" {
		return MissingKey
	}

	f, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return raw
	}
	return decimal.NewFromFloat(f).Truncate(0).String()
}

// IsMissingKey reports whether a normalized key stands for a blank identifier
func IsMissingKey(key string) bool {
	return key == "" || strings.EqualFold(key, MissingKey)
}

// NormalizeCodes normalizes each value and returns the distinct non-missing keys
// in first-seen order.
func NormalizeCodes(values ...interface{}) []string {
	codes := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		key := NormalizeKey(v)
		if IsMissingKey(key) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		codes = append(codes, key)
	}
	return codes
}

// JoinCodes renders a code list for output
func JoinCodes(codes []string) string {
	return strings.Join(codes, ",")
}
