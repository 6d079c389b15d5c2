/**
 * @description
 * Best-effort parsing of spreadsheet and AI-extracted values into canonical
 * money and date values. Nothing in this package returns an error: anything
 * that cannot be parsed comes back as "absent" (ok == false) and the row
 * validator decides whether that is fatal.
 *
 * @dependencies
 * - github.com/shopspring/decimal: exact money arithmetic.
 */
package normalize

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var currencyGlyphs = []string{"₹", "$", "€", "£"}

// currency words only recognised as a prefix
var currencyPrefixes = []string{"inr", "rs.", "rs"}

// IsBlank reports whether s is one of the spreadsheet "no value" sentinels.
func IsBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "-" || strings.EqualFold(s, "N/A")
}

// ParseNumber converts v into a decimal.
func ParseNumber(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, false
		}
		return *n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		return parseNumberString(n.String())
	case string:
		return parseNumberString(n)
	case *string:
		if n == nil {
			return decimal.Zero, false
		}
		return parseNumberString(*n)
	}
	return decimal.Zero, false
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func parseNumberString(s string) (decimal.Decimal, bool) {
	if IsBlank(s) {
		return decimal.Zero, false
	}
	for _, glyph := range currencyGlyphs {
		s = strings.ReplaceAll(s, glyph, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	lower := strings.ToLower(s)
	for _, prefix := range currencyPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
