// Package cardnet classifies primary account numbers into card network
// brands using ordered prefix rules.
package cardnet

import "strings"

// Brand identifies a card network.
type Brand string

// Defines values for Brand.
const (
	BrandVisa       Brand = "VISA"
	BrandMastercard Brand = "MASTERCARD"
	BrandAmex       Brand = "AMEX"
	BrandDiscover   Brand = "DISCOVER"
	// BrandUnknown is returned when no rule matches. This is not an error;
	// callers decide whether an unrecognized brand is acceptable.
	BrandUnknown Brand = ""
)

// Detect classifies a PAN by its leading digits. Whitespace and hyphens are
// stripped before matching. An unrecognized or non-numeric prefix yields
// [BrandUnknown].
func Detect(pan string) Brand {
	digits := sanitize(pan)
	if digits == "" {
		return BrandUnknown
	}
	switch {
	case inRange(digits, 2, 34, 34), inRange(digits, 2, 37, 37):
		return BrandAmex
	case inRange(digits, 2, 51, 55), inRange(digits, 4, 2221, 2720):
		return BrandMastercard
	case inRange(digits, 4, 6011, 6011), inRange(digits, 3, 644, 649), inRange(digits, 2, 65, 65):
		return BrandDiscover
	case digits[0] == '4':
		return BrandVisa
	default:
		return BrandUnknown
	}
}

func sanitize(pan string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		}
		return r
	}, strings.TrimSpace(pan))
}

// inRange reports whether the first width digits of s form a number between
// lo and hi inclusive.
func inRange(s string, width, lo, hi int) bool {
	if len(s) < width {
		return false
	}
	n := 0
	for _, r := range s[:width] {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	return n >= lo && n <= hi
}
