package domain

import "strings"

// NormalizePostcode upper-cases and squeezes surrounding whitespace; stored
// postcodes are always in this form.
func NormalizePostcode(postcode string) string {
	return strings.ToUpper(strings.TrimSpace(postcode))
}

// OutwardCode returns the area half of a UK postcode ("PR25 3XY" -> "PR25").
// Eligibility matching works at this granularity.
func OutwardCode(postcode string) string {
	normalized := NormalizePostcode(postcode)
	if i := strings.IndexByte(normalized, ' '); i > 0 {
		return normalized[:i]
	}
	return normalized
}
