// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when neither the number nor the caller names a country.
const DefaultRegion = "BR"

// IsSupportedRegion reports whether region is a CLDR region code the number
// metadata knows, e.g. "BR" or "nl".
func IsSupportedRegion(region string) bool {
	return phonenumbers.GetCountryCodeForRegion(strings.ToUpper(region)) != 0
}

// NormalizeE164In formats a phone number to E.164, resolving national
// numbers against region. Unparseable or invalid numbers are returned trimmed
// so that captured leads never lose the value the prospect typed.
func NormalizeE164In(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, strings.ToUpper(region))
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
