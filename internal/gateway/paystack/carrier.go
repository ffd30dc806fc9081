package paystack

import "strings"

// carrierPrefixes maps Nigerian 3-digit number prefixes to mobile money
// carriers. Pure table lookup, no checksum validation.
var carrierPrefixes = map[string]string{
	"703": "mtn",
	"704": "mtn",
	"706": "mtn",
	"803": "mtn",
	"806": "mtn",
	"810": "mtn",
	"813": "mtn",
	"814": "mtn",
	"816": "mtn",
	"903": "mtn",
	"906": "mtn",

	"701": "airtel",
	"708": "airtel",
	"802": "airtel",
	"808": "airtel",
	"812": "airtel",
	"901": "airtel",
	"902": "airtel",
	"904": "airtel",
	"907": "airtel",

	"705": "glo",
	"805": "glo",
	"807": "glo",
	"811": "glo",
	"815": "glo",
	"905": "glo",

	"809": "9mobile",
	"817": "9mobile",
	"818": "9mobile",
	"908": "9mobile",
	"909": "9mobile",
}

// CarrierFromPhone derives a mobile money carrier from a phone number by
// stripping formatting and country code and matching the 3-digit prefix
// table. Returns "unknown" when no prefix matches.
func CarrierFromPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	digits = strings.TrimPrefix(digits, "234")
	digits = strings.TrimPrefix(digits, "0")

	if len(digits) < 3 {
		return "unknown"
	}
	if carrier, ok := carrierPrefixes[digits[:3]]; ok {
		return carrier
	}
	return "unknown"
}
