package etsy

import "strings"

// CarrierCode is the marketplace's closed carrier enumeration for shipment
// posting.
type CarrierCode string

const (
	CarrierUSPS      CarrierCode = "usps"
	CarrierUPS       CarrierCode = "ups"
	CarrierFedEx     CarrierCode = "fedex"
	CarrierRoyalMail CarrierCode = "royal-mail"
	CarrierDPD       CarrierCode = "dpd"
	CarrierPostNord  CarrierCode = "postnord"
	CarrierDHL       CarrierCode = "dhl"
	CarrierOther     CarrierCode = "other"
)

var carrierPrefixes = []struct {
	prefix string
	code   CarrierCode
}{
	{"usps", CarrierUSPS},
	{"ups", CarrierUPS},
	{"fedex", CarrierFedEx},
	{"royal mail", CarrierRoyalMail},
	{"royal-mail", CarrierRoyalMail},
	{"royalmail", CarrierRoyalMail},
	{"dpd", CarrierDPD},
	{"postnord", CarrierPostNord},
	{"dhl", CarrierDHL},
}

// MapCarrier translates a partner-reported carrier name ("FedEx Ground",
// "DHL Express") to the marketplace carrier code. Names the marketplace
// does not recognize map to "other".
func MapCarrier(partnerName string) CarrierCode {
	name := strings.ToLower(strings.TrimSpace(partnerName))
	for _, entry := range carrierPrefixes {
		if strings.HasPrefix(name, entry.prefix) {
			return entry.code
		}
	}
	return CarrierOther
}
