package model

// KnownAmenities is the closed amenity-id vocabulary. Values outside it are
// dropped during intent validation, never surfaced as errors.
var KnownAmenities = map[string]bool{
	"pool":       true,
	"gym":        true,
	"parking":    true,
	"balcony":    true,
	"garden":     true,
	"aircon":     true,
	"security":   true,
	"playground": true,
	"tennis":     true,
	"bbq":        true,
	"sea_view":   true,
	"furnished":  true,
	"elevator":   true,
	"storage":    true,
}

var knownPropertyTypes = map[PropertyType]bool{
	PropertyTypeCondo:     true,
	PropertyTypeVilla:     true,
	PropertyTypeApartment: true,
	PropertyTypeTownhouse: true,
	PropertyTypeLand:      true,
}

var knownTransactionTypes = map[TransactionType]bool{
	TransactionSale: true,
	TransactionRent: true,
}

// KnownAmenity reports whether id is in the amenity vocabulary.
func KnownAmenity(id string) bool { return KnownAmenities[id] }

// ParsePropertyType validates a raw value against the vocabulary.
func ParsePropertyType(s string) (PropertyType, bool) {
	t := PropertyType(s)
	return t, knownPropertyTypes[t]
}

// ParseTransactionType validates a raw value against the vocabulary.
func ParseTransactionType(s string) (TransactionType, bool) {
	t := TransactionType(s)
	return t, knownTransactionTypes[t]
}
