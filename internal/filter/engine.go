// Package filter implements structured attribute matching over property
// listings. Filter categories combine with AND. Within a category:
// property and transaction types are OR-membership, amenities require the
// listing's amenity set to be a superset of every requested id, and
// location tokens match if any one matches. Every engine is hard-gated on
// published and not soft-deleted.
package filter

import (
	"context"
	"strings"

	"searchcore/internal/model"
)

// Engine resolves a filter set to the matching property-id set.
type Engine interface {
	Match(ctx context.Context, filters *model.FilterSet) (map[string]struct{}, error)
}

// Matches is the canonical in-process predicate. The memory engine applies
// it directly and the Postgres engine's SQL must agree with it; the shared
// test suite holds the two together.
func Matches(p *model.PropertyRecord, f *model.FilterSet) bool {
	if !p.Searchable() {
		return false
	}
	if f == nil {
		return true
	}

	if len(f.PropertyTypes) > 0 && !containsPropertyType(f.PropertyTypes, p.PropertyType) {
		return false
	}
	if len(f.TransactionTypes) > 0 && !containsTransactionType(f.TransactionTypes, p.TransactionType) {
		return false
	}
	if f.BedroomsMin != nil && p.Bedrooms < *f.BedroomsMin {
		return false
	}
	if f.PriceMinMinor != nil && p.PriceMinor < *f.PriceMinMinor {
		return false
	}
	if f.PriceMaxMinor != nil && p.PriceMinor > *f.PriceMaxMinor {
		return false
	}
	// Superset semantics: one missing amenity disqualifies the listing.
	for _, a := range f.Amenities {
		if !p.HasAmenity(a) {
			return false
		}
	}
	if len(f.Locations) > 0 && !matchesAnyLocation(p.Locations, f.Locations) {
		return false
	}
	return true
}

func containsPropertyType(types []model.PropertyType, t model.PropertyType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsTransactionType(types []model.TransactionType, t model.TransactionType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func matchesAnyLocation(have []string, want []string) bool {
	for _, w := range want {
		w = strings.ToLower(w)
		for _, h := range have {
			if strings.ToLower(h) == w {
				return true
			}
		}
	}
	return false
}
