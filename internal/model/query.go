package model

import (
	"errors"
	"fmt"
)

// Pagination limits.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Client-input errors. These are the only failures surfaced to callers;
// everything else degrades the response instead.
var (
	ErrUnknownLocale     = errors.New("unknown locale")
	ErrInvalidPagination = errors.New("invalid pagination")
)

// FilterSet is the closed structured-filter vocabulary. Categories combine
// with AND; within a category, property and transaction types are
// OR-membership, amenities require the listing to carry every requested id,
// and location tokens match if any one of them does.
type FilterSet struct {
	PropertyTypes    []PropertyType    `json:"property_types,omitempty"`
	TransactionTypes []TransactionType `json:"transaction_types,omitempty"`
	BedroomsMin      *int              `json:"bedrooms_min,omitempty"`
	PriceMinMinor    *int64            `json:"price_min_minor,omitempty"`
	PriceMaxMinor    *int64            `json:"price_max_minor,omitempty"`
	Amenities        []string          `json:"amenities,omitempty"`
	Locations        []string          `json:"locations,omitempty"`
}

// IsEmpty reports whether no filter category is set.
func (f *FilterSet) IsEmpty() bool {
	if f == nil {
		return true
	}
	return len(f.PropertyTypes) == 0 &&
		len(f.TransactionTypes) == 0 &&
		f.BedroomsMin == nil &&
		f.PriceMinMinor == nil &&
		f.PriceMaxMinor == nil &&
		len(f.Amenities) == 0 &&
		len(f.Locations) == 0
}

// Merge combines explicit filters with extracted ones. Explicit values win
// per category; extracted values only fill categories the caller left unset.
func (f *FilterSet) Merge(extracted *FilterSet) *FilterSet {
	merged := &FilterSet{}
	if f != nil {
		*merged = *f
	}
	if extracted == nil {
		return merged
	}
	if len(merged.PropertyTypes) == 0 {
		merged.PropertyTypes = extracted.PropertyTypes
	}
	if len(merged.TransactionTypes) == 0 {
		merged.TransactionTypes = extracted.TransactionTypes
	}
	if merged.BedroomsMin == nil {
		merged.BedroomsMin = extracted.BedroomsMin
	}
	if merged.PriceMinMinor == nil {
		merged.PriceMinMinor = extracted.PriceMinMinor
	}
	if merged.PriceMaxMinor == nil {
		merged.PriceMaxMinor = extracted.PriceMaxMinor
	}
	if len(merged.Amenities) == 0 {
		merged.Amenities = extracted.Amenities
	}
	if len(merged.Locations) == 0 {
		merged.Locations = extracted.Locations
	}
	return merged
}

// SearchRequest is the transport-agnostic search contract. Query may be nil
// for filter-only searches.
type SearchRequest struct {
	Query   *string    `json:"query"`
	Locale  Locale     `json:"locale"`
	Filters *FilterSet `json:"filters,omitempty"`
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
}

// Normalize applies pagination defaults and validates caller input.
// A returned error is the 4xx-equivalent case; all other failure modes
// degrade instead of erroring.
func (r *SearchRequest) Normalize() error {
	if !r.Locale.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLocale, r.Locale)
	}
	if r.Page == 0 {
		r.Page = 1
	}
	if r.PerPage == 0 {
		r.PerPage = DefaultPerPage
	}
	if r.Page < 1 || r.PerPage < 1 || r.PerPage > MaxPerPage {
		return fmt.Errorf("%w: page=%d per_page=%d", ErrInvalidPagination, r.Page, r.PerPage)
	}
	return nil
}

// QueryText returns the raw query text, empty when absent.
func (r *SearchRequest) QueryText() string {
	if r.Query == nil {
		return ""
	}
	return *r.Query
}

// SearchResponse is the engine's answer. DegradedMode marks a response
// produced with one or more optional signals unavailable; it is still
// correct, just lower quality.
type SearchResponse struct {
	Results            []RankedResult `json:"results"`
	TotalEstimate      int            `json:"total_estimate"`
	DegradedMode       bool           `json:"degraded_mode"`
	InterpretedFilters *FilterSet     `json:"interpreted_filters,omitempty"`
	SearchID           string         `json:"search_id"`
	TookMs             int64          `json:"took_ms"`
	CacheHit           bool           `json:"cache_hit,omitempty"`
}
