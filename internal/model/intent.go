package model

// ExtractedIntent is the structured reading of a free-text query. A
// confidence below the configured threshold means "no extraction": the
// filters are ignored and only the normalized query feeds the semantic path.
type ExtractedIntent struct {
	Filters         FilterSet `json:"filters"`
	Confidence      float64   `json:"confidence"`
	NormalizedQuery string    `json:"normalized_query"`
}

// EmptyIntent is the defined fallback for extraction timeouts, provider
// errors and empty queries. It is a valid value, never an error.
func EmptyIntent(normalizedQuery string) ExtractedIntent {
	return ExtractedIntent{NormalizedQuery: normalizedQuery}
}

// HasFilters reports whether extraction produced any usable filter.
func (i ExtractedIntent) HasFilters() bool {
	return !i.Filters.IsEmpty()
}
