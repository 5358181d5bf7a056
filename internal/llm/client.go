package llm

import (
	"context"
	"errors"

	"searchcore/internal/model"
)

// ErrDisabled is returned when no provider is configured.
var ErrDisabled = errors.New("llm: provider not configured")

// IntentExtraction is the raw JSON shape the extraction prompt constrains
// the model to. Every field is re-validated against the closed vocabulary
// before it reaches ranking logic; nothing here is trusted downstream.
type IntentExtraction struct {
	PropertyTypes    []string `json:"property_types,omitempty"`
	TransactionTypes []string `json:"transaction_types,omitempty"`
	BedroomsMin      *int     `json:"bedrooms_min,omitempty"`
	PriceMinMinor    *int64   `json:"price_min_minor,omitempty"`
	PriceMaxMinor    *int64   `json:"price_max_minor,omitempty"`
	Amenities        []string `json:"amenities,omitempty"`
	Locations        []string `json:"locations,omitempty"`
	Confidence       float64  `json:"confidence,omitempty"`
}

// Extractor turns free text into a candidate filter extraction.
type Extractor interface {
	ExtractIntent(ctx context.Context, text string, locale model.Locale) (*IntentExtraction, error)
}

// Embedder converts texts to fixed-dimensionality vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string, locale model.Locale) ([][]float32, error)
}
