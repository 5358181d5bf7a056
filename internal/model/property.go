package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Locale identifies a supported content language.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleZH Locale = "zh"
	LocaleMS Locale = "ms"
)

// SupportedLocales lists every locale the engine serves.
var SupportedLocales = []Locale{LocaleEN, LocaleZH, LocaleMS}

// Valid reports whether the locale is one the engine supports.
func (l Locale) Valid() bool {
	for _, s := range SupportedLocales {
		if l == s {
			return true
		}
	}
	return false
}

// PropertyType is the closed property category vocabulary.
type PropertyType string

const (
	PropertyTypeCondo     PropertyType = "condo"
	PropertyTypeVilla     PropertyType = "villa"
	PropertyTypeApartment PropertyType = "apartment"
	PropertyTypeTownhouse PropertyType = "townhouse"
	PropertyTypeLand      PropertyType = "land"
)

// TransactionType distinguishes sale from rental listings.
type TransactionType string

const (
	TransactionSale TransactionType = "sale"
	TransactionRent TransactionType = "rent"
)

// LocalizedText maps a locale to the text content in that language.
type LocalizedText map[Locale]string

// Value implements driver.Valuer so the map round-trips as jsonb.
func (t LocalizedText) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *LocalizedText) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	}
	return fmt.Errorf("cannot scan %T into LocalizedText", value)
}

// StringList is a jsonb-backed string array column.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("cannot scan %T into StringList", value)
}

// PropertyEmbedding is one locale's embedding vector together with the
// content hash of the text it was computed from. The vector is current
// only while the hash still matches the record's text.
type PropertyEmbedding struct {
	Vector      []float32
	ContentHash string
}

// PropertyRecord is the slice of a property listing the search engine reads.
// The owning repository manages the full schema; only these fields take part
// in filtering, ranking and embedding.
type PropertyRecord struct {
	ID              string          `json:"id" db:"id"`
	Title           LocalizedText   `json:"title" db:"title"`
	Description     LocalizedText   `json:"description" db:"description"`
	PriceMinor      int64           `json:"price_minor" db:"price_minor"`
	Bedrooms        int             `json:"bedrooms" db:"bedrooms"`
	Bathrooms       int             `json:"bathrooms" db:"bathrooms"`
	PropertyType    PropertyType    `json:"property_type" db:"property_type"`
	TransactionType TransactionType `json:"transaction_type" db:"transaction_type"`
	Amenities       StringList      `json:"amenities" db:"amenities"`
	Locations       StringList      `json:"locations" db:"locations"`
	Latitude        float64         `json:"latitude" db:"latitude"`
	Longitude       float64         `json:"longitude" db:"longitude"`
	ListingPriority int             `json:"listing_priority" db:"listing_priority"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	LastModifiedAt  time.Time       `json:"last_modified_at" db:"last_modified_at"`
	Published       bool            `json:"published" db:"published"`
	SoftDeleted     bool            `json:"soft_deleted" db:"soft_deleted"`

	// Embeddings holds one vector per locale; absent entries mean the
	// locale has not been indexed yet.
	Embeddings map[Locale]PropertyEmbedding `json:"-" db:"-"`
}

// EmbeddingText returns the text that feeds the embedding for a locale.
func (p *PropertyRecord) EmbeddingText(locale Locale) string {
	title := p.Title[locale]
	desc := p.Description[locale]
	if title == "" {
		return desc
	}
	if desc == "" {
		return title
	}
	return title + "\n" + desc
}

// HasAmenity reports whether the listing carries the given amenity id.
func (p *PropertyRecord) HasAmenity(id string) bool {
	for _, a := range p.Amenities {
		if a == id {
			return true
		}
	}
	return false
}

// Searchable reports whether the record may appear in any result set.
func (p *PropertyRecord) Searchable() bool {
	return p.Published && !p.SoftDeleted
}

// ChangeEvent is emitted by the property repository on every mutation.
// The cache consumes it for invalidation; the reindexer uses it to refresh
// embeddings.
type ChangeEvent struct {
	PropertyID     string    `json:"property_id"`
	LastModifiedAt time.Time `json:"last_modified_at"`
	Deleted        bool      `json:"deleted"`
}
