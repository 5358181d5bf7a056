package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"searchcore/internal/model"
)

// PostgresEngine resolves filters with a single indexed query. The WHERE
// clause is built category by category so each one maps onto the same
// semantics as Matches.
type PostgresEngine struct {
	db *sqlx.DB
}

var _ Engine = (*PostgresEngine)(nil)

// NewPostgresEngine wraps an existing connection pool.
func NewPostgresEngine(db *sqlx.DB) *PostgresEngine {
	return &PostgresEngine{db: db}
}

// Match implements Engine.
func (e *PostgresEngine) Match(ctx context.Context, filters *model.FilterSet) (map[string]struct{}, error) {
	whereClauses := []string{"published = true", "soft_deleted = false"}
	args := []interface{}{}
	argIndex := 1

	if filters != nil {
		if len(filters.PropertyTypes) > 0 {
			whereClauses = append(whereClauses, fmt.Sprintf("property_type = ANY($%d)", argIndex))
			args = append(args, pq.Array(propertyTypeStrings(filters.PropertyTypes)))
			argIndex++
		}
		if len(filters.TransactionTypes) > 0 {
			whereClauses = append(whereClauses, fmt.Sprintf("transaction_type = ANY($%d)", argIndex))
			args = append(args, pq.Array(transactionTypeStrings(filters.TransactionTypes)))
			argIndex++
		}
		if filters.BedroomsMin != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("bedrooms >= $%d", argIndex))
			args = append(args, *filters.BedroomsMin)
			argIndex++
		}
		if filters.PriceMinMinor != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("price_minor >= $%d", argIndex))
			args = append(args, *filters.PriceMinMinor)
			argIndex++
		}
		if filters.PriceMaxMinor != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("price_minor <= $%d", argIndex))
			args = append(args, *filters.PriceMaxMinor)
			argIndex++
		}
		if len(filters.Amenities) > 0 {
			// jsonb @> enforces the superset requirement in one condition.
			amenityJSON, err := json.Marshal(filters.Amenities)
			if err != nil {
				return nil, fmt.Errorf("failed to encode amenity filter: %w", err)
			}
			whereClauses = append(whereClauses, fmt.Sprintf("amenities @> $%d::jsonb", argIndex))
			args = append(args, string(amenityJSON))
			argIndex++
		}
		if len(filters.Locations) > 0 {
			// ?| is true when any requested token is an element.
			whereClauses = append(whereClauses, fmt.Sprintf("locations ?| $%d", argIndex))
			args = append(args, pq.Array(lowered(filters.Locations)))
			argIndex++
		}
	}

	query := fmt.Sprintf("SELECT id FROM properties WHERE %s", strings.Join(whereClauses, " AND "))

	var ids []string
	if err := e.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to match filters: %w", err)
	}

	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func propertyTypeStrings(types []model.PropertyType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func transactionTypeStrings(types []model.TransactionType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func lowered(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.ToLower(t)
	}
	return out
}
