// Package interpreter turns free-text queries into validated structured
// filters using the external LLM capability. Extraction never fails a
// request: every provider problem collapses to an empty intent with
// confidence 0.
package interpreter

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"searchcore/internal/llm"
	"searchcore/internal/model"
	"searchcore/internal/utils"
)

// Config tunes the interpreter.
type Config struct {
	// Budget bounds one extraction call, retry included.
	Budget time.Duration
	// MinConfidence below which an extraction counts as "no extraction".
	MinConfidence float64
	// BreakerFailures is the consecutive-failure count that opens the
	// breaker; BreakerCooldown is how long extraction stays skipped.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Interpreter is the QueryInterpreter. A circuit breaker around the
// provider bounds tail latency during outages: once open, extraction is
// skipped outright and search runs keyword/filter-only until the cool-down
// elapses.
type Interpreter struct {
	extractor     llm.Extractor
	breaker       *gobreaker.CircuitBreaker
	budget        time.Duration
	minConfidence float64
	logger        *slog.Logger
}

// New creates an interpreter over the given extractor.
func New(extractor llm.Extractor, cfg Config, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 2 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "intent-extraction",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
	})

	return &Interpreter{
		extractor:     extractor,
		breaker:       breaker,
		budget:        cfg.Budget,
		minConfidence: cfg.MinConfidence,
		logger:        logger,
	}
}

// Interpret extracts structured filters from the query text. The returned
// intent always carries the normalized query so the semantic path works
// even when extraction produced nothing.
func (p *Interpreter) Interpret(ctx context.Context, text string, locale model.Locale) model.ExtractedIntent {
	normalized := utils.NormalizeQuery(text)
	if normalized == "" || p.extractor == nil {
		return model.EmptyIntent(normalized)
	}

	ctx, cancel := context.WithTimeout(ctx, p.budget)
	defer cancel()

	raw, err := p.breaker.Execute(func() (interface{}, error) {
		return p.extractOnce(ctx, normalized, locale)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			p.logger.Info("extraction skipped, breaker open")
		} else {
			p.logger.Warn("intent extraction degraded", "error", err)
		}
		return model.EmptyIntent(normalized)
	}

	extraction := raw.(*llm.IntentExtraction)
	intent := p.validate(extraction, normalized)
	if intent.Confidence < p.minConfidence {
		p.logger.Info("extraction below confidence threshold, using keyword-only fallback",
			"confidence", intent.Confidence)
		return model.EmptyIntent(normalized)
	}
	return intent
}

// extractOnce calls the provider, retrying a single time on failure as the
// capability contract allows.
func (p *Interpreter) extractOnce(ctx context.Context, text string, locale model.Locale) (*llm.IntentExtraction, error) {
	result, err := p.extractor.ExtractIntent(ctx, text, locale)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	return p.extractor.ExtractIntent(ctx, text, locale)
}

// validate maps the untyped extraction into the closed FilterSet
// vocabulary. Unrecognized values are dropped silently and logged as
// low-confidence signals, never surfaced as errors.
func (p *Interpreter) validate(raw *llm.IntentExtraction, normalized string) model.ExtractedIntent {
	intent := model.ExtractedIntent{
		Confidence:      raw.Confidence,
		NormalizedQuery: normalized,
	}

	dropped := 0
	for _, v := range raw.PropertyTypes {
		if t, ok := model.ParsePropertyType(v); ok {
			intent.Filters.PropertyTypes = append(intent.Filters.PropertyTypes, t)
		} else {
			dropped++
			p.logger.Debug("dropped unknown property type", "value", v)
		}
	}
	for _, v := range raw.TransactionTypes {
		if t, ok := model.ParseTransactionType(v); ok {
			intent.Filters.TransactionTypes = append(intent.Filters.TransactionTypes, t)
		} else {
			dropped++
			p.logger.Debug("dropped unknown transaction type", "value", v)
		}
	}
	if raw.BedroomsMin != nil && *raw.BedroomsMin >= 0 && *raw.BedroomsMin <= 20 {
		intent.Filters.BedroomsMin = raw.BedroomsMin
	} else if raw.BedroomsMin != nil {
		dropped++
	}
	if raw.PriceMinMinor != nil && *raw.PriceMinMinor >= 0 {
		intent.Filters.PriceMinMinor = raw.PriceMinMinor
	}
	if raw.PriceMaxMinor != nil && *raw.PriceMaxMinor > 0 {
		intent.Filters.PriceMaxMinor = raw.PriceMaxMinor
	}
	if intent.Filters.PriceMinMinor != nil && intent.Filters.PriceMaxMinor != nil &&
		*intent.Filters.PriceMinMinor > *intent.Filters.PriceMaxMinor {
		// An inverted range is model noise, not a caller error.
		intent.Filters.PriceMinMinor = nil
		intent.Filters.PriceMaxMinor = nil
		dropped++
	}
	for _, v := range raw.Amenities {
		id := utils.NormalizeAmenityToken(v)
		if model.KnownAmenity(id) {
			intent.Filters.Amenities = append(intent.Filters.Amenities, id)
		} else {
			dropped++
			p.logger.Debug("dropped unknown amenity", "value", v)
		}
	}
	for _, v := range raw.Locations {
		if token := utils.NormalizeLocationToken(v); token != "" {
			intent.Filters.Locations = append(intent.Filters.Locations, token)
		}
	}

	if dropped > 0 {
		p.logger.Info("extraction contained out-of-vocabulary values", "dropped", dropped)
	}
	return intent
}
