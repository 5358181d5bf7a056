// Package reindex refreshes stale vector-index entries. A vector is stale
// when the content hash of a property's current embedding text differs
// from the hash stored alongside the indexed vector.
package reindex

import (
	"context"
	"fmt"
	"log/slog"

	"searchcore/internal/embedding"
	"searchcore/internal/model"
	"searchcore/internal/repository"
	"searchcore/internal/vector"
)

// Report summarizes one reindex pass.
type Report struct {
	Scanned   int `json:"scanned"`
	Refreshed int `json:"refreshed"`
	Skipped   int `json:"skipped"`
	Removed   int `json:"removed"`
}

// Reindexer walks the repository and re-embeds whatever drifted out of
// sync with the vector store.
type Reindexer struct {
	repo    repository.PropertyRepository
	service *embedding.Service
	store   vector.Store
	logger  *slog.Logger
}

// New creates a reindexer.
func New(repo repository.PropertyRepository, service *embedding.Service, store vector.Store, logger *slog.Logger) *Reindexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{repo: repo, service: service, store: store, logger: logger}
}

type staleEntry struct {
	propertyID string
	text       string
	hash       string
}

// Run performs one full pass. Unchanged content is skipped via the hash
// comparison, so a pass over a quiet corpus embeds nothing.
func (r *Reindexer) Run(ctx context.Context) (Report, error) {
	var report Report

	records, err := r.repo.All(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list properties for reindex: %w", err)
	}
	report.Scanned = len(records)

	staleByLocale := make(map[model.Locale][]staleEntry)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !rec.Searchable() {
			if err := r.store.Delete(ctx, rec.ID); err != nil {
				r.logger.Warn("failed to drop unpublished property from index",
					"property_id", rec.ID, "error", err)
			} else {
				report.Removed++
			}
			continue
		}
		for _, locale := range model.SupportedLocales {
			text := rec.EmbeddingText(locale)
			if text == "" {
				continue
			}
			hash := embedding.ContentHash(text)
			stored, err := r.store.ContentHash(ctx, rec.ID, locale)
			if err != nil {
				return report, fmt.Errorf("failed to read stored hash for %s/%s: %w", rec.ID, locale, err)
			}
			if stored == hash {
				report.Skipped++
				continue
			}
			staleByLocale[locale] = append(staleByLocale[locale], staleEntry{
				propertyID: rec.ID,
				text:       text,
				hash:       hash,
			})
		}
	}

	for locale, entries := range staleByLocale {
		texts := make([]string, len(entries))
		for i, e := range entries {
			texts[i] = e.text
		}

		vecs, err := r.service.EmbedBatch(ctx, texts, locale)
		if err != nil {
			return report, fmt.Errorf("reindex embedding for locale %s failed: %w", locale, err)
		}
		for i, e := range entries {
			if err := r.store.Upsert(ctx, e.propertyID, locale, vecs[i], e.hash); err != nil {
				return report, fmt.Errorf("failed to upsert vector for %s/%s: %w", e.propertyID, locale, err)
			}
			report.Refreshed++
		}
	}

	r.logger.Info("reindex pass complete",
		"scanned", report.Scanned,
		"refreshed", report.Refreshed,
		"skipped", report.Skipped,
		"removed", report.Removed)
	return report, nil
}

// HandleEvent refreshes a single property in response to a change event.
func (r *Reindexer) HandleEvent(ctx context.Context, ev model.ChangeEvent) error {
	if ev.Deleted {
		return r.store.Delete(ctx, ev.PropertyID)
	}

	rec, err := r.repo.GetByID(ctx, ev.PropertyID)
	if err != nil {
		return fmt.Errorf("failed to load changed property %s: %w", ev.PropertyID, err)
	}
	if rec == nil || !rec.Searchable() {
		return r.store.Delete(ctx, ev.PropertyID)
	}

	for _, locale := range model.SupportedLocales {
		text := rec.EmbeddingText(locale)
		if text == "" {
			continue
		}
		hash := embedding.ContentHash(text)
		stored, err := r.store.ContentHash(ctx, rec.ID, locale)
		if err != nil {
			return err
		}
		if stored == hash {
			continue
		}
		vec, err := r.service.Embed(ctx, text, locale)
		if err != nil {
			return fmt.Errorf("failed to embed %s/%s: %w", rec.ID, locale, err)
		}
		if err := r.store.Upsert(ctx, rec.ID, locale, vec, hash); err != nil {
			return err
		}
	}
	return nil
}
