package repository

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"searchcore/internal/model"
)

// MemoryRepository is an in-process PropertyRepository. It backs tests and
// the embedded single-binary mode; mutations emit change events the same
// way the database-backed repository does.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*model.PropertyRecord

	events chan model.ChangeEvent
	logger *slog.Logger

	feedbackMu sync.Mutex
	searches   []SearchLogEntry
	feedback   []FeedbackEntry
}

// SearchLogEntry is one recorded search.
type SearchLogEntry struct {
	SearchID    string
	Query       string
	Locale      model.Locale
	ResultCount int
	TookMs      int64
}

// FeedbackEntry is one recorded user action.
type FeedbackEntry struct {
	SearchID   string
	PropertyID string
	Action     string
}

var (
	_ PropertyRepository = (*MemoryRepository)(nil)
	_ FeedbackSink       = (*MemoryRepository)(nil)
)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(logger *slog.Logger) *MemoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryRepository{
		records: make(map[string]*model.PropertyRecord),
		events:  make(chan model.ChangeEvent, 256),
		logger:  logger,
	}
}

// Put inserts or replaces a record, bumping its last-modified timestamp and
// emitting a change event.
func (r *MemoryRepository) Put(record *model.PropertyRecord) {
	now := time.Now()
	cp := *record
	cp.LastModifiedAt = now
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}

	r.mu.Lock()
	r.records[cp.ID] = &cp
	r.mu.Unlock()

	r.emit(model.ChangeEvent{PropertyID: cp.ID, LastModifiedAt: now, Deleted: cp.SoftDeleted})
}

// Seed inserts a record verbatim without emitting an event. Test fixtures
// use it to control timestamps exactly.
func (r *MemoryRepository) Seed(record *model.PropertyRecord) {
	cp := *record
	r.mu.Lock()
	r.records[cp.ID] = &cp
	r.mu.Unlock()
}

// SoftDelete marks a record deleted and emits a deletion event.
func (r *MemoryRepository) SoftDelete(id string) {
	now := time.Now()

	r.mu.Lock()
	if rec, ok := r.records[id]; ok {
		rec.SoftDeleted = true
		rec.LastModifiedAt = now
	}
	r.mu.Unlock()

	r.emit(model.ChangeEvent{PropertyID: id, LastModifiedAt: now, Deleted: true})
}

// GetByID implements PropertyRepository.
func (r *MemoryRepository) GetByID(_ context.Context, id string) (*model.PropertyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// GetByIDs implements PropertyRepository.
func (r *MemoryRepository) GetByIDs(_ context.Context, ids []string) (map[string]*model.PropertyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*model.PropertyRecord, len(ids))
	for _, id := range ids {
		if rec, ok := r.records[id]; ok {
			cp := *rec
			out[id] = &cp
		}
	}
	return out, nil
}

// All implements PropertyRepository.
func (r *MemoryRepository) All(_ context.Context) ([]*model.PropertyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.PropertyRecord, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// Changes implements PropertyRepository.
func (r *MemoryRepository) Changes() <-chan model.ChangeEvent {
	return r.events
}

// SetEmbedding swaps in a freshly computed embedding for one locale without
// touching last-modified (embeddings are derived data, not content).
func (r *MemoryRepository) SetEmbedding(id string, locale model.Locale, emb model.PropertyEmbedding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return
	}
	if rec.Embeddings == nil {
		rec.Embeddings = make(map[model.Locale]model.PropertyEmbedding)
	}
	rec.Embeddings[locale] = emb
}

// LogSearch implements FeedbackSink.
func (r *MemoryRepository) LogSearch(_ context.Context, searchID, query string, locale model.Locale, resultCount int, tookMs int64) error {
	r.feedbackMu.Lock()
	defer r.feedbackMu.Unlock()
	r.searches = append(r.searches, SearchLogEntry{
		SearchID: searchID, Query: query, Locale: locale,
		ResultCount: resultCount, TookMs: tookMs,
	})
	return nil
}

// LogFeedback implements FeedbackSink.
func (r *MemoryRepository) LogFeedback(_ context.Context, searchID, propertyID, action string) error {
	r.feedbackMu.Lock()
	defer r.feedbackMu.Unlock()
	r.feedback = append(r.feedback, FeedbackEntry{SearchID: searchID, PropertyID: propertyID, Action: action})
	return nil
}

// SearchLogs returns recorded searches, for test assertions.
func (r *MemoryRepository) SearchLogs() []SearchLogEntry {
	r.feedbackMu.Lock()
	defer r.feedbackMu.Unlock()
	return append([]SearchLogEntry(nil), r.searches...)
}

func (r *MemoryRepository) emit(ev model.ChangeEvent) {
	select {
	case r.events <- ev:
	default:
		// Consumers run eventually-consistent invalidation; dropping
		// under backpressure only extends staleness by one TTL.
		r.logger.Warn("change event dropped, consumer lagging", "property_id", ev.PropertyID)
	}
}
