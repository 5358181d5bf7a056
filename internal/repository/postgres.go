package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"searchcore/internal/model"
)

const propertyColumns = `
	id, title, description, price_minor, bedrooms, bathrooms,
	property_type, transaction_type, amenities, locations,
	latitude, longitude, listing_priority,
	created_at, last_modified_at, published, soft_deleted`

// changeChannel is the NOTIFY channel the owning CRUD service publishes
// mutation payloads on.
const changeChannel = "property_changes"

// PostgresRepository is the database-backed PropertyRepository. Change
// events arrive over LISTEN/NOTIFY from the service that owns the schema.
type PostgresRepository struct {
	db       *sqlx.DB
	listener *pq.Listener
	events   chan model.ChangeEvent
	logger   *slog.Logger
	done     chan struct{}
}

var (
	_ PropertyRepository = (*PostgresRepository)(nil)
	_ FeedbackSink       = (*PostgresRepository)(nil)
)

// NewPostgresRepository connects and starts the change-event listener.
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int, logger *slog.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("change listener event", "event", int(ev), "error", err)
		}
	})
	if err := listener.Listen(changeChannel); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to LISTEN on %s: %w", changeChannel, err)
	}

	r := &PostgresRepository{
		db:       db,
		listener: listener,
		events:   make(chan model.ChangeEvent, 256),
		logger:   logger,
		done:     make(chan struct{}),
	}
	go r.pump()
	return r, nil
}

// Close stops the listener and closes the connection pool.
func (r *PostgresRepository) Close() error {
	close(r.done)
	_ = r.listener.Close()
	return r.db.Close()
}

// GetByID implements PropertyRepository.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*model.PropertyRecord, error) {
	var rec model.PropertyRecord
	query := fmt.Sprintf(`SELECT %s FROM properties WHERE id = $1`, propertyColumns)
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &rec, nil
}

// GetByIDs implements PropertyRepository.
func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*model.PropertyRecord, error) {
	if len(ids) == 0 {
		return map[string]*model.PropertyRecord{}, nil
	}
	var recs []model.PropertyRecord
	query := fmt.Sprintf(`SELECT %s FROM properties WHERE id = ANY($1)`, propertyColumns)
	if err := r.db.SelectContext(ctx, &recs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to fetch properties: %w", err)
	}
	out := make(map[string]*model.PropertyRecord, len(recs))
	for i := range recs {
		out[recs[i].ID] = &recs[i]
	}
	return out, nil
}

// All implements PropertyRepository.
func (r *PostgresRepository) All(ctx context.Context) ([]*model.PropertyRecord, error) {
	var recs []model.PropertyRecord
	query := fmt.Sprintf(`SELECT %s FROM properties`, propertyColumns)
	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	out := make([]*model.PropertyRecord, len(recs))
	for i := range recs {
		out[i] = &recs[i]
	}
	return out, nil
}

// Changes implements PropertyRepository.
func (r *PostgresRepository) Changes() <-chan model.ChangeEvent {
	return r.events
}

// LogSearch implements FeedbackSink.
func (r *PostgresRepository) LogSearch(ctx context.Context, searchID, query string, locale model.Locale, resultCount int, tookMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO search_logs (search_id, query, locale, result_count, took_ms)
		VALUES ($1, $2, $3, $4, $5)`,
		searchID, query, string(locale), resultCount, tookMs)
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// LogFeedback implements FeedbackSink.
func (r *PostgresRepository) LogFeedback(ctx context.Context, searchID, propertyID, action string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE search_logs SET clicked_property_id = $2, action = $3
		WHERE search_id = $1`,
		searchID, propertyID, action)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	return nil
}

// DB exposes the connection pool to the sibling filter and vector engines,
// which share it.
func (r *PostgresRepository) DB() *sqlx.DB { return r.db }

func (r *PostgresRepository) pump() {
	defer close(r.events)
	for {
		select {
		case <-r.done:
			return
		case n := <-r.listener.Notify:
			if n == nil {
				// Reconnect marker; deliveries may have been
				// missed. TTL expiry bounds the staleness.
				continue
			}
			var ev model.ChangeEvent
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				r.logger.Warn("malformed change payload", "payload", truncate(n.Extra, 120))
				continue
			}
			select {
			case r.events <- ev:
			case <-r.done:
				return
			}
		case <-time.After(90 * time.Second):
			go func() { _ = r.listener.Ping() }()
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
