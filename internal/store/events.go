package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	event_name     TEXT NOT NULL,
	event_type     TEXT NOT NULL DEFAULT '',
	event_type_raw TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL,
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	age_min        INTEGER,
	age_max        INTEGER,
	age_contains   TEXT NOT NULL DEFAULT '',
	intensity      TEXT NOT NULL DEFAULT '',
	instructor     TEXT NOT NULL DEFAULT '',
	date_range     TEXT NOT NULL DEFAULT '',
	time_slots     TEXT NOT NULL DEFAULT '',
	duration       TEXT NOT NULL DEFAULT '',
	spots          TEXT NOT NULL DEFAULT '',
	center_name    TEXT NOT NULL DEFAULT '',
	center_type    TEXT NOT NULL DEFAULT '',
	page_content   TEXT NOT NULL,
	created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_city_state ON events(city, state);
CREATE INDEX IF NOT EXISTS idx_events_intensity ON events(intensity);
`

// EventRecord is one stored event. AgeMin/AgeMax are nil when the brochure
// carried no numeric range; AgeContains is the ", "-joined bucket list.
type EventRecord struct {
	ID           int64  `db:"id"`
	EventName    string `db:"event_name"`
	EventType    string `db:"event_type"`
	EventTypeRaw string `db:"event_type_raw"`
	Source       string `db:"source"`
	City         string `db:"city"`
	State        string `db:"state"`
	AgeMin       *int   `db:"age_min"`
	AgeMax       *int   `db:"age_max"`
	AgeContains  string `db:"age_contains"`
	Intensity    string `db:"intensity"`
	Instructor   string `db:"instructor"`
	DateRange    string `db:"date_range"`
	TimeSlots    string `db:"time_slots"`
	Duration     string `db:"duration"`
	Spots        string `db:"spots"`
	CenterName   string `db:"center_name"`
	CenterType   string `db:"center_type"`
	PageContent  string `db:"page_content"`
}

// EventFilter narrows an event query. Zero-valued fields are skipped.
// EventTypes and AgeGroups are OR lists; string matches are case-insensitive.
type EventFilter struct {
	EventTypes []string
	City       string
	State      string
	AgeGroups  []string
	Intensity  string
	Limit      int
}

// EventStore persists and queries events.
type EventStore struct {
	db *sqlx.DB
}

func NewEventStore(db *sqlx.DB) (*EventStore, error) {
	if _, err := db.Exec(eventsSchema); err != nil {
		return nil, fmt.Errorf("create events schema: %w", err)
	}
	return &EventStore{db: db}, nil
}

const eventColumns = `id, event_name, event_type, event_type_raw, source,
	city, state, age_min, age_max, age_contains,
	intensity, instructor, date_range, time_slots,
	duration, spots, center_name, center_type, page_content`

const insertEventSQL = `
INSERT INTO events (
	event_name, event_type, event_type_raw, source,
	city, state, age_min, age_max, age_contains,
	intensity, instructor, date_range, time_slots,
	duration, spots, center_name, center_type, page_content
) VALUES (
	:event_name, :event_type, :event_type_raw, :source,
	:city, :state, :age_min, :age_max, :age_contains,
	:intensity, :instructor, :date_range, :time_slots,
	:duration, :spots, :center_name, :center_type, :page_content
)`

func (s *EventStore) Insert(ctx context.Context, events []EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert events: %w", err)
	}
	defer tx.Rollback()
	for _, e := range events {
		if _, err := tx.NamedExecContext(ctx, insertEventSQL, e); err != nil {
			return fmt.Errorf("insert event %q: %w", e.EventName, err)
		}
	}
	return tx.Commit()
}

func (s *EventStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events`)
	return err
}

func (s *EventStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM events`)
	return n, err
}

// Capabilities: type and location filters run in SQL; age-bucket overlap and
// intensity are enforced by the caller, where missing metadata has its own
// fallback rules.
func (s *EventStore) Capabilities() QueryCapabilities {
	return QueryCapabilities{EventType: true, City: true, State: true}
}

// Query returns events matching the filter. Rows come back in insertion
// order; the caller ranks them.
func (s *EventStore) Query(ctx context.Context, f EventFilter) ([]EventRecord, error) {
	var conditions []string
	var args []any

	if len(f.EventTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.EventTypes)), ",")
		conditions = append(conditions, fmt.Sprintf("LOWER(event_type) IN (%s)", placeholders))
		for _, et := range f.EventTypes {
			args = append(args, strings.ToLower(et))
		}
	}
	if f.City != "" {
		conditions = append(conditions, "LOWER(city) = ?")
		args = append(args, strings.ToLower(f.City))
	}
	if f.State != "" {
		conditions = append(conditions, "LOWER(state) = ?")
		args = append(args, strings.ToLower(f.State))
	}
	if len(f.AgeGroups) > 0 {
		var ageConds []string
		for _, g := range f.AgeGroups {
			g = strings.ToLower(strings.TrimSpace(g))
			if g == "" {
				continue
			}
			ageConds = append(ageConds, "(LOWER(age_contains) LIKE ? OR LOWER(age_contains) = ?)")
			args = append(args, "%"+g+"%", g)
		}
		if len(ageConds) > 0 {
			conditions = append(conditions, "("+strings.Join(ageConds, " OR ")+")")
		}
	}
	if f.Intensity != "" {
		conditions = append(conditions, "LOWER(intensity) = ?")
		args = append(args, strings.ToLower(f.Intensity))
	}

	where := "1=1"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id LIMIT ?`, eventColumns, where)
	args = append(args, limit)

	var out []EventRecord
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return out, nil
}
