package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

const reviewsSchema = `
CREATE TABLE IF NOT EXISTS reviews (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	review_text   TEXT NOT NULL,
	rating        TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL DEFAULT '',
	event_type    TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	sentiment     TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	created_at_db TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_reviews_event_type ON reviews(event_type);
CREATE INDEX IF NOT EXISTS idx_reviews_location ON reviews(location);
CREATE INDEX IF NOT EXISTS idx_reviews_sentiment ON reviews(sentiment);
`

// ReviewRecord is one stored review. Rating stays a string as it came from
// the CSV; scoring parses it and skips what does not parse.
type ReviewRecord struct {
	ID         int64  `db:"id"`
	ReviewText string `db:"review_text"`
	Rating     string `db:"rating"`
	CreatedAt  string `db:"created_at"`
	EventType  string `db:"event_type"`
	Location   string `db:"location"`
	Sentiment  string `db:"sentiment"`
	Source     string `db:"source"`
}

// ReviewFilter narrows a review query. EventTypes and Locations are OR
// lists matched case-insensitively; Rating is matched exactly as stored.
type ReviewFilter struct {
	EventTypes []string
	Locations  []string
	Rating     string
	Sentiment  string
	Limit      int
}

// ReviewScores holds average ratings keyed by activity type and by venue.
type ReviewScores struct {
	Activity map[string]float64
	Venue    map[string]float64
}

// ReviewStore persists and queries reviews.
type ReviewStore struct {
	db *sqlx.DB
}

func NewReviewStore(db *sqlx.DB) (*ReviewStore, error) {
	if _, err := db.Exec(reviewsSchema); err != nil {
		return nil, fmt.Errorf("create reviews schema: %w", err)
	}
	return &ReviewStore{db: db}, nil
}

const insertReviewSQL = `
INSERT INTO reviews (review_text, rating, created_at, event_type, location, sentiment, source)
VALUES (:review_text, :rating, :created_at, :event_type, :location, :sentiment, :source)`

func (s *ReviewStore) Insert(ctx context.Context, reviews []ReviewRecord) error {
	if len(reviews) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert reviews: %w", err)
	}
	defer tx.Rollback()
	for i, r := range reviews {
		if _, err := tx.NamedExecContext(ctx, insertReviewSQL, r); err != nil {
			return fmt.Errorf("insert review %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *ReviewStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reviews`)
	return err
}

func (s *ReviewStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM reviews`)
	return n, err
}

func reviewWhere(eventTypes, locations []string) (string, []any) {
	var conditions []string
	var args []any
	if len(eventTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventTypes)), ",")
		conditions = append(conditions, fmt.Sprintf("LOWER(event_type) IN (%s)", placeholders))
		for _, et := range eventTypes {
			args = append(args, strings.ToLower(et))
		}
	}
	if len(locations) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(locations)), ",")
		conditions = append(conditions, fmt.Sprintf("LOWER(location) IN (%s)", placeholders))
		for _, loc := range locations {
			args = append(args, strings.ToLower(loc))
		}
	}
	if len(conditions) == 0 {
		return "1=1", nil
	}
	return strings.Join(conditions, " AND "), args
}

// Query returns reviews matching the filter in insertion order.
func (s *ReviewStore) Query(ctx context.Context, f ReviewFilter) ([]ReviewRecord, error) {
	where, args := reviewWhere(f.EventTypes, f.Locations)
	if f.Rating != "" {
		where += " AND rating = ?"
		args = append(args, f.Rating)
	}
	if f.Sentiment != "" {
		where += " AND LOWER(sentiment) = ?"
		args = append(args, strings.ToLower(f.Sentiment))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT id, review_text, rating, created_at, event_type, location, sentiment, source
		FROM reviews WHERE %s ORDER BY id LIMIT ?`, where)
	args = append(args, limit)

	var out []ReviewRecord
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	return out, nil
}

// Scores averages ratings per activity type and per venue over the reviews
// matching the optional filters. Reviews whose rating is empty or does not
// parse as a number contribute to neither map; a key is absent when no
// parseable rating mentioned it.
func (s *ReviewStore) Scores(ctx context.Context, eventTypes, locations []string) (ReviewScores, error) {
	where, args := reviewWhere(eventTypes, locations)
	query := fmt.Sprintf(`
		SELECT event_type, location, rating
		FROM reviews
		WHERE %s AND rating != ''`, where)

	var rows []struct {
		EventType string `db:"event_type"`
		Location  string `db:"location"`
		Rating    string `db:"rating"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return ReviewScores{}, fmt.Errorf("query review scores: %w", err)
	}

	type agg struct {
		sum float64
		n   int
	}
	activity := map[string]*agg{}
	venue := map[string]*agg{}
	for _, row := range rows {
		rating, err := strconv.ParseFloat(strings.TrimSpace(row.Rating), 64)
		if err != nil {
			continue
		}
		if et := strings.TrimSpace(row.EventType); et != "" {
			if activity[et] == nil {
				activity[et] = &agg{}
			}
			activity[et].sum += rating
			activity[et].n++
		}
		if loc := strings.TrimSpace(row.Location); loc != "" {
			if venue[loc] == nil {
				venue[loc] = &agg{}
			}
			venue[loc].sum += rating
			venue[loc].n++
		}
	}

	scores := ReviewScores{Activity: map[string]float64{}, Venue: map[string]float64{}}
	for k, a := range activity {
		scores.Activity[k] = a.sum / float64(a.n)
	}
	for k, a := range venue {
		scores.Venue[k] = a.sum / float64(a.n)
	}
	return scores, nil
}
