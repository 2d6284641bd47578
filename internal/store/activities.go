package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

const activitiesSchema = `
CREATE TABLE IF NOT EXISTS activity_types (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source       TEXT NOT NULL,
	heading      TEXT NOT NULL,
	heading_norm TEXT NOT NULL,
	intensity    TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_heading_norm ON activity_types(heading_norm);
`

// ActivityRecord is one activity-type definition chunk.
type ActivityRecord struct {
	ID          int64  `db:"id"`
	Source      string `db:"source"`
	Heading     string `db:"heading"`
	HeadingNorm string `db:"heading_norm"`
	Intensity   string `db:"intensity"`
	Content     string `db:"content"`
}

// ActivityHit is a scored search result.
type ActivityHit struct {
	Doc   ActivityRecord
	Score float64
}

// ActivityStore persists activity-type definitions and serves keyword
// relevance search over them. The corpus is small (one record per heading
// per file), so scoring loads it whole and ranks in memory.
type ActivityStore struct {
	db *sqlx.DB
}

func NewActivityStore(db *sqlx.DB) (*ActivityStore, error) {
	if _, err := db.Exec(activitiesSchema); err != nil {
		return nil, fmt.Errorf("create activity_types schema: %w", err)
	}
	return &ActivityStore{db: db}, nil
}

const insertActivitySQL = `
INSERT INTO activity_types (source, heading, heading_norm, intensity, content)
VALUES (:source, :heading, :heading_norm, :intensity, :content)`

func (s *ActivityStore) Insert(ctx context.Context, docs []ActivityRecord) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert activity types: %w", err)
	}
	defer tx.Rollback()
	for _, d := range docs {
		if _, err := tx.NamedExecContext(ctx, insertActivitySQL, d); err != nil {
			return fmt.Errorf("insert activity type %q: %w", d.HeadingNorm, err)
		}
	}
	return tx.Commit()
}

func (s *ActivityStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM activity_types`)
	return err
}

func (s *ActivityStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM activity_types`)
	return n, err
}

// IntensityMap returns the first stored intensity per normalized heading.
func (s *ActivityStore) IntensityMap(ctx context.Context) (map[string]string, error) {
	var rows []ActivityRecord
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, source, heading, heading_norm, intensity, content
		FROM activity_types WHERE intensity != '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query intensity map: %w", err)
	}
	m := map[string]string{}
	for _, r := range rows {
		if _, ok := m[r.HeadingNorm]; !ok {
			m[r.HeadingNorm] = r.Intensity
		}
	}
	return m, nil
}

// Search ranks activity definitions against a free-text query by token
// overlap, with heading hits counted twice. Zero-score docs are dropped.
// Ties break on normalized heading, then source, so results are stable.
func (s *ActivityStore) Search(ctx context.Context, query string, k int) ([]ActivityHit, error) {
	if k <= 0 {
		return nil, nil
	}
	var docs []ActivityRecord
	err := s.db.SelectContext(ctx, &docs, `
		SELECT id, source, heading, heading_norm, intensity, content
		FROM activity_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query activity types: %w", err)
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	hits := make([]ActivityHit, 0, len(docs))
	for _, d := range docs {
		content := tokenize(d.Content)
		heading := tokenize(d.Heading + " " + d.HeadingNorm)
		var score float64
		for tok := range queryTokens {
			if _, ok := heading[tok]; ok {
				score += 2
				continue
			}
			if _, ok := content[tok]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, ActivityHit{Doc: d, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Doc.HeadingNorm != hits[j].Doc.HeadingNorm {
			return hits[i].Doc.HeadingNorm < hits[j].Doc.HeadingNorm
		}
		return hits[i].Doc.Source < hits[j].Doc.Source
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func tokenize(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(tok) >= 2 {
			out[tok] = struct{}{}
		}
	}
	return out
}
