package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Stats summarizes the journal since a point in time.
type Stats struct {
	Since       time.Time      `json:"since"`
	Transitions int            `json:"transitions"`
	Entered     map[string]int `json:"entered"`
	Runs        int            `json:"runs"`
	MoodSamples int            `json:"mood_samples"`
	// LatestMood is only meaningful when MoodSamples > 0.
	LatestMood      float64   `json:"latest_mood"`
	LatestMoodLabel string    `json:"latest_mood_label,omitempty"`
	LatestMoodAt    time.Time `json:"latest_mood_at,omitzero"`
}

// Stats counts transitions per entered state and reports the latest mood.
func (j *Journal) Stats(ctx context.Context, since time.Time) (Stats, error) {
	s := Stats{Since: since, Entered: map[string]int{}}
	from := since.UnixMilli()

	rows, err := j.db.QueryContext(ctx,
		`SELECT to_state, COUNT(*) FROM transitions WHERE at >= ? GROUP BY to_state`, from)
	if err != nil {
		return s, fmt.Errorf("query transitions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return s, fmt.Errorf("scan transitions: %w", err)
		}
		s.Entered[state] = n
		s.Transitions += n
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	err = j.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT run_id) FROM transitions WHERE at >= ?`, from).Scan(&s.Runs)
	if err != nil {
		return s, fmt.Errorf("count runs: %w", err)
	}

	err = j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mood_samples WHERE at >= ?`, from).Scan(&s.MoodSamples)
	if err != nil {
		return s, fmt.Errorf("count mood samples: %w", err)
	}

	var at int64
	err = j.db.QueryRowContext(ctx,
		`SELECT value, label, at FROM mood_samples WHERE at >= ? ORDER BY at DESC, id DESC LIMIT 1`, from).
		Scan(&s.LatestMood, &s.LatestMoodLabel, &at)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return s, fmt.Errorf("latest mood: %w", err)
	default:
		s.LatestMoodAt = time.UnixMilli(at)
	}
	return s, nil
}
