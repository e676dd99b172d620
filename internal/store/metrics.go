package store

import (
	"database/sql"

	"github.com/pkg/errors"
)

// SaveMetric persists a single metric value so counters survive restarts.
func (s *Store) SaveMetric(name string, value float64) error {
	query := `
	INSERT INTO metrics (metric_name, metric_value) VALUES (?, ?)
	ON CONFLICT (metric_name) DO UPDATE SET metric_value = excluded.metric_value;`

	if _, err := s.db.Exec(query, name, value); err != nil {
		return errors.Wrapf(err, "failed to save metric %s", name)
	}
	return nil
}

// GetMetric returns the persisted value for a metric, or 0 when unknown.
func (s *Store) GetMetric(name string) (float64, error) {
	var value float64
	err := s.db.QueryRow(`SELECT metric_value FROM metrics WHERE metric_name = ?;`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get metric %s", name)
	}
	return value, nil
}
