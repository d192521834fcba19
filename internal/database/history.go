package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"verticlipper/internal/apperr"
	"verticlipper/internal/logging"
	"verticlipper/internal/metrics"
)

// RecordSession stores an accepted upload session.
func (d *Database) RecordSession(ctx context.Context, s UploadSession) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_session", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO upload_sessions (id, overlay_count, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET overlay_count = excluded.overlay_count`,
		s.ID, s.OverlayCount, created.Unix(),
	)
	return err
}

// RecordComposition stores the terminal state of a compose request and
// fills in c.ID.
func (d *Database) RecordComposition(ctx context.Context, c *Composition) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_composition", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	var res sql.Result
	res, err = d.db.ExecContext(ctx,
		`INSERT INTO compositions (session_id, status, output_url, duration, file_size, processing_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.SessionID, string(c.Status), c.OutputURL, c.Duration, c.FileSize, c.ProcessingTime, c.Error, c.CreatedAt.Unix(),
	)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

// LatestComposition returns the most recent composition for a session.
func (d *Database) LatestComposition(ctx context.Context, sessionID string) (*Composition, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("latest_composition", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		c         Composition
		status    string
		outputURL sql.NullString
		errText   sql.NullString
		created   int64
	)

	err = d.db.QueryRowContext(ctx,
		`SELECT id, session_id, status, output_url, duration, file_size, processing_ms, error, created_at
		FROM compositions WHERE session_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		sessionID,
	).Scan(&c.ID, &c.SessionID, &status, &outputURL, &c.Duration, &c.FileSize, &c.ProcessingTime, &errText, &created)

	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, apperr.NotFound(apperr.CodeSessionNotFound, "No composition found for session %s", sessionID)
	}
	if err != nil {
		return nil, apperr.Internal("Failed to read composition history", err)
	}

	c.Status = CompositionStatus(status)
	c.OutputURL = outputURL.String
	c.Error = errText.String
	c.CreatedAt = time.Unix(created, 0)
	return &c, nil
}

// PurgeBefore deletes history rows created before cutoff and returns the
// number of rows removed.
func (d *Database) PurgeBefore(cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("purge", start, err) }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var tx *sql.Tx
	tx, err = d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, query := range []string{
		"DELETE FROM compositions WHERE created_at < ?",
		"DELETE FROM upload_sessions WHERE created_at < ?",
	} {
		var res sql.Result
		res, err = tx.ExecContext(ctx, query, cutoff.Unix())
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("failed to roll back purge: %v", rbErr)
			}
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}

	err = tx.Commit()
	return total, err
}

// GetStats implements metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM upload_sessions),
			(SELECT COUNT(*) FROM compositions),
			(SELECT COUNT(*) FROM compositions WHERE status = ?)`,
		string(StatusFailed),
	).Scan(&stats.TotalSessions, &stats.TotalCompositions, &stats.FailedCompositions)
	if err != nil {
		logging.Warn("Failed to read history stats: %v", err)
		return metrics.Stats{}
	}
	return stats
}
