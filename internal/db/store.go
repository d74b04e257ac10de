package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	// MaxAckAttempts bounds how many times a queued acknowledgement is
	// retried before it is dropped from the outbox.
	MaxAckAttempts = 10
)

// PendingAck is a delivery acknowledgement waiting to be flushed to the
// backend.
type PendingAck struct {
	ID          int64
	ReminderID  int64
	Channel     string
	DeviceLabel string
	Attempts    int
	CreatedAt   time.Time
}

// DeliveryRecord is a journal entry for a notification the daemon raised.
type DeliveryRecord struct {
	Tag         string
	ReminderID  sql.NullInt64
	Title       string
	Channel     string
	DeliveredAt time.Time
}

// Store wraps the SQLite connection with the queries the daemon needs.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store instance wrapping the given database
// connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// TxFunc is the function signature for transaction callbacks.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx executes the given function within a database transaction. If the
// function returns an error, the transaction is rolled back. Otherwise, it is
// committed.
func (s *Store) WithTx(ctx context.Context, fn TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		// Attempt rollback, but prioritize returning the original error.
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v",
				err, rbErr)
		}

		return MapSQLError(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w",
			MapSQLError(err))
	}

	return nil
}

// EnqueueAck stores a delivery acknowledgement for later flushing. It returns
// the row ID of the queued entry.
func (s *Store) EnqueueAck(ctx context.Context, reminderID int64,
	channel, deviceLabel string) (int64, error) {

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ack_outbox (reminder_id, channel, device_label)
		VALUES (?, ?, ?)`,
		reminderID, channel, deviceLabel,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue ack: %w",
			MapSQLError(err))
	}

	return res.LastInsertId()
}

// DueAcks returns up to limit queued acknowledgements whose next attempt time
// has passed, oldest first.
func (s *Store) DueAcks(ctx context.Context, now time.Time,
	limit int) ([]PendingAck, error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reminder_id, channel, device_label, attempts,
			created_at
		FROM ack_outbox
		WHERE next_attempt_at <= ?
		ORDER BY id ASC
		LIMIT ?`,
		now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due acks: %w",
			MapSQLError(err))
	}
	defer rows.Close()

	var acks []PendingAck
	for rows.Next() {
		var ack PendingAck
		err := rows.Scan(
			&ack.ID, &ack.ReminderID, &ack.Channel,
			&ack.DeviceLabel, &ack.Attempts, &ack.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ack row: %w", err)
		}

		acks = append(acks, ack)
	}

	return acks, rows.Err()
}

// AckDone removes a flushed acknowledgement from the outbox.
func (s *Store) AckDone(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(
		ctx, `DELETE FROM ack_outbox WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete ack: %w", MapSQLError(err))
	}

	return nil
}

// AckFailed records a failed flush attempt. The entry is rescheduled after
// the given backoff, or dropped once it has exceeded MaxAckAttempts.
func (s *Store) AckFailed(ctx context.Context, id int64, now time.Time,
	backoff time.Duration) error {

	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE ack_outbox
			SET attempts = attempts + 1, next_attempt_at = ?
			WHERE id = ? AND attempts + 1 < ?`,
			now.Add(backoff).UTC(), id, MaxAckAttempts,
		)
		if err != nil {
			return fmt.Errorf("failed to reschedule ack: %w", err)
		}

		// If no row was updated the entry has exhausted its attempts,
		// so drop it rather than retry forever.
		updated, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if updated == 0 {
			log.Warnf("Dropping ack outbox entry %d after %d "+
				"attempts", id, MaxAckAttempts)

			_, err := tx.ExecContext(
				ctx, `DELETE FROM ack_outbox WHERE id = ?`, id,
			)
			return err
		}

		return nil
	})
}

// OutboxSize returns the number of acknowledgements waiting in the outbox.
func (s *Store) OutboxSize(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(
		ctx, `SELECT COUNT(*) FROM ack_outbox`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w",
			MapSQLError(err))
	}

	return n, nil
}

// RecordDelivery journals a raised notification under its replacement tag.
// Raising the same tag again replaces the previous journal entry.
func (s *Store) RecordDelivery(ctx context.Context, rec DeliveryRecord) error {
	deliveredAt := rec.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivered_log
			(tag, reminder_id, title, channel, delivered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET
			reminder_id = excluded.reminder_id,
			title = excluded.title,
			channel = excluded.channel,
			delivered_at = excluded.delivered_at`,
		rec.Tag, rec.ReminderID, rec.Title, rec.Channel,
		deliveredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w",
			MapSQLError(err))
	}

	return nil
}

// RecentDeliveries returns the most recent journal entries, newest first.
func (s *Store) RecentDeliveries(ctx context.Context,
	limit int) ([]DeliveryRecord, error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, reminder_id, title, channel, delivered_at
		FROM delivered_log
		ORDER BY delivered_at DESC, tag DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w",
			MapSQLError(err))
	}
	defer rows.Close()

	var recs []DeliveryRecord
	for rows.Next() {
		var rec DeliveryRecord
		err := rows.Scan(
			&rec.Tag, &rec.ReminderID, &rec.Title, &rec.Channel,
			&rec.DeliveredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: "+
				"%w", err)
		}

		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// PruneDeliveries removes journal entries older than the given cutoff and
// returns how many were removed.
func (s *Store) PruneDeliveries(ctx context.Context,
	olderThan time.Time) (int64, error) {

	res, err := s.db.ExecContext(
		ctx, `DELETE FROM delivered_log WHERE delivered_at < ?`,
		olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune deliveries: %w",
			MapSQLError(err))
	}

	return res.RowsAffected()
}
