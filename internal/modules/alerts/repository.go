package alerts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockwatch/internal/database"
	"github.com/aristath/stockwatch/internal/domain"
	"github.com/rs/zerolog"
)

// Column order must match scanAlert().
const alertColumns = `a.id, a.instrument_id, i.ticker, a.name, a.alert_type, a.condition, a.target_value,
	a.is_active, a.cooldown_hours, a.trigger_count, a.last_triggered_at, a.notes, a.created_at, a.updated_at`

const alertFrom = ` FROM alerts a JOIN instruments i ON i.id = a.instrument_id`

// Repository handles the alerts and alert_history tables in ledger.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new alert repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "alerts").Logger(),
	}
}

// DB returns the underlying connection.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Create inserts a and sets its ID and timestamps.
func (r *Repository) Create(ctx context.Context, a *Alert) error {
	now := time.Now().UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (instrument_id, name, alert_type, condition, target_value,
			is_active, cooldown_hours, trigger_count, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		a.InstrumentID, a.Name, string(a.Type), string(a.Condition.Operator), a.Condition.Value,
		boolToInt(a.IsActive), a.CooldownHours, nullString(a.Notes), now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get alert id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// GetByID returns the alert, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Alert, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+alertColumns+alertFrom+" WHERE a.id = ?", id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return a, nil
}

// List returns alerts newest first.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Alert, error) {
	query := "SELECT " + alertColumns + alertFrom
	if activeOnly {
		query += " WHERE a.is_active = 1"
	}
	query += " ORDER BY a.created_at DESC, a.id DESC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Update writes the mutable columns of a.
func (r *Repository) Update(ctx context.Context, a *Alert) error {
	now := time.Now().UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx, `
		UPDATE alerts
		SET name = ?, condition = ?, target_value = ?, is_active = ?, cooldown_hours = ?,
			notes = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, string(a.Condition.Operator), a.Condition.Value, boolToInt(a.IsActive),
		a.CooldownHours, nullString(a.Notes), now.Unix(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert %d: %w", a.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %d: %w", a.ID, domain.ErrNotFound)
	}
	a.UpdatedAt = now
	return nil
}

// Delete removes an alert and, through the foreign key, its history.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete alert %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// RecordTrigger appends a history entry and bumps the alert's trigger
// counters in one transaction.
func (r *Repository) RecordTrigger(ctx context.Context, entry *HistoryEntry) error {
	return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		return r.recordTriggerWith(ctx, tx, entry)
	})
}

func (r *Repository) recordTriggerWith(ctx context.Context, q database.Querier, entry *HistoryEntry) error {
	at := entry.TriggeredAt.UTC().Truncate(time.Second)

	result, err := q.ExecContext(ctx, `
		INSERT INTO alert_history (alert_id, ticker, triggered_at, trigger_value, target_value, message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.AlertID, entry.Ticker, at.Unix(), entry.TriggerValue, entry.TargetValue, entry.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get alert history id: %w", err)
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE alerts SET trigger_count = trigger_count + 1, last_triggered_at = ? WHERE id = ?`,
		at.Unix(), entry.AlertID,
	); err != nil {
		return fmt.Errorf("failed to bump alert %d: %w", entry.AlertID, err)
	}

	entry.ID = id
	entry.TriggeredAt = at
	return nil
}

// History returns trigger entries newest first.
func (r *Repository) History(ctx context.Context, alertID int64, limit int) ([]HistoryEntry, error) {
	query := `SELECT id, alert_id, ticker, triggered_at, trigger_value, target_value, message FROM alert_history`
	var args []interface{}
	if alertID > 0 {
		query += " WHERE alert_id = ?"
		args = append(args, alertID)
	}
	query += " ORDER BY triggered_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			e  HistoryEntry
			at int64
		)
		if err := rows.Scan(&e.ID, &e.AlertID, &e.Ticker, &at, &e.TriggerValue, &e.TargetValue, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan alert history: %w", err)
		}
		e.TriggeredAt = time.Unix(at, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(s scanner) (*Alert, error) {
	var (
		a                    Alert
		name, notes          sql.NullString
		alertType, operator  string
		isActive             int
		lastTriggered        sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := s.Scan(&a.ID, &a.InstrumentID, &a.Ticker, &name, &alertType, &operator, &a.Condition.Value,
		&isActive, &a.CooldownHours, &a.TriggerCount, &lastTriggered, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	a.Name = name.String
	a.Type = AlertType(alertType)
	a.Condition.Operator = Operator(operator)
	a.IsActive = isActive != 0
	if lastTriggered.Valid {
		t := time.Unix(lastTriggered.Int64, 0).UTC()
		a.LastTriggeredAt = &t
	}
	if notes.Valid {
		a.Notes = &notes.String
	}
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &a, nil
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
