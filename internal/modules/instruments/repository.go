// Package instruments manages the tracked tickers.
package instruments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/stockwatch/internal/database"
	"github.com/aristath/stockwatch/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// instrumentColumns must match scanInstrument.
const instrumentColumns = `id, ticker, name, sector, subsector, target_buy_price, target_sell_price,
notes, is_active, created_at, updated_at`

// Repository handles instrument rows in ledger.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new instrument repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "instrument").Logger(),
	}
}

// DB exposes the connection for callers that open their own transactions.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Create inserts inst using r's connection.
func (r *Repository) Create(ctx context.Context, inst *domain.Instrument) error {
	return r.CreateWith(ctx, r.db, inst)
}

// CreateWith inserts inst through q and fills ID and timestamps.
// A duplicate ticker returns domain.ErrAlreadyExists.
func (r *Repository) CreateWith(ctx context.Context, q database.Querier, inst *domain.Instrument) error {
	now := time.Now().UTC().Truncate(time.Second)
	inst.Ticker = domain.NormalizeTicker(inst.Ticker)

	result, err := q.ExecContext(ctx, `
		INSERT INTO instruments (ticker, name, sector, subsector, target_buy_price, target_sell_price,
			notes, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.Ticker, inst.Name, inst.Sector, inst.Subsector,
		nullDecimal(inst.TargetBuyPrice), nullDecimal(inst.TargetSellPrice),
		inst.Notes, boolToInt(inst.IsActive), now.Unix(), now.Unix(),
	)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("instrument %s: %w", inst.Ticker, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create instrument: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}

	inst.ID = id
	inst.CreatedAt = now
	inst.UpdatedAt = now

	r.log.Info().Str("ticker", inst.Ticker).Int64("id", id).Msg("Instrument created")
	return nil
}

// GetByID returns nil, nil when the instrument does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Instrument, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+instrumentColumns+" FROM instruments WHERE id = ?", id)
	inst, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument %d: %w", id, err)
	}
	return inst, nil
}

// GetByTicker returns nil, nil when the ticker is unknown.
func (r *Repository) GetByTicker(ctx context.Context, ticker string) (*domain.Instrument, error) {
	return r.GetByTickerWith(ctx, r.db, ticker)
}

// GetByTickerWith is GetByTicker through q.
func (r *Repository) GetByTickerWith(ctx context.Context, q database.Querier, ticker string) (*domain.Instrument, error) {
	row := q.QueryRowContext(ctx, "SELECT "+instrumentColumns+" FROM instruments WHERE ticker = ?",
		domain.NormalizeTicker(ticker))
	inst, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument %s: %w", ticker, err)
	}
	return inst, nil
}

// ListFilter narrows List.
type ListFilter struct {
	ActiveOnly bool
	Sector     string
}

// List returns instruments ordered by ticker.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]domain.Instrument, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if f.Sector != "" {
		where = append(where, "LOWER(sector) = LOWER(?)")
		args = append(args, f.Sector)
	}

	query := "SELECT " + instrumentColumns + " FROM instruments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ticker"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

// Update writes every mutable column of inst.
func (r *Repository) Update(ctx context.Context, inst *domain.Instrument) error {
	now := time.Now().UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx, `
		UPDATE instruments
		SET name = ?, sector = ?, subsector = ?, target_buy_price = ?, target_sell_price = ?,
			notes = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		inst.Name, inst.Sector, inst.Subsector,
		nullDecimal(inst.TargetBuyPrice), nullDecimal(inst.TargetSellPrice),
		inst.Notes, boolToInt(inst.IsActive), now.Unix(), inst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update instrument %d: %w", inst.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("instrument %d: %w", inst.ID, domain.ErrNotFound)
	}

	inst.UpdatedAt = now
	return nil
}

// IsReferencedWith reports whether transactions or dividends point at id.
func (r *Repository) IsReferencedWith(ctx context.Context, q database.Querier, id int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM transactions WHERE instrument_id = ?)
		     + (SELECT COUNT(*) FROM received_dividends WHERE instrument_id = ?)`, id, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count references for instrument %d: %w", id, err)
	}
	return n > 0, nil
}

// DeactivateWith clears is_active without touching the other columns.
func (r *Repository) DeactivateWith(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx,
		"UPDATE instruments SET is_active = 0, updated_at = ? WHERE id = ?",
		time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate instrument %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("instrument %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteWith removes the row. The foreign keys reject it while anything
// references the instrument.
func (r *Repository) DeleteWith(ctx context.Context, q database.Querier, id int64) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM instruments WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete instrument %d: %w", id, err)
	}
	r.log.Info().Int64("id", id).Msg("Instrument deleted")
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInstrument(s scanner) (*domain.Instrument, error) {
	var (
		inst                 domain.Instrument
		sector, subsector    sql.NullString
		targetBuy, targetSel sql.NullString
		notes                sql.NullString
		active               int
		createdAt, updatedAt int64
	)
	if err := s.Scan(&inst.ID, &inst.Ticker, &inst.Name, &sector, &subsector, &targetBuy, &targetSel,
		&notes, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	inst.Sector = stringPtr(sector)
	inst.Subsector = stringPtr(subsector)
	inst.Notes = stringPtr(notes)
	inst.IsActive = active == 1
	inst.CreatedAt = time.Unix(createdAt, 0).UTC()
	inst.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	var err error
	if inst.TargetBuyPrice, err = decimalPtr(targetBuy); err != nil {
		return nil, err
	}
	if inst.TargetSellPrice, err = decimalPtr(targetSel); err != nil {
		return nil, err
	}
	return &inst, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func decimalPtr(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", ns.String, err)
	}
	return &d, nil
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
