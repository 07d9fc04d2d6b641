// Package dividends records payouts received from held instruments and
// summarizes them by stock, year and type.
//
// This file implements the DividendRepository, which handles the
// received_dividends table in ledger.db. Records are written by the user
// (or an import) and never derived from the transaction ledger.
package dividends

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// dividendColumns is the list of columns read for a DividendRecord.
// Column order must match scanDividend().
const dividendColumns = `d.id, d.instrument_id, i.ticker, i.name, d.type, d.amount, d.shares,
	d.payment_date, d.ex_date, d.notes, d.created_at`

const dividendFrom = ` FROM received_dividends d JOIN instruments i ON i.id = d.instrument_id`

// DividendRepository handles received dividend database operations.
// Amounts and share counts are stored as canonical decimal strings; dates as
// YYYY-MM-DD text so that year filters can use substr().
type DividendRepository struct {
	ledgerDB *sql.DB        // ledger.db - received_dividends table
	log      zerolog.Logger // Structured logger
}

// NewDividendRepository creates a new dividend repository
func NewDividendRepository(ledgerDB *sql.DB, log zerolog.Logger) *DividendRepository {
	return &DividendRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "dividend").Logger(),
	}
}

// Create inserts a dividend record.
//
// Parameters:
//   - ctx: request context
//   - dividend: record to create (ID and CreatedAt will be populated)
//
// Returns:
//   - error: Error if the database operation fails
func (r *DividendRepository) Create(ctx context.Context, dividend *DividendRecord) error {
	now := time.Now().UTC().Truncate(time.Second)

	var exDate interface{}
	if dividend.ExDate != nil {
		exDate = dividend.ExDate.String()
	}

	result, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO received_dividends
		(instrument_id, type, amount, shares, payment_date, ex_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dividend.InstrumentID,
		string(dividend.Type),
		dividend.Amount.String(),
		dividend.Shares.String(),
		dividend.PaymentDate.String(),
		exDate,
		dividend.Notes,
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create dividend: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}

	dividend.ID = id
	dividend.CreatedAt = now

	r.log.Info().
		Str("ticker", dividend.Ticker).
		Str("type", string(dividend.Type)).
		Str("amount", dividend.Amount.String()).
		Msg("Dividend record created")

	return nil
}

// GetByID retrieves a dividend record by ID. It returns nil, nil when the
// record does not exist.
func (r *DividendRepository) GetByID(ctx context.Context, id int64) (*DividendRecord, error) {
	row := r.ledgerDB.QueryRowContext(ctx, "SELECT "+dividendColumns+dividendFrom+" WHERE d.id = ?", id)
	dividend, err := scanDividend(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dividend by ID: %w", err)
	}
	return dividend, nil
}

// Filter narrows List. Zero values mean "no filter".
type Filter struct {
	Ticker string
	Year   int
	Limit  int
}

// List returns dividend records, most recent payment first.
//
// Parameters:
//   - ctx: request context
//   - f: optional ticker, payment year and row limit
//
// Returns:
//   - []DividendRecord: matching records
//   - error: Error if the query fails
func (r *DividendRepository) List(ctx context.Context, f Filter) ([]DividendRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Ticker != "" {
		where = append(where, "i.ticker = ?")
		args = append(args, domain.NormalizeTicker(f.Ticker))
	}
	if f.Year > 0 {
		where = append(where, "substr(d.payment_date, 1, 4) = ?")
		args = append(args, fmt.Sprintf("%04d", f.Year))
	}

	query := "SELECT " + dividendColumns + dividendFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY d.payment_date DESC, d.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends: %w", err)
	}
	defer rows.Close()

	var dividends []DividendRecord
	for rows.Next() {
		dividend, err := scanDividend(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dividend: %w", err)
		}
		dividends = append(dividends, *dividend)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dividends: %w", err)
	}

	return dividends, nil
}

// Delete removes a dividend record. It returns domain.ErrNotFound when no
// row was deleted.
func (r *DividendRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.ledgerDB.ExecContext(ctx, "DELETE FROM received_dividends WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete dividend: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("dividend %d: %w", id, domain.ErrNotFound)
	}

	r.log.Info().Int64("id", id).Msg("Dividend record deleted")
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanDividend scans one row in dividendColumns order.
func scanDividend(s scanner) (*DividendRecord, error) {
	var (
		d                    DividendRecord
		divType              string
		amount, shares, paid string
		exDate, notes        sql.NullString
		createdAt            int64
	)

	if err := s.Scan(&d.ID, &d.InstrumentID, &d.Ticker, &d.Name, &divType, &amount, &shares,
		&paid, &exDate, &notes, &createdAt); err != nil {
		return nil, err
	}

	var err error
	d.Type = DividendType(divType)
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("amount %q: %w", amount, err)
	}
	if d.Shares, err = decimal.NewFromString(shares); err != nil {
		return nil, fmt.Errorf("shares %q: %w", shares, err)
	}
	if d.PaymentDate, err = domain.ParseDate(paid); err != nil {
		return nil, err
	}
	if exDate.Valid && exDate.String != "" {
		ex, err := domain.ParseDate(exDate.String)
		if err != nil {
			return nil, err
		}
		d.ExDate = &ex
	}
	if notes.Valid {
		d.Notes = &notes.String
	}
	d.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &d, nil
}
