package fundamentals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/rs/zerolog"
)

// snapshotColumns must match scanSnapshot.
const snapshotColumns = `f.id, f.instrument_id, i.ticker, f.date,
	f.price, f.pl, f.pvp, f.psr, f.ev_ebitda, f.dividend_yield, f.roe, f.roa,
	f.margin_liquid, f.margin_ebit, f.debt_ebitda, f.current_liquidity,
	f.market_cap, f.net_revenue, f.net_profit, f.ebitda, f.source, f.created_at`

const snapshotFrom = ` FROM fundamentals f JOIN instruments i ON i.id = f.instrument_id`

// Repository handles the fundamentals table in ledger.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a fundamentals repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "fundamentals").Logger(),
	}
}

// Upsert stores s as the snapshot of its instrument on s.Date, replacing an
// earlier capture of the same day. ID and CreatedAt are filled in.
func (r *Repository) Upsert(ctx context.Context, s *Snapshot) error {
	now := time.Now().UTC().Truncate(time.Second)
	f := s.Fundamentals

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fundamentals (instrument_id, date,
			price, pl, pvp, psr, ev_ebitda, dividend_yield, roe, roa,
			margin_liquid, margin_ebit, debt_ebitda, current_liquidity,
			market_cap, net_revenue, net_profit, ebitda, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument_id, date) DO UPDATE SET
			price = excluded.price, pl = excluded.pl, pvp = excluded.pvp, psr = excluded.psr,
			ev_ebitda = excluded.ev_ebitda, dividend_yield = excluded.dividend_yield,
			roe = excluded.roe, roa = excluded.roa,
			margin_liquid = excluded.margin_liquid, margin_ebit = excluded.margin_ebit,
			debt_ebitda = excluded.debt_ebitda, current_liquidity = excluded.current_liquidity,
			market_cap = excluded.market_cap, net_revenue = excluded.net_revenue,
			net_profit = excluded.net_profit, ebitda = excluded.ebitda,
			source = excluded.source, created_at = excluded.created_at`,
		s.InstrumentID, s.Date.String(),
		f.Price, f.PE, f.PB, f.PS, f.EVEBITDA, f.DividendYield, f.ROE, f.ROA,
		f.NetMargin, f.EBITMargin, f.DebtEBITDA, f.CurrentRatio,
		f.MarketCap, f.NetRevenue, f.NetProfit, f.EBITDA, s.Source, now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store fundamentals for instrument %d: %w", s.InstrumentID, err)
	}

	// LastInsertId is not reliable after the update branch of an upsert.
	if err := r.db.QueryRowContext(ctx,
		"SELECT id FROM fundamentals WHERE instrument_id = ? AND date = ?",
		s.InstrumentID, s.Date.String(),
	).Scan(&s.ID); err != nil {
		return fmt.Errorf("failed to read fundamentals id: %w", err)
	}
	s.CreatedAt = now

	r.log.Debug().Int64("instrument_id", s.InstrumentID).Str("date", s.Date.String()).Msg("Fundamentals stored")
	return nil
}

// List returns up to limit snapshots of an instrument, newest first.
func (r *Repository) List(ctx context.Context, instrumentID int64, limit int) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+snapshotColumns+snapshotFrom+" WHERE f.instrument_id = ? ORDER BY f.date DESC LIMIT ?",
		instrumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals: %w", err)
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Latest returns the newest snapshot, or nil, nil when there is none.
func (r *Repository) Latest(ctx context.Context, instrumentID int64) (*Snapshot, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+snapshotColumns+snapshotFrom+" WHERE f.instrument_id = ? ORDER BY f.date DESC LIMIT 1",
		instrumentID)
	return r.one(row)
}

// GetByDate returns the snapshot of day, or nil, nil when there is none.
func (r *Repository) GetByDate(ctx context.Context, instrumentID int64, day domain.Date) (*Snapshot, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+snapshotColumns+snapshotFrom+" WHERE f.instrument_id = ? AND f.date = ?",
		instrumentID, day.String())
	return r.one(row)
}

func (r *Repository) one(row *sql.Row) (*Snapshot, error) {
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals: %w", err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var (
		s         Snapshot
		day       string
		createdAt int64
		vals      [16]sql.NullFloat64
	)

	dest := []interface{}{&s.ID, &s.InstrumentID, &s.Ticker, &day}
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	dest = append(dest, &s.Source, &createdAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if s.Date, err = domain.ParseDate(day); err != nil {
		return nil, err
	}

	f := &s.Fundamentals
	for i, target := range []**float64{
		&f.Price, &f.PE, &f.PB, &f.PS, &f.EVEBITDA, &f.DividendYield, &f.ROE, &f.ROA,
		&f.NetMargin, &f.EBITMargin, &f.DebtEBITDA, &f.CurrentRatio,
		&f.MarketCap, &f.NetRevenue, &f.NetProfit, &f.EBITDA,
	} {
		if vals[i].Valid {
			v := vals[i].Float64
			*target = &v
		}
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &s, nil
}
