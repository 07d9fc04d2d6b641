package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/stockwatch/internal/database"
	"github.com/aristath/stockwatch/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const transactionColumns = `t.id, t.instrument_id, i.ticker, t.type, t.quantity, t.price, t.fees,
	t.date, t.notes, t.import_batch, t.created_at`

const transactionFrom = ` FROM transactions t JOIN instruments i ON i.id = t.instrument_id`

// TransactionRepository handles ledger rows in ledger.db.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transactions").Logger(),
	}
}

// DB returns the underlying connection.
func (r *TransactionRepository) DB() *sql.DB {
	return r.db
}

// CreateWith inserts txn through q and sets its ID and CreatedAt.
func (r *TransactionRepository) CreateWith(ctx context.Context, q database.Querier, txn *domain.Transaction) error {
	now := time.Now().UTC().Truncate(time.Second)

	result, err := q.ExecContext(ctx, `
		INSERT INTO transactions
			(instrument_id, type, quantity, price, fees, date, notes, import_batch, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.InstrumentID, string(txn.Type),
		txn.Quantity.String(), txn.Price.String(), txn.Fees.String(),
		txn.Date.String(), txn.Notes, txn.ImportBatch, now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transaction id: %w", err)
	}
	txn.ID = id
	txn.CreatedAt = now
	return nil
}

// GetByIDWith returns the transaction or nil when it does not exist.
func (r *TransactionRepository) GetByIDWith(ctx context.Context, q database.Querier, id int64) (*domain.Transaction, error) {
	row := q.QueryRowContext(ctx, "SELECT "+transactionColumns+transactionFrom+" WHERE t.id = ?", id)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return txn, nil
}

// GetByID is GetByIDWith on the repository connection.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.GetByIDWith(ctx, r.db, id)
}

// ListByInstrumentWith returns one instrument's ledger in fold order.
func (r *TransactionRepository) ListByInstrumentWith(ctx context.Context, q database.Querier, instrumentID int64) ([]domain.Transaction, error) {
	return r.query(ctx, q, "SELECT "+transactionColumns+transactionFrom+
		" WHERE t.instrument_id = ? ORDER BY t.date, t.id", instrumentID)
}

// ListAll returns every transaction in fold order.
func (r *TransactionRepository) ListAll(ctx context.Context) ([]domain.Transaction, error) {
	return r.query(ctx, r.db, "SELECT "+transactionColumns+transactionFrom+" ORDER BY t.date, t.id")
}

// TransactionFilter narrows List.
type TransactionFilter struct {
	Ticker string
	Year   int
	Limit  int
}

// List returns transactions newest first.
func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Ticker != "" {
		where = append(where, "i.ticker = ?")
		args = append(args, domain.NormalizeTicker(f.Ticker))
	}
	if f.Year > 0 {
		where = append(where, "substr(t.date, 1, 4) = ?")
		args = append(args, fmt.Sprintf("%04d", f.Year))
	}

	query := "SELECT " + transactionColumns + transactionFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.date DESC, t.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return r.query(ctx, r.db, query, args...)
}

// HasSameTradeWith reports whether a stored transaction matches txn on
// instrument, date, side, quantity and price. Decimals are compared by value,
// so "10.50" and "10.5" match.
func (r *TransactionRepository) HasSameTradeWith(ctx context.Context, q database.Querier, txn domain.Transaction) (bool, error) {
	candidates, err := r.query(ctx, q, "SELECT "+transactionColumns+transactionFrom+
		" WHERE t.instrument_id = ? AND t.date = ? AND t.type = ?",
		txn.InstrumentID, txn.Date.String(), string(txn.Type))
	if err != nil {
		return false, err
	}
	for _, c := range candidates {
		if c.Quantity.Equal(txn.Quantity) && c.Price.Equal(txn.Price) {
			return true, nil
		}
	}
	return false, nil
}

// DeleteWith removes the row through q.
func (r *TransactionRepository) DeleteWith(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// EarliestDate returns the date of the first transaction, or nil for an
// empty ledger.
func (r *TransactionRepository) EarliestDate(ctx context.Context) (*domain.Date, error) {
	var raw sql.NullString
	if err := r.db.QueryRowContext(ctx, "SELECT MIN(date) FROM transactions").Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to read earliest transaction date: %w", err)
	}
	if !raw.Valid {
		return nil, nil
	}
	d, err := domain.ParseDate(raw.String)
	if err != nil {
		return nil, fmt.Errorf("corrupt transaction date %q: %w", raw.String, err)
	}
	return &d, nil
}

func (r *TransactionRepository) query(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]domain.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		txn                  domain.Transaction
		txnType              string
		quantity, price, fee string
		date                 string
		notes, batch         sql.NullString
		createdAt            int64
	)
	if err := s.Scan(&txn.ID, &txn.InstrumentID, &txn.Ticker, &txnType,
		&quantity, &price, &fee, &date, &notes, &batch, &createdAt); err != nil {
		return nil, err
	}

	var err error
	txn.Type = domain.TransactionType(txnType)
	if txn.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("quantity %q: %w", quantity, err)
	}
	if txn.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("price %q: %w", price, err)
	}
	if txn.Fees, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("fees %q: %w", fee, err)
	}
	if txn.Date, err = domain.ParseDate(date); err != nil {
		return nil, err
	}
	if notes.Valid {
		txn.Notes = &notes.String
	}
	if batch.Valid {
		txn.ImportBatch = &batch.String
	}
	txn.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &txn, nil
}
