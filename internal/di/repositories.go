package di

import (
	"context"
	"fmt"

	"github.com/aristath/stockwatch/internal/clientdata"
	"github.com/aristath/stockwatch/internal/modules/alerts"
	"github.com/aristath/stockwatch/internal/modules/dividends"
	"github.com/aristath/stockwatch/internal/modules/fundamentals"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/aristath/stockwatch/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates every repository.
func InitializeRepositories(container *Container, log zerolog.Logger) {
	ledger := container.LedgerDB.Conn()

	container.InstrumentRepo = instruments.NewRepository(ledger, log)
	container.TransactionRepo = portfolio.NewTransactionRepository(ledger, log)
	container.DividendRepo = dividends.NewDividendRepository(ledger, log)
	container.AlertRepo = alerts.NewRepository(ledger, log)
	container.FundamentalsRepo = fundamentals.NewRepository(ledger, log)

	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())

	log.Debug().Msg("Repositories initialized")
}

// SeedInstruments adds the bundled instrument catalogue. Existing tickers are
// skipped, so it is safe on every start.
func SeedInstruments(ctx context.Context, container *Container, log zerolog.Logger) error {
	added, err := container.InstrumentRepo.SeedCatalogue(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed instruments: %w", err)
	}
	if added > 0 {
		log.Info().Int("added", added).Msg("Seeded instruments from the B3 catalogue")
	}
	return nil
}
