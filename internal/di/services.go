package di

import (
	"context"
	"fmt"

	"github.com/aristath/stockwatch/internal/clients/yahoo"
	"github.com/aristath/stockwatch/internal/config"
	"github.com/aristath/stockwatch/internal/database"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/modules/alerts"
	"github.com/aristath/stockwatch/internal/modules/benchmark"
	"github.com/aristath/stockwatch/internal/modules/dividends"
	"github.com/aristath/stockwatch/internal/modules/fundamentals"
	"github.com/aristath/stockwatch/internal/modules/importer"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/aristath/stockwatch/internal/modules/portfolio"
	"github.com/aristath/stockwatch/internal/modules/quotes"
	"github.com/aristath/stockwatch/internal/reliability"
	"github.com/aristath/stockwatch/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates the event bus, market data client and every
// service. Repositories must already be initialized.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	emitter := container.EventManager

	container.YahooClient = yahoo.NewClient(log)

	// Quotes sit in front of Yahoo with the cache; everything that needs a
	// price goes through them.
	container.QuoteService = quotes.NewService(container.YahooClient, container.ClientDataRepo, cfg.QuoteCacheTTL, log)

	container.InstrumentService = instruments.NewService(container.InstrumentRepo, container.YahooClient, emitter, log)

	container.PortfolioService = portfolio.NewService(
		container.TransactionRepo,
		container.InstrumentRepo,
		container.QuoteService,
		emitter,
		log,
	)

	container.ImportService = importer.NewService(container.InstrumentRepo, container.PortfolioService, emitter, log)

	container.Comparator = benchmark.NewComparator(
		container.PortfolioService,
		container.QuoteService,
		container.QuoteService,
		cfg.CDIAnnualRate,
		log,
		benchmark.NewCached(benchmark.NewIbovespa(container.QuoteService), container.ClientDataRepo, log),
		benchmark.NewCDI(cfg.CDIAnnualRate),
	)

	container.DividendService = dividends.NewService(container.DividendRepo, container.InstrumentRepo, emitter, log)

	// Fundamentals go straight to Yahoo: snapshots are history, not cache.
	container.FundamentalsService = fundamentals.NewService(
		container.FundamentalsRepo,
		container.InstrumentRepo,
		container.YahooClient,
		emitter,
		log,
	)

	container.AlertService = alerts.NewService(
		container.AlertRepo,
		container.InstrumentRepo,
		container.QuoteService,
		emitter,
		log,
	)

	if cfg.Backup != nil && cfg.Backup.Enabled {
		store, err := reliability.NewS3Store(context.Background(), cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to initialize backup storage: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			[]*database.DB{container.LedgerDB},
			store,
			cfg.DataDir,
			emitter,
			log,
		)
	}

	container.Scheduler = scheduler.New(log)

	log.Debug().Msg("Services initialized")
	return nil
}
