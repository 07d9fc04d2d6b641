// Package di wires databases, repositories, services and jobs.
package di

import (
	"github.com/aristath/stockwatch/internal/clientdata"
	"github.com/aristath/stockwatch/internal/clients/yahoo"
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
)

// Container holds every long-lived dependency. It is built by Wire and handed
// to the HTTP server.
type Container struct {
	// Databases
	LedgerDB *database.DB
	CacheDB  *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Clients
	YahooClient *yahoo.Client

	// Repositories
	ClientDataRepo   *clientdata.Repository
	InstrumentRepo   *instruments.Repository
	TransactionRepo  *portfolio.TransactionRepository
	DividendRepo     *dividends.DividendRepository
	AlertRepo        *alerts.Repository
	FundamentalsRepo *fundamentals.Repository

	// Services
	InstrumentService   *instruments.Service
	QuoteService        *quotes.Service
	PortfolioService    *portfolio.Service
	ImportService       *importer.Service
	Comparator          *benchmark.Comparator
	DividendService     *dividends.Service
	AlertService        *alerts.Service
	FundamentalsService *fundamentals.Service
	BackupService       *reliability.BackupService // nil unless backups are enabled

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs.
type JobInstances struct {
	PriceCollector        *quotes.CollectorJob
	FundamentalsCollector *fundamentals.CollectorJob
	AlertChecker          *alerts.CheckerJob
	CacheCleanup          *clientdata.CleanupJob
	DailyMaintenance      *reliability.DailyMaintenanceJob
	WeeklyVacuum          *reliability.VacuumJob
	Backup                *reliability.BackupJob // nil unless backups are enabled
}

// Databases returns every open database.
func (c *Container) Databases() []*database.DB {
	dbs := make([]*database.DB, 0, 2)
	if c.LedgerDB != nil {
		dbs = append(dbs, c.LedgerDB)
	}
	if c.CacheDB != nil {
		dbs = append(dbs, c.CacheDB)
	}
	return dbs
}

// Close closes every open database.
func (c *Container) Close() {
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
