package di

import (
	"fmt"

	"github.com/aristath/stockwatch/internal/clientdata"
	"github.com/aristath/stockwatch/internal/config"
	"github.com/aristath/stockwatch/internal/modules/alerts"
	"github.com/aristath/stockwatch/internal/modules/fundamentals"
	"github.com/aristath/stockwatch/internal/modules/quotes"
	"github.com/aristath/stockwatch/internal/reliability"
	"github.com/aristath/stockwatch/internal/scheduler"
	"github.com/rs/zerolog"
)

// Fixed schedules (cron with seconds).
const (
	cacheCleanupSchedule     = "0 0 * * * *"    // hourly
	fundamentalsSchedule     = "0 0 19 * * 1-5" // weekdays 19:00, after the B3 close
	dailyMaintenanceSchedule = "0 0 2 * * *"    // 02:00
	weeklyVacuumSchedule     = "0 0 3 * * 0"    // Sunday 03:00
)

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates the background jobs and adds them to the scheduler.
// None of them write to the ledger tables except alert bookkeeping and
// fundamentals snapshots.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container and scheduler must be initialized")
	}

	instances := &JobInstances{
		PriceCollector:        quotes.NewCollectorJob(container.InstrumentRepo, container.QuoteService, container.EventManager, log),
		FundamentalsCollector: fundamentals.NewCollectorJob(container.FundamentalsService, container.EventManager, log),
		AlertChecker:          alerts.NewCheckerJob(container.AlertService, log),
		CacheCleanup:          clientdata.NewCleanupJob(container.ClientDataRepo, log),
		DailyMaintenance:      reliability.NewDailyMaintenanceJob(container.Databases(), cfg.DataDir, log),
		WeeklyVacuum:          reliability.NewVacuumJob(container.Databases(), log),
	}

	schedules := []scheduledJob{
		{fmt.Sprintf("@every %s", cfg.PriceCollectorInterval), instances.PriceCollector},
		{fundamentalsSchedule, instances.FundamentalsCollector},
		{cfg.AlertCheckSchedule, instances.AlertChecker},
		{cacheCleanupSchedule, instances.CacheCleanup},
		{dailyMaintenanceSchedule, instances.DailyMaintenance},
		{weeklyVacuumSchedule, instances.WeeklyVacuum},
	}

	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		schedules = append(schedules, scheduledJob{cfg.Backup.Schedule, instances.Backup})
	}

	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", s.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(schedules)).Msg("Background jobs registered")
	return instances, nil
}
