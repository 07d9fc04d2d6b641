package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockwatch/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	criticalFreeBytes = 500 << 20
	lowFreeBytes      = 5 << 30
)

// DailyMaintenanceJob checks integrity, checkpoints the WAL and watches free
// disk space for every database.
type DailyMaintenanceJob struct {
	databases    []*database.DB
	dataDir      string
	minFreeBytes uint64
	log          zerolog.Logger
}

// NewDailyMaintenanceJob creates the daily maintenance job.
func NewDailyMaintenanceJob(databases []*database.DB, dataDir string, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases:    databases,
		dataDir:      dataDir,
		minFreeBytes: criticalFreeBytes,
		log:          log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the maintenance steps. A failed integrity check or critically
// low disk space fails the run; checkpoint failures are only logged.
func (j *DailyMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	j.log.Info().Msg("Starting daily maintenance")

	for _, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", db.Name(), err)
		}
	}

	for _, db := range j.databases {
		if err := db.WALCheckpoint(ctx, "TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(ctx); err != nil {
		return err
	}

	j.logDatabaseStats()

	j.log.Info().Dur("duration_ms", time.Since(start)).Msg("Daily maintenance completed")
	return nil
}

// Name returns the job name.
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

func (j *DailyMaintenanceJob) checkDiskSpace(ctx context.Context) error {
	usage, err := disk.UsageWithContext(ctx, j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to read disk usage: %w", err)
	}

	freeGB := float64(usage.Free) / 1e9
	if usage.Free < j.minFreeBytes {
		j.log.Error().Float64("free_gb", freeGB).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", freeGB, j.dataDir)
	}
	if usage.Free < lowFreeBytes {
		j.log.Warn().Float64("free_gb", freeGB).Msg("Disk space running low")
	}
	return nil
}

func (j *DailyMaintenanceJob) logDatabaseStats() {
	for _, db := range j.databases {
		stats, err := db.GetStats()
		if err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to read database stats")
			continue
		}
		j.log.Debug().
			Str("database", db.Name()).
			Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
			Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
			Int64("freelist_pages", stats.FreelistCount).
			Msg("Database metrics")
	}
}

// VacuumJob compacts databases whose freelist has grown. The ledger runs with
// auto_vacuum disabled, so deleted rows keep their pages until this runs.
type VacuumJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewVacuumJob creates the weekly vacuum job.
func NewVacuumJob(databases []*database.DB, log zerolog.Logger) *VacuumJob {
	return &VacuumJob{
		databases: databases,
		log:       log.With().Str("job", "weekly_vacuum").Logger(),
	}
}

// Run vacuums each database, continuing past failures.
func (j *VacuumJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var failed []string
	for _, db := range j.databases {
		before, _ := db.GetStats()
		if _, err := db.Conn().ExecContext(ctx, "VACUUM"); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("VACUUM failed")
			failed = append(failed, db.Name())
			continue
		}
		after, _ := db.GetStats()
		if before != nil && after != nil {
			j.log.Info().
				Str("database", db.Name()).
				Int64("pages_before", before.PageCount).
				Int64("pages_after", after.PageCount).
				Msg("VACUUM completed")
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("vacuum failed for %v", failed)
	}
	return nil
}

// Name returns the job name.
func (j *VacuumJob) Name() string {
	return "weekly_vacuum"
}
