package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/stockwatch/internal/database"
	"github.com/aristath/stockwatch/internal/httpjson"
	"github.com/aristath/stockwatch/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// cpuSampleWindow keeps /system/status responsive.
const cpuSampleWindow = 100 * time.Millisecond

// SystemHandlers serves host and process status.
type SystemHandlers struct {
	dataDir   string
	databases []*database.DB
	scheduler *scheduler.Scheduler
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(dataDir string, databases []*database.DB, sched *scheduler.Scheduler, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		dataDir:   dataDir,
		databases: databases,
		scheduler: sched,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// MemoryStatus is host memory usage.
type MemoryStatus struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskStatus is usage of the filesystem holding the data directory.
type DiskStatus struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// SystemStatusResponse is the body of GET /api/system/status. Host metrics
// are null when they cannot be read.
type SystemStatusResponse struct {
	Status        string                `json:"status"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	GoVersion     string                `json:"go_version"`
	Goroutines    int                   `json:"goroutines"`
	CPUPercent    *float64              `json:"cpu_percent"`
	Memory        *MemoryStatus         `json:"memory"`
	Disk          *DiskStatus           `json:"disk"`
	Databases     []database.Stats      `json:"databases"`
	Jobs          []scheduler.JobStatus `json:"jobs"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		Databases:     h.databaseStats(),
		Jobs:          h.jobs(),
	}

	if pct, err := cpu.PercentWithContext(r.Context(), cpuSampleWindow, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(pct) > 0 {
		resp.CPUPercent = &pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		resp.Memory = &MemoryStatus{TotalBytes: vm.Total, UsedBytes: vm.Used, UsedPercent: vm.UsedPercent}
	}

	if usage, err := disk.UsageWithContext(r.Context(), h.dataDir); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	} else {
		resp.Disk = &DiskStatus{
			Path:        h.dataDir,
			TotalBytes:  usage.Total,
			FreeBytes:   usage.Free,
			UsedPercent: usage.UsedPercent,
		}
	}

	httpjson.Write(w, h.log, http.StatusOK, resp)
}

// HandleJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobs(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, h.log, http.StatusOK, h.jobs())
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, h.log, http.StatusOK, h.databaseStats())
}

func (h *SystemHandlers) jobs() []scheduler.JobStatus {
	if h.scheduler == nil {
		return []scheduler.JobStatus{}
	}
	return h.scheduler.Status()
}

func (h *SystemHandlers) databaseStats() []database.Stats {
	out := make([]database.Stats, 0, len(h.databases))
	for _, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to read database stats")
			continue
		}
		out = append(out, *stats)
	}
	return out
}
