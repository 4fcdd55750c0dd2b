package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/aurum/internal/database"
	"github.com/aristath/aurum/internal/refresh"
	"github.com/aristath/aurum/internal/scheduler"
	"github.com/aristath/aurum/internal/updatelog"
	"github.com/aristath/aurum/internal/work"
)

// SystemHandlers serves process, database and background work status
type SystemHandlers struct {
	db        *database.DB
	pool      PoolStats
	scheduler JobLister
	analysis  AnalysisService
	updates   UpdateLog
	dataDir   string
	started   time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(db *database.DB, pool PoolStats, sched JobLister, analysis AnalysisService, updates UpdateLog, dataDir string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:        db,
		pool:      pool,
		scheduler: sched,
		analysis:  analysis,
		updates:   updates,
		dataDir:   dataDir,
		started:   time.Now(),
		log:       log.With().Str("component", "system_handlers").Logger(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string              `json:"status"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Goroutines    int                 `json:"goroutines"`
	CPUPercent    float64             `json:"cpu_percent"`
	MemPercent    float64             `json:"mem_percent"`
	DiskFreeGB    float64             `json:"disk_free_gb"`
	Database      *database.Stats     `json:"database,omitempty"`
	Pool          *work.Stats         `json:"pool,omitempty"`
	Leases        []refresh.Lease     `json:"leases"`
	Jobs          []scheduler.JobInfo `json:"jobs"`
	Timestamp     time.Time           `json:"timestamp"`
}

// HandleStatus reports process health and background work
// GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPct,
		MemPercent:    memPct,
		DiskFreeGB:    h.getDiskFree(),
		Leases:        []refresh.Lease{},
		Jobs:          []scheduler.JobInfo{},
		Timestamp:     time.Now(),
	}

	if h.db != nil {
		if stats, err := h.db.GetStats(r.Context()); err == nil {
			resp.Database = stats
		} else {
			h.log.Warn().Err(err).Msg("Failed to get database stats")
		}
		if err := h.db.HealthCheck(r.Context()); err != nil {
			resp.Status = "degraded"
		}
	}
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	if h.analysis != nil {
		resp.Leases = h.analysis.InFlight()
	}
	if h.scheduler != nil {
		resp.Jobs = h.scheduler.Jobs()
	}

	h.writeJSON(w, resp)
}

// HandleUpdates lists recent scheduled updates
// GET /api/system/updates?type=&limit=
func (h *SystemHandlers) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 50, 500)
	if !ok {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return
	}

	entries, err := h.updates.Recent(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list update logs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []updatelog.Entry{}
	}

	h.writeJSON(w, map[string]interface{}{
		"updates": entries,
		"count":   len(entries),
	})
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the call fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) getDiskFree() float64 {
	if h.dataDir == "" {
		return 0
	}
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
		return 0
	}
	return float64(usage.Free) / 1e9
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
