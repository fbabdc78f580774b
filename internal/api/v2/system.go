// internal/api/v2/system.go
package api

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// healthProbeTimeout bounds the database check of /health.
const healthProbeTimeout = 2 * time.Second

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status          string        `json:"status"`
	Version         string        `json:"version"`
	BuildDate       string        `json:"build_date"`
	Timestamp       string        `json:"timestamp"`
	Environment     string        `json:"environment"`
	DatabaseStatus  string        `json:"database_status"`
	DatabaseDialect string        `json:"database_dialect,omitempty"`
	SchemaVersion   int           `json:"schema_version,omitempty"`
	DatabaseError   string        `json:"database_error,omitempty"`
	ModelLoaded     bool          `json:"model_loaded"`
	LoadedModels    int           `json:"loaded_models"`
	Uptime          string        `json:"uptime"`
	UptimeSeconds   float64       `json:"uptime_seconds"`
	System          *ResourceInfo `json:"system,omitempty"`
}

// ResourceInfo represents system resource usage data
type ResourceInfo struct {
	CPUUsage      float64 `json:"cpu_usage_percent"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryUsage   float64 `json:"memory_usage_percent"`
	DataDiskTotal uint64  `json:"data_disk_total"`
	DataDiskFree  uint64  `json:"data_disk_free"`
	DataDiskUsage float64 `json:"data_disk_usage_percent"`
	ProcessMem    float64 `json:"process_memory_mb"`
	Goroutines    int     `json:"goroutines"`
	NumCPU        int     `json:"num_cpu"`
	GoVersion     string  `json:"go_version"`
}

func (c *Controller) initSystemRoutes() {
	c.Group.GET("/system/resources", c.GetResourceInfo)
}

// HealthCheck reports database connectivity, model state and resource usage.
// A database that does not answer turns the status to degraded with 503.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := c.now().Sub(c.startTime)
	resp := HealthResponse{
		Status:         "healthy",
		Version:        c.build.GetVersion(),
		BuildDate:      c.build.GetBuildDate(),
		Timestamp:      c.now().Format(time.RFC3339),
		Environment:    "production",
		DatabaseStatus: "connected",
		Uptime:         uptime.Round(time.Second).String(),
		UptimeSeconds:  uptime.Seconds(),
	}
	if c.Settings != nil && (c.Settings.Debug || c.Settings.WebServer.Debug) {
		resp.Environment = "development"
	}

	if c.database == nil {
		resp.DatabaseStatus = "unavailable"
	} else {
		resp.DatabaseDialect = c.database.Dialect()
		probeCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthProbeTimeout)
		version, err := c.database.SchemaVersion(probeCtx)
		cancel()
		if err != nil {
			resp.DatabaseStatus = "disconnected"
			resp.DatabaseError = err.Error()
		} else {
			resp.SchemaVersion = version
		}
	}

	if c.models != nil {
		resp.LoadedModels = len(c.models.Loaded())
		resp.ModelLoaded = resp.LoadedModels > 0
	}

	if info, err := c.resourceInfo(); err == nil {
		resp.System = info
	} else {
		c.logger.Debug("resource usage unavailable", logger.Error(err))
	}

	code := http.StatusOK
	if resp.DatabaseStatus != "connected" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, resp)
}

// GetResourceInfo handles GET /api/v2/system/resources
func (c *Controller) GetResourceInfo(ctx echo.Context) error {
	info, err := c.resourceInfo()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get resource information", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, info)
}

func (c *Controller) resourceInfo() (*ResourceInfo, error) {
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	info := &ResourceInfo{
		MemoryTotal: memInfo.Total,
		MemoryUsed:  memInfo.Used,
		MemoryUsage: memInfo.UsedPercent,
		Goroutines:  runtime.NumGoroutine(),
		NumCPU:      runtime.NumCPU(),
		GoVersion:   runtime.Version(),
	}

	// Zero interval compares against the previous call and does not block.
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		info.CPUUsage = cpuPercent[0]
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if procMem, err := proc.MemoryInfo(); err == nil && procMem != nil {
			info.ProcessMem = float64(procMem.RSS) / 1024 / 1024
		}
	}

	if dir := c.dataDir(); dir != "" {
		if usage, err := disk.Usage(dir); err == nil {
			info.DataDiskTotal = usage.Total
			info.DataDiskFree = usage.Free
			info.DataDiskUsage = usage.UsedPercent
		}
	}
	return info, nil
}

func (c *Controller) dataDir() string {
	if c.Settings == nil || c.Settings.Main.DataDir == "" {
		return "."
	}
	return c.Settings.Main.DataDir
}
