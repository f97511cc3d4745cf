package httptransport

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"

	"eyescan-server/internal/utils"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string  `json:"status"`
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
	MemoryRSS  uint64  `json:"memory_rss"`
	CPUPercent float64 `json:"cpu_percent"`
}

// HealthHandler reports liveness plus basic process statistics.
type HealthHandler struct {
	started time.Time
	proc    *process.Process
	logger  *utils.Logger
}

func NewHealthHandler(logger *utils.Logger) *HealthHandler {
	h := &HealthHandler{started: time.Now(), logger: logger}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.WarnTag("HTTP", "process stats unavailable: %v", err)
	} else {
		h.proc = proc
	}
	return h
}

func (h *HealthHandler) Register(router *gin.RouterGroup) {
	router.GET("/health", h.handle)
}

// handle reports service health
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) handle(c *gin.Context) {
	resp := HealthResponse{
		Status:     "ok",
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}

	if h.proc != nil {
		ctx := c.Request.Context()
		if mem, err := h.proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			resp.MemoryRSS = mem.RSS
		}
		if cpu, err := h.proc.CPUPercentWithContext(ctx); err == nil {
			resp.CPUPercent = cpu
		}
	}

	c.JSON(http.StatusOK, resp)
}
