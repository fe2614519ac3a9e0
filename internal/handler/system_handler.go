package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/config"
	"github.com/stemsi/formcraft/internal/database"
	"github.com/stemsi/formcraft/internal/response"
)

// SystemHandler reports liveness and runtime figures.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Returns 503 when PostgreSQL or Redis does not answer.
func (h *SystemHandler) Health(c *gin.Context) {
	st := database.Check(c.Request.Context(), h.pool, h.rdb)
	if !st.Healthy() {
		h.log.Warn().Str("postgres", st.Postgres).Str("redis", st.Redis).Msg("Health check failed")
		response.FailWithData(c, http.StatusServiceUnavailable, response.ErrInternal,
			gin.H{"status": "degraded", "dependencies": st})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "dependencies": st})
}

type runtimeStats struct {
	Uptime          string `json:"uptime"`
	GoVersion       string `json:"go_version"`
	NumCPU          int    `json:"num_cpu"`
	Goroutines      int    `json:"goroutines"`
	HeapAlloc       uint64 `json:"heap_alloc"`
	HeapSys         uint64 `json:"heap_sys"`
	NumGC           uint32 `json:"num_gc"`
	QueueSubmission int64  `json:"queue_submissions"`
}

// Stats godoc
// GET /api/v1/system/stats
func (h *SystemHandler) Stats(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	st := runtimeStats{
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		NumGC:      ms.NumGC,
	}
	n, err := h.rdb.LLen(c.Request.Context(), config.WorkerKey.PersistSubmissionsQueue).Result()
	if err != nil {
		h.log.Warn().Err(err).Msg("Queue length unavailable")
	}
	st.QueueSubmission = n

	response.Success(c, http.StatusOK, st)
}
