// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelamos/tutoring-portal/internal/core"
)

const pingTimeout = 2 * time.Second

// Handler serves operational stats to administrators. Every dependency is
// optional; a nil func is reported as absent rather than failing the request.
type Handler struct {
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	dbPing     func(ctx context.Context) error
	redisPing  func(ctx context.Context) error
	userCounts func(ctx context.Context) (map[string]int, error)
	started    time.Time
}

type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	DBPing     func(ctx context.Context) error
	RedisPing  func(ctx context.Context) error
	UserCounts func(ctx context.Context) (map[string]int, error)
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		dbPing:     cfg.DBPing,
		redisPing:  cfg.RedisPing,
		userCounts: cfg.UserCounts,
		started:    time.Now(),
	}
}

// RegisterRoutes mounts the stats endpoints on r. Authentication and the
// admin role gate belong to the caller's subrouter.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stats", func(r chi.Router) {
		r.Get("/", h.GetSystemStats)
		r.Get("/users", h.GetUserStats)
		r.Get("/db", h.GetDatabaseStats)
		r.Get("/redis", h.GetRedisStats)
		r.Get("/runtime", h.GetRuntimeStats)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	users, err := h.countUsers(ctx)
	if err != nil {
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, envelope{
		Success: true,
		Data: SystemStatsResponse{
			Users: users,
			Database: DependencyStatus[DBPool]{
				Healthy: reachable(ctx, h.dbPing),
				Pool:    h.getDBStats(),
			},
			Redis: DependencyStatus[RedisPool]{
				Healthy: reachable(ctx, h.redisPing),
				Pool:    h.getRedisStats(),
			},
			Runtime: h.runtimeStats(),
		},
	})
}

func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	users, err := h.countUsers(r.Context())
	if err != nil {
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, envelope{Success: true, Data: users})
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, envelope{Success: true, Data: h.getDBStats()})
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, envelope{Success: true, Data: h.getRedisStats()})
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, envelope{Success: true, Data: h.runtimeStats()})
}

func (h *Handler) countUsers(ctx context.Context) (*UserStats, error) {
	if h.userCounts == nil {
		return nil, nil
	}

	byRole, err := h.userCounts(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range byRole {
		total += n
	}

	return &UserStats{Total: total, ByRole: byRole}, nil
}

func reachable(ctx context.Context, ping func(ctx context.Context) error) bool {
	return ping != nil && ping(ctx) == nil
}

func (h *Handler) runtimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	uptime := time.Since(h.started)
	return RuntimeStats{
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		HeapBytes:     mem.HeapAlloc,
		SysBytes:      mem.Sys,
		GCCycles:      mem.NumGC,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
	}
}

func (h *Handler) getDBStats() *DBPool {
	if h.dbStats == nil {
		return nil
	}

	s := h.dbStats()
	return &DBPool{
		MaxOpen:  s.MaxOpenConnections,
		Open:     s.OpenConnections,
		InUse:    s.InUse,
		Idle:     s.Idle,
		Waits:    s.WaitCount,
		WaitedMS: s.WaitDuration.Milliseconds(),
		Closed:   s.MaxIdleClosed + s.MaxIdleTimeClosed + s.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPool {
	if h.redisStats == nil {
		return nil
	}

	s := h.redisStats()
	lookups := s.Hits + s.Misses
	pool := &RedisPool{
		Total:    s.TotalConns,
		Idle:     s.IdleConns,
		Stale:    s.StaleConns,
		Timeouts: s.Timeouts,
		Hits:     s.Hits,
	}
	if lookups > 0 {
		pool.HitRatio = float64(s.Hits) / float64(lookups)
	}
	return pool
}

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type SystemStatsResponse struct {
	Users    *UserStats                  `json:"users,omitempty"`
	Database DependencyStatus[DBPool]    `json:"database"`
	Redis    DependencyStatus[RedisPool] `json:"redis"`
	Runtime  RuntimeStats                `json:"runtime"`
}

type UserStats struct {
	Total  int            `json:"total"`
	ByRole map[string]int `json:"by_role"`
}

// DependencyStatus pairs a reachability check with the client pool counters.
// Pool is omitted when the dependency was not configured.
type DependencyStatus[P any] struct {
	Healthy bool `json:"healthy"`
	Pool    *P   `json:"pool,omitempty"`
}

type DBPool struct {
	MaxOpen  int   `json:"max_open"`
	Open     int   `json:"open"`
	InUse    int   `json:"in_use"`
	Idle     int   `json:"idle"`
	Waits    int64 `json:"waits"`
	WaitedMS int64 `json:"waited_ms"`
	Closed   int64 `json:"closed"`
}

type RedisPool struct {
	Total    uint32  `json:"total"`
	Idle     uint32  `json:"idle"`
	Stale    uint32  `json:"stale"`
	Timeouts uint32  `json:"timeouts"`
	Hits     uint32  `json:"hits"`
	HitRatio float64 `json:"hit_ratio"`
}

type RuntimeStats struct {
	GoVersion     string `json:"go_version"`
	Goroutines    int    `json:"goroutines"`
	NumCPU        int    `json:"num_cpu"`
	HeapBytes     uint64 `json:"heap_bytes"`
	SysBytes      uint64 `json:"sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
