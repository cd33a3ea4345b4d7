package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// PingFunc checks one dependency.
type PingFunc func(ctx context.Context) error

// HealthHandler reports liveness and dependency readiness. A nil check
// means the dependency is not in use, e.g. the in-memory store.
type HealthHandler struct {
	postgres PingFunc
	redis    PingFunc
	env      string
	version  string
}

func NewHealthHandler(pgPool *pgxpool.Pool, rdb *redis.Client, env, version string) *HealthHandler {
	h := &HealthHandler{env: env, version: version}
	if pgPool != nil {
		h.postgres = pgPool.Ping
	}
	if rdb != nil {
		h.redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return h
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Readiness fails when Postgres is down; a Redis outage only degrades,
// since locks and sessions have in-process fallbacks.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	if h.postgres != nil {
		if ping(ctx, h.postgres) != nil {
			deps["postgres"] = "down"
			status = "error"
		} else {
			deps["postgres"] = "ok"
		}
	} else {
		deps["postgres"] = "disabled"
	}

	if h.redis != nil {
		if ping(ctx, h.redis) != nil {
			deps["redis"] = "down"
			if status == "ok" {
				status = "degraded"
			}
		} else {
			deps["redis"] = "ok"
		}
	} else {
		deps["redis"] = "disabled"
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}

func ping(ctx context.Context, fn PingFunc) error {
	c, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return fn(c)
}
