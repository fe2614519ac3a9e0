package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Status reports the reachability of each backing store.
type Status struct {
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// Healthy reports whether every dependency answered.
func (s Status) Healthy() bool {
	return s.Postgres == "up" && s.Redis == "up"
}

// Check pings PostgreSQL and Redis with a short timeout.
func Check(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) Status {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := Status{Postgres: "up", Redis: "up"}
	if err := pool.Ping(ctx); err != nil {
		st.Postgres = "down"
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		st.Redis = "down"
	}
	return st
}
