package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/cheche-app/api/internal/config"
	"github.com/cheche-app/api/internal/database"
	"github.com/cheche-app/api/internal/observability/metrics"
	"github.com/cheche-app/api/internal/router"
	"github.com/cheche-app/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	// .env is optional; real deployments use environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to create connection pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Unable to ping redis: %v", err)
	}
	log.Println("Connected to redis")

	queries := database.New(pool)
	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, queries, pool, rdb, hub, httpMetrics)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
