package main

import (
	"context"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jadewok-pos/api/internal/config"
	"github.com/jadewok-pos/api/internal/database"
	"github.com/jadewok-pos/api/internal/menu"
	"github.com/jadewok-pos/api/internal/router"
	"github.com/jadewok-pos/api/internal/ws"
)

func main() {
	cfg := config.Load()

	catalog, err := menu.LoadFile(cfg.MenuPath)
	if err != nil {
		log.Fatalf("Unable to load menu from %s: %v", cfg.MenuPath, err)
	}
	log.Printf("Loaded menu for %s: %d items", catalog.Restaurant(), catalog.Len())

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, queries, pool, catalog, hub)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
