package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/slowdrip-api/internal/catalog"
	"github.com/noah-isme/slowdrip-api/internal/config"
	"github.com/noah-isme/slowdrip-api/internal/db"
	"github.com/noah-isme/slowdrip-api/internal/obs"
)

func main() {
	var (
		reset  = flag.Bool("reset", false, "delete the existing menu before seeding")
		dryRun = flag.Bool("dry-run", false, "print what would be written without touching the database")
	)
	flag.Parse()

	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), os.Getenv("OBS_LOG_LEVEL")).With().Str("component", "seeder").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	menu, err := catalog.SeedMenu()
	if err != nil {
		logger.Fatal().Err(err).Msg("load seed menu")
	}
	if *dryRun {
		for _, c := range menu.Categories {
			logger.Info().Str("id", c.ID).Str("name", c.Name).Msg("category")
		}
		for _, p := range menu.Products {
			logger.Info().Str("id", p.ID).Str("name", p.Name).Str("category", p.Category).Str("price", p.Price.StringFixed(2)).Msg("product")
		}
		return
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if *reset {
			if _, err := tx.Exec(ctx, `DELETE FROM categories`); err != nil {
				return err
			}
		}
		for _, c := range menu.Categories {
			if _, err := tx.Exec(ctx, `INSERT INTO categories (id, name, icon) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, icon = EXCLUDED.icon`, c.ID, c.Name, c.Icon); err != nil {
				return err
			}
		}
		for _, p := range menu.Products {
			dietary := p.Dietary
			if dietary == nil {
				dietary = []string{}
			}
			if _, err := tx.Exec(ctx, `INSERT INTO products (id, name, price, category, image, description, full_description, dietary, popular, featured)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, category = EXCLUDED.category,
  image = EXCLUDED.image, description = EXCLUDED.description, full_description = EXCLUDED.full_description,
  dietary = EXCLUDED.dietary, popular = EXCLUDED.popular, featured = EXCLUDED.featured, updated_at = now()`,
				p.ID, p.Name, p.Price.StringFixed(2), p.Category, p.Image, p.Description, p.FullDescription, dietary, p.Popular, p.Featured); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed menu")
	}
	logger.Info().Int("categories", len(menu.Categories)).Int("products", len(menu.Products)).Bool("reset", *reset).Msg("seeding completed")
}
