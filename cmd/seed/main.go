package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"a2z-marketplace/internal/config"
	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/repository"
	pg "a2z-marketplace/internal/infra/db/postgres"
	"a2z-marketplace/internal/infra/logging"
	"a2z-marketplace/internal/usecase"
)

type demoSeller struct {
	id, username, name string
	tier               model.Tier
	listings           []demoListing
}

type demoListing struct {
	title string
	price int64
}

// Fixed ids keep reseeding idempotent.
var sellers = []demoSeller{
	{
		id: "0b6c1a52-3f1d-4c6e-8a11-5d2f9e7b0001", username: "thandi", name: "Thandi M", tier: model.TierFree,
		listings: []demoListing{{"Vintage road bike", 250000}, {"Oak coffee table", 120000}},
	},
	{
		id: "0b6c1a52-3f1d-4c6e-8a11-5d2f9e7b0002", username: "capetown-electronics", name: "Cape Town Electronics", tier: model.TierBusiness,
		listings: []demoListing{{"Refurbished laptop 14 inch", 650000}, {"Noise cancelling headphones", 189900}, {"USB-C dock", 74900}},
	},
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	tm := pg.NewTxManager(pool)
	profileRepo := pg.NewProfileRepo(pool)
	postRepo := pg.NewPostRepo(pool)
	profileUC := usecase.NewProfileUseCase(profileRepo, postRepo, tm, logger, nil)

	now := time.Now().UTC()
	for _, s := range sellers {
		p, err := profileUC.EnsureProfile(ctx, s.id, s.username, s.name)
		if err != nil {
			log.Fatalf("profile %s: %v", s.username, err)
		}
		if s.tier.Paid() && p.EffectiveTier(now) != s.tier {
			p.Promote(s.tier, now)
			if err := profileRepo.Save(ctx, repository.NoTX, p); err != nil {
				log.Fatalf("promote %s: %v", s.username, err)
			}
		}
		for _, l := range s.listings {
			post := &model.Post{
				ID:         uuid.NewString(),
				OwnerID:    p.ID,
				Title:      l.title,
				PriceCents: l.price,
				Currency:   "ZAR",
				Slug:       model.Slugify(l.title),
				MediaURLs:  []string{},
				IsActive:   true,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			err := postRepo.Create(ctx, repository.NoTX, post)
			switch {
			case errors.Is(err, domain.ErrAlreadyExists):
				fmt.Printf("  = %s/%s already present\n", p.Username, post.Slug)
			case err != nil:
				log.Fatalf("post %q: %v", l.title, err)
			default:
				fmt.Printf("  + %s\n", model.CanonicalURL(cfg.Server.BaseURL, p.Username, post.Slug))
			}
		}
	}
	fmt.Println("seeding complete")
}
