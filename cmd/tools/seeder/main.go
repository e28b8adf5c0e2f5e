// Seeder provisions a development catalog and a couple of offers. Settings
// are seeded by migration; running this twice is safe because product inserts
// use ON CONFLICT DO NOTHING and offer codes are unique.
package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurelle-london/backend-aurelle/internal/catalog"
	"github.com/aurelle-london/backend-aurelle/internal/config"
	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/obs"
	"github.com/aurelle-london/backend-aurelle/internal/offer"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	queries := store.New(pool)

	for _, p := range seedProducts() {
		if err := queries.InsertProduct(ctx, p); err != nil {
			logger.Fatal().Err(err).Str("code", p.Code).Msg("seed product")
		}
		logger.Info().Str("code", p.Code).Msg("product seeded")
	}

	for _, o := range seedOffers() {
		if _, err := queries.CreateOffer(ctx, o); err != nil {
			if store.IsUniqueViolation(err) {
				logger.Info().Str("name", o.DisplayName).Msg("offer already present")
				continue
			}
			logger.Fatal().Err(err).Str("name", o.DisplayName).Msg("seed offer")
		}
		logger.Info().Str("name", o.DisplayName).Msg("offer seeded")
	}

	logger.Info().Msg("seed complete")
}

func seedProducts() []catalog.Product {
	return []catalog.Product{
		{
			ID:             uuid.New(),
			Code:           "SIG-BAND",
			Name:           "Signet Band",
			Slug:           "signet-band",
			PackagingPrice: money.Money(1000),
			Materials: []catalog.Material{
				{
					Ref: "18k-gold", Name: "18k Gold", BasePrice: money.Money(18500), IsDefault: true,
					Sizes: []catalog.SizeOption{{SizeMM: 52}, {SizeMM: 56, AdditionalCost: money.Money(500)}, {SizeMM: 60, AdditionalCost: money.Money(900)}},
				},
				{
					Ref: "sterling-silver", Name: "Sterling Silver", BasePrice: money.Money(7500),
					Sizes: []catalog.SizeOption{{SizeMM: 52}, {SizeMM: 56, AdditionalCost: money.Money(300)}},
				},
			},
			Finishes: []catalog.FinishOption{
				{Ref: "polished", Name: "Polished", PriceAdjustment: money.Money(1000)},
				{Ref: "brushed", Name: "Brushed"},
			},
			IsActive: true,
		},
		{
			ID:             uuid.New(),
			Code:           "HLX-PEND",
			Name:           "Helix Pendant",
			Slug:           "helix-pendant",
			PackagingPrice: money.Money(1500),
			Materials: []catalog.Material{
				{Ref: "platinum", Name: "Platinum", BasePrice: money.Money(32000), IsDefault: true},
				{Ref: "14k-rose", Name: "14k Rose Gold", BasePrice: money.Money(21000)},
			},
			Finishes: []catalog.FinishOption{
				{Ref: "polished", Name: "Polished"},
				{Ref: "matte", Name: "Matte", PriceAdjustment: money.Money(-500)},
			},
			IsActive: true,
		},
	}
}

func seedOffers() []store.Offer {
	welcome := "WELCOME10"
	maxUses := int32(500)
	return []store.Offer{
		{
			Code:           &welcome,
			DisplayName:    "10% off your first order",
			DiscountType:   string(offer.DiscountPercentage),
			DiscountValue:  1000,
			MinOrderAmount: money.Money(10000),
			MaxUses:        &maxUses,
			ValidFrom:      time.Now().AddDate(0, 0, -1),
			IsActive:       true,
			ApplicableTo:   string(offer.AudienceNewUsers),
			Priority:       10,
		},
		{
			DisplayName:   "Seasonal free delivery boost",
			DiscountType:  string(offer.DiscountFixed),
			DiscountValue: 599,
			ValidFrom:     time.Now().AddDate(0, 0, -1),
			IsActive:      true,
			ApplicableTo:  string(offer.AudienceAll),
			AutoApply:     true,
			Priority:      1,
		},
	}
}
