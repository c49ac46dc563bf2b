package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mejakita/api/internal/cart"
	"github.com/mejakita/api/internal/config"
	"github.com/mejakita/api/internal/enum"
	"github.com/mejakita/api/internal/notify"
	"github.com/mejakita/api/internal/promo"
	"github.com/mejakita/api/internal/router"
	"github.com/mejakita/api/internal/store"
	"github.com/mejakita/api/internal/transition"
	"github.com/mejakita/api/internal/ws"
)

func main() {
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

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Unable to ping redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to redis")

	var notifier transition.Notifier = notify.LogNotifier{}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Unable to connect to broker: %v", err)
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
		log.Println("Connected to message broker")
	}

	hub := ws.NewHub()
	go hub.Run()

	st := store.New(pool)
	svc := transition.New(st, hub, notifier)
	carts := cart.NewManager(cart.NewRedisKV(redisClient))
	promos := promo.NewValidator(seedPromos())

	r := router.New(cfg, st, svc, carts, promos, hub)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}

// seedPromos is the static launch promo table. A promos table is the
// obvious next step once marketing wants to rotate codes without a
// deploy.
func seedPromos() []promo.Promo {
	return []promo.Promo{
		{
			Code:         "HEMAT10",
			DiscountType: enum.DiscountTypePercentage,
			Value:        decimal.NewFromInt(10),
			MinOrder:     decimal.NewFromInt(50000),
			MaxDiscount:  decimal.NewFromInt(25000),
		},
		{
			Code:         "MAKANSIANG",
			DiscountType: enum.DiscountTypeFixed,
			Value:        decimal.NewFromInt(15000),
			MinOrder:     decimal.NewFromInt(100000),
		},
	}
}
