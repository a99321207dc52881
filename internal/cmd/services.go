package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/engine"
	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/events"
	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/gateway"
	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/publisher"
	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/store"
	"github.com/Dream-Merchants-VIT/my-bid/internal/catalog"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Engine    *engine.Engine
	Hub       *gateway.Hub
	Publisher *publisher.NATS
}

// setupServices wires catalog -> ledger -> engine -> sinks. The hub is
// registered as an event sink before the engine ever emits, so clients
// observe every state transition in emit order.
func setupServices(ctx context.Context, cfg *Config, database *sql.DB) (*Services, error) {
	cat, err := setupCatalog(cfg)
	if err != nil {
		return nil, err
	}

	ledger := engine.NewLedger(cfg.Auction.InitialTeamTokens)

	var settlementStore engine.SettlementStore = store.Nop{}
	if database != nil {
		pg := store.NewPostgres(database)
		settlementStore = pg

		balances, err := pg.TeamBalances(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to seed ledger: %w", err)
		}
		ledger.Seed(balances)
		log.Info().Int("teams", len(balances)).Msg("ledger seeded from database")
	}

	var sinks events.MultiSink

	var natsPublisher *publisher.NATS
	if cfg.NATS.Enabled {
		natsCfg := publisher.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		natsPublisher, err = publisher.NewNATS(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up NATS publisher: %w", err)
		}
		sinks = append(sinks, natsPublisher)
	}

	engineCfg := engine.Config{
		BidDuration:        cfg.bidDuration(),
		LowStockThresholds: cfg.Auction.LowStockThresholds,
		SettleAttempts:     cfg.Auction.SettleAttempts,
		SettleRetryDelay:   cfg.settleRetryDelay(),
	}

	// The hub needs the engine for snapshots and the engine needs the hub as
	// a sink; MultiSink is filled in after both exist.
	sinkRef := &sinks
	eng := engine.New(engineCfg, clockwork.NewRealClock(), cat, ledger, settlementStore, sinkProxy{sinkRef})
	hub := gateway.NewHub(gateway.DefaultConfig(), eng)
	sinks = append(sinks, hub)

	return &Services{
		Engine:    eng,
		Hub:       hub,
		Publisher: natsPublisher,
	}, nil
}

// sinkProxy defers sink resolution so the engine and hub can reference each
// other without a constructor cycle.
type sinkProxy struct {
	sinks *events.MultiSink
}

func (p sinkProxy) Publish(event *events.Event) {
	p.sinks.Publish(event)
}

func setupCatalog(cfg *Config) (*catalog.Catalog, error) {
	if cfg.Auction.CatalogFile == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.Auction.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	log.Info().Str("path", cfg.Auction.CatalogFile).Int("materials", len(cat.Materials())).Msg("catalog loaded")
	return cat, nil
}
