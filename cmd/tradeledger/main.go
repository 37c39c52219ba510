// Command tradeledger runs a settlement-day walkthrough against the trade
// lifecycle store: it wires the configured backend, drives a handful of
// trades through their lifecycle, and logs each reconciliation report.
// The store itself is a library; this binary is the demo host around it.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TradeLedger/internal/lifecycle"
	"TradeLedger/internal/observability"
	"TradeLedger/internal/persistence"
	"TradeLedger/internal/publish"
	"TradeLedger/internal/query"
	"TradeLedger/internal/store"
	"TradeLedger/internal/trade"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds all host configuration, loaded from environment variables.
type Config struct {
	PostgresDSN   string // empty selects the in-memory backend
	NATSURL       string // empty disables outbound publishing
	MetricsAddr   string
	MigrationsDir string
}

func DefaultConfig() Config {
	return Config{
		PostgresDSN:   os.Getenv("LEDGER_POSTGRES_DSN"),
		NATSURL:       os.Getenv("LEDGER_NATS_URL"),
		MetricsAddr:   envOrDefault("LEDGER_METRICS_ADDR", ":9091"),
		MigrationsDir: envOrDefault("LEDGER_MIGRATIONS_DIR", "migrations"),
	}
}

// backend is the storage substrate seen from the host: write interfaces for
// the lifecycle service plus reader views for the query engine.
type backend interface {
	lifecycle.Store
	lifecycle.EventLog
	query.TradeReader
	query.HistoryReader
}

func main() {
	logger := observability.NewLogger("tradeledger")
	cfg := DefaultConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()
	defer metricsSrv.Shutdown(context.Background())

	var ledger backend
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			logger.Fatal().Err(err).Msg("postgres ping")
		}
		if err := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrate")).Up(ctx); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("postgres backend ready")
		ledger = persistence.NewLedger(db)
	} else {
		logger.Info().Msg("using in-memory backend")
		ledger = store.NewMemory()
	}

	var pub lifecycle.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()

		js, err := jetstream.New(nc)
		if err != nil {
			logger.Fatal().Err(err).Msg("jetstream init")
		}
		if err := publish.EnsureStream(ctx, js); err != nil {
			logger.Fatal().Err(err).Msg("ensure stream")
		}
		pub = publish.NewNATSPublisher(js)
		logger.Info().Str("url", cfg.NATSURL).Msg("outbound publishing enabled")
	}

	svc := lifecycle.NewService(ledger, ledger, pub, observability.NewLogger("lifecycle"), metrics)
	engine := query.NewEngine(ledger, ledger, metrics)
	health.SetReady(true)

	if err := runWalkthrough(ctx, svc, engine, logger); err != nil {
		logger.Fatal().Err(err).Msg("walkthrough failed")
	}
	logger.Info().Msg("walkthrough complete")
}

// runWalkthrough drives sample trades through the full lifecycle: straight
// settlement, cancellation, and the fail/remediate/retry loop, then logs the
// reconciliation reports.
func runWalkthrough(ctx context.Context, svc *lifecycle.Service, engine *query.Engine, logger zerolog.Logger) error {
	trades := []trade.CreateParams{
		{Symbol: "AAPL", Side: trade.SideBuy, Quantity: 100, Price: decimal.RequireFromString("185.50"), Counterparty: "GOLDMAN", SettlementDays: 1},
		{Symbol: "AAPL", Side: trade.SideSell, Quantity: 50, Price: decimal.RequireFromString("186.00"), Counterparty: "MORGAN", SettlementDays: 1},
		{Symbol: "MSFT", Side: trade.SideBuy, Quantity: 200, Price: decimal.RequireFromString("415.00"), Counterparty: "JPMORGAN", SettlementDays: 2},
		{Symbol: "TSLA", Side: trade.SideSell, Quantity: 10, Price: decimal.RequireFromString("242.10"), Counterparty: "CITADEL", SettlementDays: 2},
		{Symbol: "GOOGL", Side: trade.SideBuy, Quantity: 25, Price: decimal.RequireFromString("176.40"), Counterparty: "BARCLAYS", SettlementDays: 2},
	}

	booked := make([]*trade.Trade, 0, len(trades))
	for _, p := range trades {
		t, err := svc.CreateTrade(ctx, p)
		if err != nil {
			return err
		}
		booked = append(booked, t)
	}

	// Both AAPL trades settle cleanly.
	for _, t := range booked[:2] {
		if _, err := svc.Transition(ctx, t.ID, trade.StatusConfirmed, "ops-desk", "confirmed with counterparty"); err != nil {
			return err
		}
		if _, err := svc.Transition(ctx, t.ID, trade.StatusSettled, "settlement-job", ""); err != nil {
			return err
		}
	}

	// MSFT fails at the counterparty and is re-confirmed after remediation.
	msft := booked[2]
	if _, err := svc.Transition(ctx, msft.ID, trade.StatusConfirmed, "ops-desk", ""); err != nil {
		return err
	}
	if _, err := svc.Transition(ctx, msft.ID, trade.StatusFailed, "settlement-job", "Counterparty DK'd the trade"); err != nil {
		return err
	}
	if _, err := svc.Transition(ctx, msft.ID, trade.StatusConfirmed, "ops-desk", "re-confirmed after remediation"); err != nil {
		return err
	}

	// TSLA is cancelled before confirmation.
	if _, err := svc.Transition(ctx, booked[3].ID, trade.StatusCancelled, "ops-desk", "booked in error"); err != nil {
		return err
	}

	// GOOGL fails and stays failed for the reconciliation report.
	googl := booked[4]
	if _, err := svc.Transition(ctx, googl.ID, trade.StatusConfirmed, "ops-desk", ""); err != nil {
		return err
	}
	if _, err := svc.Transition(ctx, googl.ID, trade.StatusFailed, "settlement-job", "Settlement instructions missing"); err != nil {
		return err
	}

	// --- reconciliation reports ---

	pending, err := engine.PendingSettlements(ctx, time.Now().UTC().AddDate(0, 0, 2))
	if err != nil {
		return err
	}
	for _, t := range pending {
		logger.Info().
			Str("trade_id", t.ID).
			Str("symbol", t.Symbol).
			Str("status", string(t.Status)).
			Str("notional", t.Notional().String()).
			Msg("pending settlement")
	}

	positions, err := engine.NetPositionBySymbol(ctx)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		logger.Info().
			Str("symbol", pos.Symbol).
			Int64("net_quantity", pos.NetQuantity).
			Str("net_notional", pos.NetNotional.String()).
			Msg("net settled position")
	}

	failed, err := engine.FailedTrades(ctx)
	if err != nil {
		return err
	}
	for _, t := range failed {
		logger.Warn().
			Str("trade_id", t.ID).
			Str("symbol", t.Symbol).
			Str("reason", t.ErrorReason).
			Msg("failed trade")
	}

	history, err := engine.History(ctx, msft.ID)
	if err != nil {
		return err
	}
	for _, ev := range history {
		e := logger.Info().
			Int64("sequence", ev.Sequence).
			Str("new_status", string(ev.NewStatus)).
			Str("actor", ev.Actor)
		if ev.OldStatus != nil {
			e = e.Str("old_status", string(*ev.OldStatus))
		}
		e.Msg("audit event")
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
