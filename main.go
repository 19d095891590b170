// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) loadBotEnv()          – read bot.env (no shell exports required)
//   2) cfg := LoadConfig()   – defaults ← YAML profile ← env overrides
//   3) wire broker/feed/notifier/trader
//   4) start Prometheus /healthz server on cfg.Port
//   5) run backtest, sweep, or live loop based on flags
//
// Flags:
//   -backtest <csv>   Replay CSV candles through the engine
//   -sweep <csv>      Run the parameter grid over CSV candles
//   -live             Run the real-time loop (requires -feed or FEED_URL)
//   -config <name>    Profile name resolved to config/<name>.yaml
//   -model <path>     Classifier artifact to load/save (overrides profile)
//   -out <path>       Backtest report path (default report.json)
//   -workers <n>      Sweep worker goroutines (default 4)
//   -prune            Enable sweep branch pruning
//   -interval <sec>   Live loop interval in seconds (default 60)
//
// Examples:
//   go run . -backtest testdata/eurusd_15m.csv -config eurusd
//   go run . -sweep data/eurusd_15m.csv -workers 8 -prune
//   go run . -live -feed http://127.0.0.1:8787 -interval 30

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// ---- Flags ----
	var (
		csvBacktest string
		csvSweep    string
		live        bool
		feedURL     string
		profile     string
		modelPath   string
		reportPath  string
		workers     int
		prune       bool
		intervalSec int
	)
	flag.StringVar(&csvBacktest, "backtest", "", "Path to CSV (time,open,high,low,close,volume)")
	flag.StringVar(&csvSweep, "sweep", "", "Path to CSV for the parameter sweep")
	flag.BoolVar(&live, "live", false, "Run live loop")
	flag.StringVar(&feedURL, "feed", "", "Candle feed base URL for live mode (or FEED_URL)")
	flag.StringVar(&profile, "config", "", "Config profile name (config/<name>.yaml)")
	flag.StringVar(&modelPath, "model", "", "Classifier artifact path")
	flag.StringVar(&reportPath, "out", "report.json", "Backtest report output path")
	flag.IntVar(&workers, "workers", 4, "Sweep worker goroutines")
	flag.BoolVar(&prune, "prune", false, "Enable sweep branch pruning")
	flag.IntVar(&intervalSec, "interval", 60, "Live loop interval in seconds")
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)

	// ---- Environment & Config ----
	loadBotEnv()
	cfg, err := LoadConfig(profile)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if modelPath != "" {
		cfg.ModelPath = modelPath
	}

	// ---- HTTP metrics/health ----
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Info().Int("port", cfg.Port).Msg("serving /metrics and /healthz")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Run selected mode ----
	switch {
	case csvSweep != "":
		candles, err := loadCSV(csvSweep)
		if err != nil {
			log.Fatal().Err(err).Msg("sweep: csv load failed")
		}
		results, err := runSweep(ctx, candles, cfg, workers, prune)
		if err != nil {
			log.Fatal().Err(err).Msg("sweep failed")
		}
		if err := saveTopResults(results, "sweep"); err != nil {
			log.Fatal().Err(err).Msg("sweep: save failed")
		}

	case csvBacktest != "":
		candles, err := loadCSV(csvBacktest)
		if err != nil {
			log.Fatal().Err(err).Msg("backtest: csv load failed")
		}
		rep, err := runBacktest(ctx, candles, cfg, false)
		if err != nil {
			log.Fatal().Err(err).Msg("backtest failed")
		}
		if err := rep.Save(reportPath); err != nil {
			log.Fatal().Err(err).Msg("backtest: report save failed")
		}
		log.Info().Str("path", reportPath).Msg("report saved")

	case live:
		base := feedURL
		if base == "" {
			base = getEnv("FEED_URL", "")
		}
		if base == "" {
			log.Fatal().Msg("live mode needs -feed or FEED_URL")
		}
		var notify Notifier = NopNotifier{}
		if cfg.WebhookURL != "" {
			notify = NewWebhookNotifier(cfg.WebhookURL)
		}
		trader, err := NewTrader(cfg, NewPaperBroker(), notify)
		if err != nil {
			log.Fatal().Err(err).Msg("trader init failed")
		}
		if err := runLive(ctx, trader, NewHTTPFeed(base), intervalSec); err != nil {
			log.Fatal().Err(err).Msg("live loop failed")
		}

	default:
		flag.Usage()
		os.Exit(2)
	}

	// ---- Graceful shutdown for HTTP server ----
	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}
