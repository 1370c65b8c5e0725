package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"PoolOracle/internal/chains"
	"PoolOracle/internal/common"
	"PoolOracle/internal/core"
	"PoolOracle/internal/ingestion"
	"PoolOracle/internal/liveclient"
	"PoolOracle/internal/observability"
	"PoolOracle/internal/persistence"
	"PoolOracle/internal/verify"
)

// config collects everything a run needs. Flags override environment
// variables, which override the defaults.
type config struct {
	ThorchainURL string
	FixturesPath string
	NATSFeed     bool

	FastFail      bool
	NoVerify      bool
	BitcoinReorg  bool
	EthereumReorg bool

	PollInterval time.Duration
	MaxAttempts  int
	Reserve      int64

	MetricsAddr string
	PostgresDSN string
	NATSURL     string
	LogLevel    string
}

func defaultConfig() config {
	return config{
		ThorchainURL: envOrDefault("ORACLE_THORCHAIN_URL", "http://localhost:1317"),
		FixturesPath: envOrDefault("ORACLE_FIXTURES", "data/smoke_transactions.json"),
		PollInterval: verify.DefaultPollInterval,
		MaxAttempts:  envIntOrDefault("ORACLE_MAX_ATTEMPTS", verify.DefaultMaxAttempts),
		Reserve:      envInt64OrDefault("ORACLE_RESERVE", 22000000000000000),
		MetricsAddr:  envOrDefault("ORACLE_METRICS_ADDR", ":9091"),
		PostgresDSN:  os.Getenv("ORACLE_POSTGRES_DSN"),
		NATSURL:      os.Getenv("ORACLE_NATS_URL"),
		LogLevel:     envOrDefault("ORACLE_LOG_LEVEL", "info"),
	}
}

func main() {
	cfg := defaultConfig()

	root := &cobra.Command{
		Use:   "pooloracle",
		Short: "Replay a transaction sequence against a live node and reconcile the results",
		Long: `pooloracle drives a deterministic AMM engine over a fixture sequence,
broadcasts each transaction to simulated chains, reconciles the engine
against the live node's event stream, and reports every divergence.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfg.ThorchainURL, "thorchain", cfg.ThorchainURL, "live node base URL")
	flags.StringVar(&cfg.FixturesPath, "fixtures", cfg.FixturesPath, "transaction fixture file")
	flags.BoolVar(&cfg.NATSFeed, "nats-feed", false, "consume transactions from NATS instead of the fixture file (requires --nats-url)")
	flags.BoolVar(&cfg.FastFail, "fast-fail", false, "stop the run on the first divergence")
	flags.BoolVar(&cfg.NoVerify, "no-verify", false, "reconcile without comparing state")
	flags.BoolVar(&cfg.BitcoinReorg, "bitcoin-reorg", false, "trigger a Bitcoin reorg mid-run")
	flags.BoolVar(&cfg.EthereumReorg, "ethereum-reorg", false, "trigger an Ethereum reorg mid-run")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "live event poll interval")
	flags.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "poll attempts per transaction")
	flags.Int64Var(&cfg.Reserve, "reserve", cfg.Reserve, "initial network reserve")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "metrics listen address, empty disables")
	flags.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "results database DSN, empty disables")
	flags.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS URL for divergence reports, empty disables")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace..error)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log := observability.NewLoggerWithLevel("pooloracle", level)
	log.Info().Str("node", cfg.ThorchainURL).Str("fixtures", cfg.FixturesPath).Msg("starting")

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, health, log)
	}

	if cfg.NATSFeed && cfg.NATSURL == "" {
		return fmt.Errorf("--nats-feed requires --nats-url")
	}
	if cfg.NATSFeed && (cfg.BitcoinReorg || cfg.EthereumReorg) {
		return fmt.Errorf("reorg drills index into the fixture sequence and need --fixtures mode")
	}

	var fixtures []common.Transaction
	if !cfg.NATSFeed {
		fixtures, err = ingestion.LoadFixtures(cfg.FixturesPath)
		if err != nil {
			return err
		}
		log.Info().Int("count", len(fixtures)).Msg("fixtures loaded")
	}

	// one simulated ledger per chain; it plays both the chain the
	// transactions land on and the expected-balance ledger
	book := chains.DefaultAliases()
	sims := map[string]*chains.Sim{
		"BNB": chains.NewSim("BNB", chains.AccountFee{Singleton: 37500}, book),
		"BTC": chains.NewSim("BTC", chains.UTXOFee{TxSize: 1000, TxRate: 10}, book),
		"BCH": chains.NewSim("BCH", chains.UTXOFee{TxSize: 1000, TxRate: 10}, book),
		"LTC": chains.NewSim("LTC", chains.UTXOFee{TxSize: 1000, TxRate: 10}, book),
		"ETH": chains.NewSim("ETH", chains.EVMFee{GasPrice: 2, DefaultGas: 80000, GasPerByte: 68}, book),
	}
	nodes := make(map[string]chains.Client, len(sims))
	for chain, sim := range sims {
		nodes[chain] = sim
		health.SetReady("chain:"+chain, true)
	}

	live := liveclient.NewWithMetrics(cfg.ThorchainURL, metrics, log)
	if err := live.ConnectWebsocket(ctx); err != nil {
		return fmt.Errorf("connect live node: %w", err)
	}
	defer live.Close()
	health.SetReady("thorchain", true)

	engine := core.New(core.Config{Reserve: cfg.Reserve, Logger: log})

	router := verify.ChainRouter{Expected: nodes, Sims: sims}
	verifier := verify.New(engine, live, router, router, verify.Config{
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
		Metrics:      metrics,
		Logger:       log,
	})
	checker := verify.NewChecker(engine, live, cfg.FastFail, log)

	var sink verify.ResultSink
	if cfg.PostgresDSN != "" {
		runID := uuid.NewString()
		writer, err := persistence.Open(ctx, cfg.PostgresDSN, runID)
		if err != nil {
			return err
		}
		defer writer.Close()
		health.SetReady("postgres", true)
		log.Info().Str("run_id", runID).Msg("results database connected")
		sink = writer
	}

	var publisher verify.ReportPublisher
	var js jetstream.JetStream
	if cfg.NATSURL != "" {
		js, err = ingestion.Connect(cfg.NATSURL)
		if err != nil {
			return err
		}
		pub, err := ingestion.NewReportPublisher(ctx, js, log)
		if err != nil {
			return err
		}
		health.SetReady("nats", true)
		publisher = pub
	}

	runner := verify.NewRunner(verify.RunnerConfig{
		Engine:        engine,
		Verifier:      verifier,
		Checker:       checker,
		Nodes:         nodes,
		Expected:      nodes,
		Sims:          sims,
		Aliases:       book,
		FastFail:      cfg.FastFail,
		NoVerify:      cfg.NoVerify,
		BitcoinReorg:  cfg.BitcoinReorg,
		EthereumReorg: cfg.EthereumReorg,
		Metrics:       metrics,
		Sink:          sink,
		Publisher:     publisher,
		Logger:        log,
	})

	var results []verify.ReconcileResult
	var runErr error
	if cfg.NATSFeed {
		results, runErr = runFromNATS(ctx, js, runner, log)
	} else {
		results, runErr = runner.Run(ctx, fixtures)
	}

	var diverged int
	for _, res := range results {
		if res.Diverged() {
			diverged++
		}
	}
	log.Info().
		Int("reconciled", len(results)).
		Int("diverged", diverged).
		Msg("run complete")

	if runErr != nil {
		return runErr
	}
	if diverged > 0 {
		return fmt.Errorf("%d of %d transactions diverged", diverged, len(results))
	}
	return nil
}

// runFromNATS reconciles transactions as they arrive on the JetStream feed,
// acking each only after the runner took delivery. The run ends on signal.
func runFromNATS(ctx context.Context, js jetstream.JetStream, runner *verify.Runner, log zerolog.Logger) ([]verify.ReconcileResult, error) {
	txCh := make(chan ingestion.InboundTx, 16)
	sub, err := ingestion.NewTxSubscriber(ctx, js, txCh, log)
	if err != nil {
		return nil, err
	}
	if err := sub.Subscribe(ctx); err != nil {
		return nil, err
	}
	defer sub.Stop()
	log.Info().Msg("consuming transactions from NATS")

	var results []verify.ReconcileResult
	for {
		select {
		case <-ctx.Done():
			return results, nil
		case in := <-txCh:
			res, err := runner.Run(ctx, []common.Transaction{in.Tx})
			results = append(results, res...)
			if err != nil {
				in.Nak()
				return results, err
			}
			in.Ack()
		}
	}
}

func startMetricsServer(ctx context.Context, addr string, health *observability.HealthChecker, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()
	log.Info().Str("addr", addr).Msg("metrics server listening")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64OrDefault(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
