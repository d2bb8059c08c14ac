package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/duck"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/executor"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/insight"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/logger"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/metrics"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/pipeline"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/server"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultHTTPListenAddr = "0.0.0.0:8000"
	defaultMetricsAddr    = "0.0.0.0:8080"
	defaultModel          = string(anthropic.ModelClaudeSonnet4_5_20250929)
	defaultDBPath         = ""
	defaultCSVPath        = "data/upi_transactions.csv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	httpListenAddrFlag := flag.String("http-listen-addr", defaultHTTPListenAddr, "HTTP server listen address")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics (empty to disable)")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 10*time.Second, "Server shutdown timeout")

	dbPathFlag := flag.String("db-path", defaultDBPath, "DuckDB database file path (empty for in-memory, or set SHINCHAN_DB_PATH env var)")
	csvPathFlag := flag.String("csv-path", defaultCSVPath, "Transactions CSV to load when the table is missing (or set SHINCHAN_CSV_PATH env var)")
	queryTimeoutFlag := flag.Duration("query-timeout", 30*time.Second, "Per-query execution timeout")

	modelFlag := flag.String("model", defaultModel, "Anthropic model (or set SHINCHAN_MODEL env var)")
	llmTimeoutFlag := flag.Duration("llm-timeout", 60*time.Second, "Per-call LLM timeout")
	maxRetriesFlag := flag.Int("max-retries", 2, "Additional translation attempts after a failure")

	hypothesesPathFlag := flag.String("hypotheses-path", "", "Override path for the hypothesis library (empty for the embedded one)")
	cacheSizeFlag := flag.Int("cache-size", 50, "Query result cache capacity")
	exposeBlockedSQLFlag := flag.Bool("expose-blocked-sql", false, "Include safety-blocked SQL in API responses")

	flag.Parse()

	// Override flags with environment variables if set
	if envDBPath := os.Getenv("SHINCHAN_DB_PATH"); envDBPath != "" {
		*dbPathFlag = envDBPath
	}
	if envCSVPath := os.Getenv("SHINCHAN_CSV_PATH"); envCSVPath != "" {
		*csvPathFlag = envCSVPath
	}
	if envModel := os.Getenv("SHINCHAN_MODEL"); envModel != "" {
		*modelFlag = envModel
	}

	log := logger.New(*verboseFlag)

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("server: received signal", "signal", sig.String())
		cancel()
	}()

	var metricsServerErrCh = make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	// Open the analytical database and load the dataset if needed.
	db, err := duck.Open(ctx, duck.Config{
		Logger:       log,
		Path:         *dbPathFlag,
		QueryTimeout: *queryTimeoutFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	hasTable, err := db.HasTable(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect database: %w", err)
	}
	if !hasTable {
		if err := db.LoadCSV(ctx, *csvPathFlag); err != nil {
			return fmt.Errorf("failed to load transactions from %s: %w", *csvPathFlag, err)
		}
	}
	rows, cols, err := db.TableStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read table stats: %w", err)
	}
	log.Info("transactions table ready", "rows", rows, "columns", cols)

	// Hypothesis library.
	var hypotheses []insight.Hypothesis
	if *hypothesesPathFlag != "" {
		hypotheses, err = insight.LoadLibraryFile(*hypothesesPathFlag)
	} else {
		hypotheses, err = insight.LoadLibrary()
	}
	if err != nil {
		return fmt.Errorf("failed to load hypothesis library: %w", err)
	}
	log.Info("hypothesis library loaded", "count", len(hypotheses))

	// LLM-backed stages share one client.
	prompts, err := pipeline.LoadPrompts()
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	llm := pipeline.NewAnthropicLLMClient(log, anthropic.Model(*modelFlag), *llmTimeoutFlag)

	exec, err := executor.New(executor.Config{
		Logger:    log,
		DB:        db,
		CacheSize: *cacheSizeFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	engine, err := pipeline.NewEngine(pipeline.EngineConfig{
		Logger: log,
		Router: pipeline.NewRouter(pipeline.RouterConfig{
			Logger: log,
			LLM:    llm,
			Prompt: prompts.Classify,
		}),
		Translator: pipeline.NewTranslator(pipeline.TranslatorConfig{
			Logger:     log,
			LLM:        llm,
			Prompt:     prompts.Translate,
			MaxRetries: *maxRetriesFlag,
		}),
		Narrator: pipeline.NewNarrator(pipeline.NarratorConfig{
			Logger:        log,
			LLM:           llm,
			NarratePrompt: prompts.Narrate,
			RespondPrompt: prompts.Respond,
		}),
		Executor:         exec,
		DB:               db,
		Hypotheses:       hypotheses,
		ExposeBlockedSQL: *exposeBlockedSQLFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	httpListener, err := net.Listen("tcp", *httpListenAddrFlag)
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener: %w", err)
	}
	defer httpListener.Close()

	srv, err := server.New(server.Config{
		Logger:          log,
		Engine:          engine,
		Listener:        httpListener,
		ShutdownTimeout: *shutdownTimeoutFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("server: shutting down", "reason", ctx.Err())
		return nil
	case err := <-serverErrCh:
		if err != nil {
			log.Error("server: server error causing shutdown", "error", err)
		}
		return err
	case err := <-metricsServerErrCh:
		log.Error("server: metrics server error causing shutdown", "error", err)
		return err
	}
}
