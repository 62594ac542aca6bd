package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	archivepg "github.com/vshulcz/heapwatch/internal/adapters/archive/postgres"
	"github.com/vshulcz/heapwatch/internal/adapters/http/ginserver"
	"github.com/vshulcz/heapwatch/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/heapwatch/internal/adapters/source/cdp"
	"github.com/vshulcz/heapwatch/internal/adapters/source/runtimeheap"
	"github.com/vshulcz/heapwatch/internal/config"
	"github.com/vshulcz/heapwatch/internal/engine"
	"github.com/vshulcz/heapwatch/internal/ports"
	"github.com/vshulcz/heapwatch/pkg/util"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	util.PrintBuildInfo(buildVersion, buildDate, buildCommit)

	cfg, err := config.LoadMonitorConfig(os.Args[1:], nil)
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []engine.Option{engine.WithLogger(logger)}

	var browser *cdp.Source
	if cfg.BrowserURL != "" {
		browser, err = cdp.New(ctx, cfg.BrowserURL, logger)
		if err != nil {
			log.Fatalf("failed to attach browser surface: %v", err)
		}
		defer browser.Close()
		opts = append(opts,
			engine.WithHeapSource(browser),
			engine.WithUICounterSource(browser),
			engine.WithVisibilitySource(browser),
		)
	} else {
		opts = append(opts, engine.WithHeapSource(runtimeheap.New()))
	}

	var archive ports.SampleArchive
	if cfg.DSN != "" {
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Fatalf("failed to open archive database: %v", err)
		}
		defer func() {
			_ = db.Close()
		}()
		if err := archivepg.Migrate(db); err != nil {
			log.Fatalf("failed to migrate archive schema: %v", err)
		}
		archive = archivepg.New(db)
		opts = append(opts, engine.WithArchive(archive))
	}

	eng, err := engine.New(cfg.Engine(), opts...)
	if err != nil {
		log.Fatalf("failed to construct engine: %v", err)
	}
	defer eng.Close()

	h := ginserver.NewHandler(eng, archive)
	r := ginserver.NewRouter(h, logger,
		middlewares.ZapLogger(logger),
		middlewares.GzipRequest(),
		middlewares.GzipResponse(),
	)

	srv := &http.Server{Addr: cfg.Address, Handler: r}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Printf("heapwatch started: addr=%s poll=%v history=%d sensitivity=%s",
		cfg.Address, cfg.Interval, cfg.HistorySize, cfg.Sensitivity)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
