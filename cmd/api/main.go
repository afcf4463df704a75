package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/ikimina/pkg/auth"
	"github.com/mcclellann/ikimina/pkg/cache"
	"github.com/mcclellann/ikimina/pkg/config"
	"github.com/mcclellann/ikimina/pkg/ledger"
	"github.com/mcclellann/ikimina/pkg/store"
)

// sweepOverdue logs every loan that reads as overdue on each tick until ctx
// is cancelled. Overdue is derived on read, so the sweep writes nothing.
func (s *Server) sweepOverdue(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runOverdueSweep(ctx, now)
		}
	}
}

func (s *Server) runOverdueSweep(ctx context.Context, now time.Time) int {
	s.log.Debug("running overdue loan sweep")
	overdue, err := s.ledger.SweepOverdue(ctx, now)
	if err != nil {
		s.log.Error("overdue sweep failed", "error", err)
		return 0
	}
	for _, v := range overdue {
		s.log.Warn("loan overdue", "loan_id", v.ID, "group_id", v.GroupID, "borrower_id", v.BorrowerID,
			"due_date", v.DueDate.Format("2006-01-02"), "remaining", v.Remaining.StringFixed(2))
	}
	s.log.Info("overdue loan sweep complete", "overdue", len(overdue))
	return len(overdue)
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize SQLite Store
	sqliteStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize SQLite store", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer sqliteStore.Close()

	summaryCache := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, logger)
	if closer, ok := summaryCache.(io.Closer); ok {
		defer closer.Close()
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		logger.Error("failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	l := ledger.NewLedger(sqliteStore, ledger.WithCache(summaryCache), ledger.WithLogger(logger))
	server := NewServer(l, sqliteStore, verifier, logger)

	go server.sweepOverdue(ctx, cfg.Jobs.OverdueSweepInterval)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
