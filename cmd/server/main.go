package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shelfmark/circulation/internal/config"
	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/jobs"
	"github.com/shelfmark/circulation/internal/repository"
	"github.com/shelfmark/circulation/internal/service"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	// Initialize repositories
	titleRepo := repository.NewTitleRepository(db)
	copyRepo := repository.NewCopyRepository(db)
	readerRepo := repository.NewReaderRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	reservationRepo := repository.NewReservationRepository(db)

	// Initialize services
	reservationService := service.NewReservationService(service.ReservationServiceConfig{
		ReservationRepo:  reservationRepo,
		TitleRepo:        titleRepo,
		CopyRepo:         copyRepo,
		ReaderRepo:       readerRepo,
		PickupWindowDays: cfg.Policy.PickupWindowDays,
	})

	lendingService := service.NewLendingService(service.LendingServiceConfig{
		LoanRepo:          loanRepo,
		CopyRepo:          copyRepo,
		ReaderRepo:        readerRepo,
		ReservationRepo:   reservationRepo,
		Queue:             reservationService,
		LoanPeriodDays:    cfg.Policy.LoanPeriodDays,
		DailyLateFeeCents: cfg.Policy.DailyLateFeeCents,
	})

	catalogService := service.NewCatalogService(service.CatalogServiceConfig{
		TitleRepo:       titleRepo,
		CopyRepo:        copyRepo,
		ReservationRepo: reservationRepo,
		LoanRepo:        loanRepo,
		Queue:           reservationService,
	})

	readerService := service.NewReaderService(service.ReaderServiceConfig{
		ReaderRepo: readerRepo,
		LoanRepo:   loanRepo,
	})

	reportingService := service.NewReportingService(service.ReportingServiceConfig{
		TitleRepo:  titleRepo,
		CopyRepo:   copyRepo,
		ReaderRepo: readerRepo,
		LoanRepo:   loanRepo,
	})

	// Initialize expiry sweeper (releases lapsed pickup holds)
	expirySweeper := jobs.NewExpirySweeper(reservationService, cfg.Jobs.SweepInterval)
	expirySweeper.Start()
	defer expirySweeper.Stop()

	// Initialize due reminder processor
	dueReminders := jobs.NewDueReminderProcessor(lendingService, cfg.Jobs.ReminderInterval, cfg.Jobs.ReminderWindowDays, nil)
	dueReminders.Start()
	defer dueReminders.Stop()

	// Create router and register routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Read-only endpoints for external collaborators. Catalog search with
	// availability annotations, circulation reports, reader summaries.
	mux.HandleFunc("GET /v1/titles", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		results, err := catalogService.SearchTitles(r.Context(), q.Get("q"), q.Get("reader_id"), intParam(q.Get("limit")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	mux.HandleFunc("GET /v1/readers/{readerId}/summary", func(w http.ResponseWriter, r *http.Request) {
		readerID := r.PathValue("readerId")
		reader, err := readerService.Get(r.Context(), readerID)
		if err != nil {
			writeError(w, err)
			return
		}
		openLoans, err := readerService.OpenLoanCount(r.Context(), readerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reader": reader, "open_loans": openLoans})
	})

	mux.HandleFunc("GET /v1/reports/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := reportingService.LibraryStats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	mux.HandleFunc("GET /v1/reports/overdue", func(w http.ResponseWriter, r *http.Request) {
		rows, err := lendingService.OverdueLoans(r.Context(), time.Now())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	mux.HandleFunc("GET /v1/reports/trends", func(w http.ResponseWriter, r *http.Request) {
		rows, err := reportingService.MonthlyLoanTrends(r.Context(), intParam(r.URL.Query().Get("months")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrReaderNotFound),
		errors.Is(err, service.ErrTitleNotFound),
		errors.Is(err, service.ErrCopyNotFound):
		code = http.StatusNotFound
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
