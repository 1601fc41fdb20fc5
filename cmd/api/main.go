package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/soudis/soliloan/pkg/accrual"
	"github.com/soudis/soliloan/pkg/config"
	"github.com/soudis/soliloan/pkg/ledger"
	"github.com/soudis/soliloan/pkg/models"
	"github.com/soudis/soliloan/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

// app bundles what every command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	storage  *store.SQLiteStore
	ledger   *ledger.Ledger
	registry *prometheus.Registry
}

func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := initializeLogger(cfg.Logging, flags.logLevel)
	if err != nil {
		return nil, err
	}
	method, err := cfg.DefaultInterestMethod()
	if err != nil {
		return nil, fmt.Errorf("invalid default interest method: %w", err)
	}

	storage, err := store.NewSQLiteStore(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &app{
		cfg:      cfg,
		logger:   logger,
		storage:  storage,
		ledger:   ledger.NewLedger(storage, method, logger, ledger.NewPrometheusMetrics(registry)),
		registry: registry,
	}, nil
}

func (a *app) Close() {
	_ = a.logger.Sync()
	_ = a.storage.Close()
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "soliloan",
		Short:         "Direct loan ledger with yearly interest accrual",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to configuration file (default ./soliloan.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newServeCmd(flags), newSnapshotCmd(flags), newLenderCmd(flags))
	return root
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			server := NewServer(a.ledger, a.logger, a.registry)
			httpServer := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           server.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			if interval := a.cfg.Server.RefreshInterval; interval > 0 {
				go refreshLoop(ctx, a.ledger, a.logger, interval)
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server starting", zap.String("addr", httpServer.Addr))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}
}

// refreshLoop recomputes the portfolio gauges on every tick until ctx ends.
func refreshLoop(ctx context.Context, l *ledger.Ledger, logger *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := l.RefreshPortfolio(ctx, time.Now()); err != nil {
			logger.Error("portfolio refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newSnapshotCmd(flags *globalFlags) *cobra.Command {
	var (
		loanID       string
		asOf         string
		interestYear int
		client       bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the snapshot of a loan as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(loanID)
			if err != nil {
				return fmt.Errorf("invalid --loan: %w", err)
			}
			date, err := parseAsOf(asOf)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.ledger.Snapshot(cmd.Context(), id, date, accrual.SnapshotOptions{InterestYear: interestYear, Client: client})
			if err != nil {
				return err
			}
			return printJSON(cmd, snap)
		},
	}
	cmd.Flags().StringVar(&loanID, "loan", "", "loan id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "valuation date YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&interestYear, "interest-year", 0, "year reported as interest of year (default the year before as-of)")
	cmd.Flags().BoolVar(&client, "client", false, "hide non-public notes and files")
	_ = cmd.MarkFlagRequired("loan")
	return cmd
}

func newLenderCmd(flags *globalFlags) *cobra.Command {
	var lenderID, asOf string
	cmd := &cobra.Command{
		Use:   "lender",
		Short: "Print the totals over all loans of a lender as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(lenderID)
			if err != nil {
				return fmt.Errorf("invalid --lender: %w", err)
			}
			date, err := parseAsOf(asOf)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			totals, err := a.ledger.LenderTotals(cmd.Context(), id, date)
			if err != nil {
				return err
			}
			return printJSON(cmd, totals)
		},
	}
	cmd.Flags().StringVar(&lenderID, "lender", "", "lender id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "valuation date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("lender")
	return cmd
}

func parseAsOf(v string) (time.Time, error) {
	if v == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(models.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: expected YYYY-MM-DD", v)
	}
	return t, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
