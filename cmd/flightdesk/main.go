package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cx-tal-miterani/flightdesk/internal/account"
	"github.com/cx-tal-miterani/flightdesk/internal/catalog"
	"github.com/cx-tal-miterani/flightdesk/internal/config"
	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/internal/importer"
	"github.com/cx-tal-miterani/flightdesk/internal/journal"
	"github.com/cx-tal-miterani/flightdesk/internal/logging"
	"github.com/cx-tal-miterani/flightdesk/internal/metrics"
	"github.com/cx-tal-miterani/flightdesk/internal/report"
	"github.com/cx-tal-miterani/flightdesk/internal/service"
	"github.com/cx-tal-miterani/flightdesk/internal/terminal"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		dataDir     string
		logLevel    string
		forceImport bool
		reportKind  string
	)

	flagSet := pflag.NewFlagSet("flightdesk", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "config.yaml", "path to the YAML config file (optional)")
	flagSet.StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.BoolVar(&forceImport, "import", false, "rebuild the catalog from the seed CSV")
	flagSet.StringVar(&reportKind, "report", "", "write a report and exit: flights or orders")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if reportKind != "" && reportKind != "flights" && reportKind != "orders" {
		return fmt.Errorf("unknown report %q, want flights or orders", reportKind)
	}

	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	lock, err := database.TryLock(cfg.LockPath())
	if errors.Is(err, database.ErrLocked) {
		return fmt.Errorf("another flightdesk process is using %s", cfg.Data.Dir)
	}
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath()), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	logger, err := logging.New(cfg.Log.Level, logFile)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.WithField("data_dir", cfg.Data.Dir).Info("Starting flightdesk")

	m := metrics.New()

	flights := catalog.NewStore(cfg.CatalogPath(), logger)
	if err := importer.Bootstrap(flights, cfg.SeedPath(), forceImport, logger); err != nil {
		return fmt.Errorf("failed to prepare catalog: %w", err)
	}

	accounts := account.NewStore(cfg.AccountsPath(), logger)
	created, err := accounts.Bootstrap(cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("failed to prepare accounts: %w", err)
	}
	if created && cfg.UsesDefaultAdminPassword() {
		logger.Warn("Created the administrator account with the published default credentials")
	}
	if _, err := accounts.Authenticate(config.DefaultAdminUser, config.DefaultAdminPassword); err == nil {
		logger.Warn("The administrator still uses the default password")
		fmt.Fprintln(os.Stderr, "warning: administrator account uses the default password, change it after logging in")
	}

	j := journal.New(cfg.JournalDir(), logger)
	recovered, err := j.Recover(accounts, cfg.OrdersDir())
	if err != nil {
		return fmt.Errorf("failed to recover interrupted purchases: %w", err)
	}
	m.RecoveredTx.Add(float64(recovered))

	svc := service.NewBookingService(service.Options{
		Catalog:     flights,
		Accounts:    accounts,
		Journal:     j,
		Reports:     report.NewWriter(cfg.ReportsDir()),
		OrdersDir:   cfg.OrdersDir(),
		MetricsPath: cfg.MetricsPath(),
	}, m, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if reportKind != "" {
		err = writeReport(ctx, svc, cfg, reportKind)
	} else {
		err = runConsole(ctx, svc, cfg, logger)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if cerr := svc.Close(shutdownCtx); cerr != nil {
		logger.WithError(cerr).Error("Failed to save catalog on exit")
		if err == nil {
			err = cerr
		}
	}
	logger.Info("flightdesk stopped")
	return err
}

// runConsole runs the menus until the user exits or a signal arrives. A
// read from stdin cannot be interrupted, so on a signal the console is
// abandoned and shutdown proceeds.
func runConsole(ctx context.Context, svc service.BookingService, cfg *config.Config, logger logrus.FieldLogger) error {
	console := terminal.New(svc, os.Stdin, os.Stdout, terminal.Options{
		PageSize: cfg.UI.PageSize,
		Terminal: os.Stdin,
	}, logger)

	done := make(chan error, 1)
	go func() {
		done <- console.Run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		fmt.Fprintln(os.Stdout)
		logger.Info("Interrupted, shutting down")
		return nil
	}
}

// writeReport produces a report without the menus, acting as the
// configured administrator.
func writeReport(ctx context.Context, svc service.BookingService, cfg *config.Config, kind string) error {
	sess := service.NewSession(models.Account{Username: cfg.Admin.Username, Role: models.RoleAdmin}, nil)

	var (
		path string
		err  error
	)
	switch kind {
	case "flights":
		var summary report.FlightSummary
		summary, path, err = svc.FlightReport(ctx, sess)
		if err == nil {
			err = summary.Render(os.Stdout)
		}
	case "orders":
		var summary report.OrderSummary
		summary, path, err = svc.OrderReport(ctx, sess)
		if err == nil {
			err = summary.Render(os.Stdout)
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("Report saved to %s\n", path)
	return nil
}
