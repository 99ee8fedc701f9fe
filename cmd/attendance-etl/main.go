package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/veragate-systems/attendance-etl/internal/alert"
	"github.com/veragate-systems/attendance-etl/internal/config"
	"github.com/veragate-systems/attendance-etl/internal/employee"
	"github.com/veragate-systems/attendance-etl/internal/logging"
	"github.com/veragate-systems/attendance-etl/internal/pipeline"
	"github.com/veragate-systems/attendance-etl/internal/seeder"
	"github.com/veragate-systems/attendance-etl/internal/sink"
	"github.com/veragate-systems/attendance-etl/internal/source"

	"github.com/jackc/pgx/v5/pgxpool"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "attendance-etl",
	Short: "Access-control attendance exporter",
	Long: `attendance-etl extracts access-control event history from the source
system, enriches it with cardholder, door, and credential data, applies the
configured business filters, and bulk-loads attendance records into the
reporting database.`,
	Version: "0.1.0",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one extraction and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run the pipeline over synthetic data and print the records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stdout, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, log)
	}

	client := source.NewClient(cfg.Source.BaseURL, cfg.Source.Timeout)

	pgSink, err := sink.NewPostgresSink(ctx, cfg.Sink.DSN)
	if err != nil {
		return fmt.Errorf("connect sink: %w", err)
	}
	defer pgSink.Close()

	hrPool, err := pgxpool.New(ctx, cfg.EmployeeDB.DSN)
	if err != nil {
		return fmt.Errorf("connect employee db: %w", err)
	}
	defer hrPool.Close()

	notifier, err := alert.Connect(cfg.NATS.URL, "attendance-etl")
	if err != nil {
		// Alerting is advisory; a missing broker must not stop the export.
		log.WarnContext(ctx, "alert transport unavailable", logging.Error(err))
		notifier = nil
	}
	defer notifier.Close()

	runner := &pipeline.Runner{
		Cfg:       cfg,
		Store:     client,
		Querier:   client,
		Sink:      pgSink,
		Employees: employee.NewLoader(hrPool, cfg.EmployeeDB.Query),
		Notifier:  notifier,
		Log:       log,
	}

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Export finished: %s\n", stats)
	return nil
}

func runSeed(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg.Export.StateFile = "" // synthetic runs never advance the watermark
	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	fleet := seeder.Generate(seeder.DefaultOptions())

	runner := &pipeline.Runner{
		Cfg:       cfg,
		Store:     fleet.Store,
		Querier:   fleet.Store,
		Sink:      sink.NewStdoutSink(os.Stdout),
		Employees: staticEmployees{ids: fleet.EmployeeIDs},
		Log:       log,
	}

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Seed run finished: %s\n", stats)
	return nil
}

type staticEmployees struct {
	ids []string
}

func (s staticEmployees) Load(context.Context) (*employee.Set, error) {
	return employee.NewSet(s.ids...), nil
}

func serveMetrics(addr string, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics listener stopped", logging.FieldError, err.Error())
	}
}
