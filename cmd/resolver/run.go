package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"dealroom/internal/export"
	exportpg "dealroom/internal/export/postgres"
	"dealroom/internal/ingest"
	"dealroom/internal/platform/config"
	"dealroom/internal/platform/httpserver"
	"dealroom/internal/platform/logger"
	platformredis "dealroom/internal/platform/redis"
	"dealroom/internal/resolution/coordinator"
	"dealroom/internal/resolution/metrics"
	"dealroom/internal/resolution/ports"
	"dealroom/internal/resolution/reconcile"
	"dealroom/internal/resolution/repository"
	id "dealroom/pkg/domain"
	auditpub "dealroom/pkg/platform/audit/publisher"
	auditkafka "dealroom/pkg/platform/audit/publishers/kafka"
	auditmem "dealroom/pkg/platform/audit/store/memory"
)

var runCmd = &cobra.Command{
	Use:   "run --deal <id> [--input records.jsonl] [--output report.json]",
	Short: "Resolve one batch of extraction records",
	Long: `Run one resolution pass: read JSONL extraction records, resolve them
into canonical aggregates, reconcile near-duplicates, and write the report.

Examples:
  resolver run --deal acme-2026 --input records.jsonl --output report.json
  cat records.jsonl | resolver run --deal acme-2026`,
	RunE: runResolve,
}

var (
	runDeal   string
	runInput  string
	runOutput string
	runDomain string
	runTypes  []string
)

func init() {
	runCmd.Flags().StringVar(&runDeal, "deal", "", "Deal identifier (required)")
	_ = runCmd.MarkFlagRequired("deal")
	runCmd.Flags().StringVar(&runInput, "input", "-", "JSONL input file, - for stdin")
	runCmd.Flags().StringVar(&runOutput, "output", "-", "JSON report file, - for stdout")
	runCmd.Flags().StringVar(&runDomain, "domain", "applications", "Extraction domain for span claims")
	runCmd.Flags().StringSliceVar(&runTypes, "types",
		[]string{"application", "infrastructure", "person"},
		"Object types to resolve")
	rootCmd.AddCommand(runCmd)
}

func runResolve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	dealID, err := id.ParseDealID(runDeal)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewWith(registry)

	publisher, closePublisher, err := buildAuditPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	coord, closeRedis, err := buildCoordinator(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRedis()

	repos := make([]*repository.Repository, 0, len(runTypes))
	for _, raw := range runTypes {
		objectType, err := id.ParseObjectType(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		repo, err := repository.New(dealID, objectType,
			repository.WithLogger(log),
			repository.WithMetrics(m),
			repository.WithAuditPublisher(publisher),
		)
		if err != nil {
			return err
		}
		repos = append(repos, repo)
	}

	srv := httpserver.New(cfg.Addr, httpserver.NewOpsRouter(registry))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	in, closeIn, err := openInput(runInput)
	if err != nil {
		return err
	}
	defer closeIn()

	ingOpts := []ingest.Option{
		ingest.WithLogger(log),
		ingest.WithCoordinator(coord, runDomain),
	}
	if cfg.IngestWorkers > 0 {
		ingOpts = append(ingOpts, ingest.WithWorkers(cfg.IngestWorkers))
	}
	ing, err := ingest.New(repos, ingOpts...)
	if err != nil {
		return err
	}

	result, err := ing.Run(ctx, in)
	if err != nil {
		return err
	}
	log.Info("ingest finished",
		"deal_id", string(dealID),
		"resolved", result.Resolved,
		"skipped", result.Skipped,
		"dropped", result.Dropped,
		"malformed", result.Malformed,
	)

	svc := reconcile.New(
		reconcile.WithMaxItems(cfg.ReconcileMaxItems),
		reconcile.WithThreshold(cfg.SimilarityThreshold),
		reconcile.WithLogger(log),
		reconcile.WithMetrics(m),
		reconcile.WithAuditPublisher(publisher),
	)
	for _, repo := range repos {
		res, err := svc.Reconcile(ctx, repo, reconcile.SameVendorOrEitherAbsent)
		if err != nil {
			return err
		}
		log.Info("reconcile finished",
			"object_type", repo.ObjectType().String(),
			"merges", res.Merges,
			"skipped", res.Skipped,
			"batch_size", res.BatchSize,
		)
	}

	if err := writeReports(repos); err != nil {
		return err
	}

	if cfg.PostgresURL != "" {
		if err := persistSnapshots(ctx, cfg.PostgresURL, repos); err != nil {
			return err
		}
		log.Info("snapshots persisted", "deal_id", string(dealID))
	}

	return nil
}

func buildAuditPublisher(ctx context.Context, cfg config.Resolver, log *slog.Logger) (ports.AuditPublisher, func(), error) {
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := auditkafka.New(ctx, cfg.KafkaBrokers, auditkafka.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return pub, pub.Close, nil
	}
	pub := auditpub.NewPublisher(auditmem.NewInMemoryStore(),
		auditpub.WithAsyncBuffer(256),
		auditpub.WithLogger(log),
	)
	return pub, pub.Close, nil
}

func buildCoordinator(ctx context.Context, cfg config.Resolver, log *slog.Logger) (*coordinator.Coordinator, func(), error) {
	opts := []coordinator.Option{coordinator.WithLogger(log)}
	closer := func() {}

	if cfg.RedisURL != "" {
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, coordinator.WithPrimaryStore(coordinator.NewRedisStore(client.Client)))
		closer = func() { _ = client.Close() }
	}

	return coordinator.New(opts...), closer, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func writeReports(repos []*repository.Repository) error {
	var out io.Writer = os.Stdout
	if runOutput != "-" {
		f, err := os.Create(runOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	now := time.Now()
	for _, repo := range repos {
		if err := export.WriteJSON(out, export.Build(repo, now)); err != nil {
			return err
		}
	}
	return nil
}

func persistSnapshots(ctx context.Context, url string, repos []*repository.Repository) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	store := exportpg.New(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	for _, repo := range repos {
		if err := store.UpsertAll(ctx, export.Snapshots(repo)); err != nil {
			return err
		}
	}
	return nil
}
