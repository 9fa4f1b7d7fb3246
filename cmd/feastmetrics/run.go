package main

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/archive"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/config"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/database"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/logger"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/metrics"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/objectstore"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/pipeline"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/secrets"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/warehouse"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ETL pipeline once",
	Args:  cobra.NoArgs,
	RunE:  runPipeline,
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	// Configuration and secret material are checked before any other I/O.
	cfg, err := config.Load(rootFlags.config, rootFlags.envFile)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Pipeline.Timeout)
	defer cancel()

	if err := execute(ctx, cfg, log); err != nil {
		log.Error("Run failed", zap.Error(err))
		return err
	}
	return nil
}

func execute(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	codec, err := secrets.FromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	accessKey, err := codec.Decrypt(cfg.Encryption.EncryptedAccessKey())
	if err != nil {
		return fmt.Errorf("failed to decrypt access key: %w", err)
	}
	secretKey, err := codec.Decrypt(cfg.Encryption.EncryptedSecretAccessKey())
	if err != nil {
		return fmt.Errorf("failed to decrypt secret access key: %w", err)
	}

	store, err := objectstore.NewStore(cfg.S3, accessKey, secretKey, log)
	if err != nil {
		return err
	}

	if err := database.Bootstrap(ctx, cfg.Postgres, log); err != nil {
		return err
	}
	db, err := database.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db.DB, "postgres", log); err != nil {
		return err
	}

	p, err := pipeline.NewETLPipeline(cfg, pipeline.Deps{
		Fetcher: store,
		Writer:  warehouse.NewWriter(db, sq.Dollar, log),
		Metrics: metrics.NewCollector(),
	}, log)
	if err != nil {
		return err
	}
	defer p.Cleanup()

	if cfg.Archive.Bucket != "" {
		if err := store.CheckAccess(ctx, cfg.Archive.Bucket); err != nil {
			return err
		}
		p.WithArchiver(archive.NewArchiver(store, cfg.Archive.Bucket, cfg.Archive.Prefix, p.TempDir(), log))
	}

	_, err = p.Run(ctx)
	return err
}
