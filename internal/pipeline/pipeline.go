// Package pipeline runs one end-to-end ETL pass: fetch the extracts, load
// them, compute every report and persist the results.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/archive"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/config"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/metrics"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/reports"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/tables"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/warehouse"
)

// Fetcher copies the extracts from object storage to a local directory
type Fetcher interface {
	FetchAll(ctx context.Context, bucket string, keys []string, destDir string) ([]string, error)
}

// ReportWriter persists reports and the run log
type ReportWriter interface {
	Overwrite(ctx context.Context, table *reports.Table) error
	RecordRun(ctx context.Context, run warehouse.RunRecord) error
}

// Archiver stores a copy of a report outside the database
type Archiver interface {
	Archive(ctx context.Context, table *reports.Table, runID string, runDate time.Time) (string, error)
}

// ETLStats summarises a run. It is written to the stats file as JSON.
type ETLStats struct {
	RunID              string         `json:"run_id"`
	Status             string         `json:"status"`
	Error              string         `json:"error,omitempty"`
	TotalExecutionTime string         `json:"total_execution_time"`
	FilesFetched       int            `json:"files_fetched"`
	RowsLoaded         map[string]int `json:"rows_loaded"`
	TotalRowsProcessed int64          `json:"total_rows_processed"`
	ReportsWritten     int            `json:"reports_written"`
	ReportRows         map[string]int `json:"report_rows"`
	ArchivedObjects    []string       `json:"archived_objects,omitempty"`
}

// Deps are the collaborators of a pipeline. Archiver and Metrics are optional.
// An archiver that needs the pipeline's temp dir can be set with WithArchiver.
type Deps struct {
	Fetcher  Fetcher
	Writer   ReportWriter
	Archiver Archiver
	Metrics  *metrics.Collector
}

type ETLPipeline struct {
	cfg         *config.Config
	fetcher     Fetcher
	writer      ReportWriter
	archiver    Archiver
	metrics     *metrics.Collector
	logger      *zap.Logger
	reports     []reports.Definition
	workerCount int
	tempDir     string
	now         func() time.Time
}

// NewETLPipeline creates the pipeline and its temp directory
func NewETLPipeline(cfg *config.Config, deps Deps, logger *zap.Logger) (*ETLPipeline, error) {
	if deps.Fetcher == nil || deps.Writer == nil {
		return nil, errors.New("pipeline needs a fetcher and a writer")
	}
	tempDir, err := os.MkdirTemp(cfg.Pipeline.TempDir, "feastmetrics-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}
	workers := cfg.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	return &ETLPipeline{
		cfg:         cfg,
		fetcher:     deps.Fetcher,
		writer:      deps.Writer,
		archiver:    deps.Archiver,
		metrics:     collector,
		logger:      logger,
		reports:     reports.All(),
		workerCount: workers,
		tempDir:     tempDir,
		now:         time.Now,
	}, nil
}

// TempDir is where archive files are staged before upload
func (p *ETLPipeline) TempDir() string {
	return p.tempDir
}

// WithArchiver enables report snapshots. Archivers usually stage files in TempDir.
func (p *ETLPipeline) WithArchiver(a Archiver) *ETLPipeline {
	p.archiver = a
	return p
}

// Run executes one pass. The returned stats are populated even when the run fails.
func (p *ETLPipeline) Run(ctx context.Context) (*ETLStats, error) {
	start := p.now()
	stats := &ETLStats{
		RunID:      uuid.NewString(),
		RowsLoaded: map[string]int{},
		ReportRows: map[string]int{},
	}
	logger := p.logger.With(zap.String("run_id", stats.RunID))
	logger.Info("Starting ETL pipeline",
		zap.String("bucket", p.cfg.S3.BucketName),
		zap.Int("workers", p.workerCount),
	)

	runErr := p.run(ctx, stats, start, logger)

	duration := p.now().Sub(start)
	stats.TotalExecutionTime = duration.String()
	stats.Status = warehouse.StatusSucceeded
	if runErr != nil {
		stats.Status = warehouse.StatusFailed
		stats.Error = runErr.Error()
	}
	p.metrics.Finish(duration, runErr)

	record := warehouse.RunRecord{
		RunID:          stats.RunID,
		StartedAt:      start,
		FinishedAt:     start.Add(duration),
		Status:         stats.Status,
		RowsLoaded:     stats.TotalRowsProcessed,
		ReportsWritten: stats.ReportsWritten,
	}
	if runErr != nil {
		msg := runErr.Error()
		record.Error = &msg
	}
	// The run log is written even when ctx was cancelled.
	if err := p.writer.RecordRun(context.WithoutCancel(ctx), record); err != nil {
		logger.Error("Failed to record run", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	p.writeStats(stats, logger)
	if err := p.metrics.Push(p.cfg.Metrics.PushgatewayURL, p.cfg.Metrics.Job); err != nil {
		logger.Warn("Failed to push metrics", zap.Error(err))
	}

	if runErr != nil {
		logger.Error("ETL pipeline failed", zap.Duration("duration", duration), zap.Error(runErr))
		return stats, runErr
	}
	logger.Info("ETL pipeline completed",
		zap.Duration("duration", duration),
		zap.Int64("rows", stats.TotalRowsProcessed),
		zap.Int("reports", stats.ReportsWritten),
	)
	return stats, nil
}

func (p *ETLPipeline) run(ctx context.Context, stats *ETLStats, start time.Time, logger *zap.Logger) error {
	dir := p.cfg.S3.PathToDownload
	keys := p.cfg.S3.Files()
	logger.Info("Downloading extracts", zap.Strings("keys", keys), zap.String("dir", dir))
	paths, err := p.fetcher.FetchAll(ctx, p.cfg.S3.BucketName, keys, dir)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	stats.FilesFetched = len(paths)

	snapshot, err := tables.LoadDir(dir, p.cfg.Pipeline.Sources)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	for name, n := range snapshot.Rows() {
		stats.RowsLoaded[name] = n
		p.metrics.RowsLoaded.WithLabelValues(name).Set(float64(n))
	}
	stats.TotalRowsProcessed = snapshot.TotalRows()
	logger.Info("Loaded extracts", zap.Any("rows", stats.RowsLoaded))

	written, err := p.writeReports(ctx, snapshot, logger)
	for _, t := range written {
		if t != nil {
			stats.ReportsWritten++
			stats.ReportRows[t.Name] = len(t.Rows)
		}
	}
	if err != nil {
		return err
	}

	return p.archiveReports(ctx, written, stats, start, logger)
}

// writeReports computes and writes every report on a bounded pool of
// workers. The first failure cancels the reports that have not started.
func (p *ETLPipeline) writeReports(parent context.Context, snapshot *tables.Tables, logger *zap.Logger) ([]*reports.Table, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	results := make([]*reports.Table, len(p.reports))
	semaphore := make(chan struct{}, p.workerCount)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)

	for i, def := range p.reports {
		wg.Add(1)
		go func(i int, def reports.Definition) {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}: // Acquire
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }() // Release
			if ctx.Err() != nil {
				return
			}

			began := time.Now()
			table, err := build(def, snapshot)
			if err == nil {
				err = p.writer.Overwrite(ctx, table)
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("report %s: %w", def.Name, err)
					cancel()
				}
				mu.Unlock()
				return
			}
			p.metrics.ObserveReport(def.Name, len(table.Rows), time.Since(began))

			mu.Lock()
			results[i] = table
			done++
			logger.Info("Report written",
				zap.String("report", def.Name),
				zap.Int("rows", len(table.Rows)),
				zap.Int("done", done),
				zap.Int("remaining", len(p.reports)-done),
			)
			mu.Unlock()
		}(i, def)
	}
	wg.Wait()

	if firstErr != nil {
		return results, firstErr
	}
	if err := parent.Err(); err != nil {
		return results, fmt.Errorf("reports interrupted: %w", err)
	}
	return results, nil
}

// build runs a report, turning a panic into an error so the run is still recorded
func build(def reports.Definition, snapshot *tables.Tables) (table *reports.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while computing report: %v", r)
		}
	}()
	return def.Build(snapshot), nil
}

func (p *ETLPipeline) archiveReports(ctx context.Context, written []*reports.Table, stats *ETLStats, runDate time.Time, logger *zap.Logger) error {
	if p.archiver != nil {
		for _, t := range written {
			key, err := p.archiver.Archive(ctx, t, stats.RunID, runDate)
			if err != nil {
				return fmt.Errorf("archive %s: %w", t.Name, err)
			}
			stats.ArchivedObjects = append(stats.ArchivedObjects, key)
		}
		logger.Info("Archived reports", zap.Int("objects", len(stats.ArchivedObjects)))
	}

	if path := p.cfg.Archive.XLSXPath; path != "" {
		if err := archive.WriteWorkbook(path, written); err != nil {
			return err
		}
		logger.Info("Wrote workbook", zap.String("path", path))
	}
	return nil
}

func (p *ETLPipeline) writeStats(stats *ETLStats, logger *zap.Logger) {
	path := p.cfg.Pipeline.StatsPath
	if path == "" {
		return
	}
	statsJSON, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		logger.Warn("Failed to serialize stats", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, statsJSON, 0o644); err != nil {
		logger.Warn("Failed to write stats file", zap.Error(err))
		return
	}
	logger.Debug("Wrote stats", zap.String("path", path))
}

// Cleanup removes the temp directory
func (p *ETLPipeline) Cleanup() {
	p.logger.Debug("Cleaning up temp directory", zap.String("dir", p.tempDir))
	if err := os.RemoveAll(p.tempDir); err != nil {
		p.logger.Warn("Failed to clean up temp directory", zap.Error(err))
	}
}
