// Package archive keeps point-in-time copies of the computed reports outside
// the database: Parquet files in S3 and an optional XLSX workbook.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/reports"
)

// Uploader is the object store used for archived files
type Uploader interface {
	Upload(ctx context.Context, bucket, key, localPath string, metadata map[string]string) error
}

type Archiver struct {
	uploader Uploader
	bucket   string
	prefix   string
	tempDir  string
	logger   *zap.Logger
}

func NewArchiver(uploader Uploader, bucket, prefix, tempDir string, logger *zap.Logger) *Archiver {
	return &Archiver{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// ObjectKey lays archived reports out as prefix/year/quarter/date/name.parquet
func ObjectKey(prefix string, runDate time.Time, name string) string {
	quarter := (int(runDate.Month())-1)/3 + 1
	key := fmt.Sprintf("%d/q%d/%s/%s.parquet", runDate.Year(), quarter, runDate.Format("2006-01-02"), name)
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// Archive writes table to a local Parquet file and uploads it. The local file
// is removed afterwards.
func (a *Archiver) Archive(ctx context.Context, table *reports.Table, runID string, runDate time.Time) (string, error) {
	localFileName := filepath.Join(a.tempDir, fmt.Sprintf("%s_%s.parquet", table.Name, runID))
	if err := WriteParquet(localFileName, table); err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(localFileName); err != nil {
			a.logger.Warn("Failed to remove temp file", zap.String("path", localFileName), zap.Error(err))
		}
	}()

	key := ObjectKey(a.prefix, runDate, table.Name)
	err := a.uploader.Upload(ctx, a.bucket, key, localFileName, map[string]string{
		"record-count": strconv.Itoa(len(table.Rows)),
		"run-id":       runID,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// WriteParquet writes the report as a Snappy-compressed Parquet file
func WriteParquet(path string, table *reports.Table) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create local file writer: %w", err)
	}

	pw, err := writer.NewCSVWriter(parquetSchema(table), fw, 4)
	if err != nil {
		fw.Close()
		os.Remove(path)
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range table.Rows {
		if err := pw.Write(row); err != nil {
			fw.Close()
			os.Remove(path)
			return fmt.Errorf("failed to write record %d of %s: %w", i, table.Name, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		os.Remove(path)
		return fmt.Errorf("error in WriteStop: %w", err)
	}
	if err := fw.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("error closing file writer: %w", err)
	}
	return nil
}

func parquetSchema(table *reports.Table) []string {
	md := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		switch c.Type {
		case reports.Integer:
			md[i] = fmt.Sprintf("name=%s, type=INT64", c.Name)
		case reports.Double:
			md[i] = fmt.Sprintf("name=%s, type=DOUBLE", c.Name)
		default:
			md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8", c.Name)
		}
	}
	return md
}
