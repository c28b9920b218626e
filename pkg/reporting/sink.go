package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/scriptpath"
)

// ReportPathFormat lays out stored reports by workflow and run.
const ReportPathFormat = "reports/%s/%s/report.json"

// ReportSink stores a finished run report and returns where it went.
type ReportSink interface {
	Store(ctx context.Context, report *engine.RunReport) (string, error)
}

// ReportPath returns the relative location of report.
func ReportPath(report *engine.RunReport) string {
	workflow := scriptpath.Normalize(report.Workflow)
	if workflow == "" {
		workflow = "workflow"
	}
	return fmt.Sprintf(ReportPathFormat, workflow, report.RunID)
}

func encodeReport(report *engine.RunReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("report cannot be nil")
	}
	if report.RunID == "" {
		return nil, fmt.Errorf("report has no run id")
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode run report: %w", err)
	}
	return data, nil
}

// FileSink writes reports under a local directory.
type FileSink struct {
	dir    string
	logger *zap.Logger
}

// NewFileSink creates a sink rooted at dir.
func NewFileSink(dir string, logger *zap.Logger) *FileSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{dir: dir, logger: logger}
}

func (s *FileSink) Store(_ context.Context, report *engine.RunReport) (string, error) {
	data, err := encodeReport(report)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, filepath.FromSlash(ReportPath(report)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	s.logger.Info("Stored run report", zap.String("path", path))
	return path, nil
}

// BlobSink uploads reports to blob storage.
type BlobSink struct {
	client BlobStorageClient
	logger *zap.Logger
}

// NewBlobSink creates a sink uploading through client.
func NewBlobSink(client BlobStorageClient, logger *zap.Logger) *BlobSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobSink{client: client, logger: logger}
}

func (s *BlobSink) Store(ctx context.Context, report *engine.RunReport) (string, error) {
	data, err := encodeReport(report)
	if err != nil {
		return "", err
	}
	metadata := map[string]string{
		"workflow": report.Workflow,
		"run_id":   report.RunID,
		"outcome":  string(report.Outcome),
		"failed":   strconv.Itoa(report.Failed),
	}
	url, err := s.client.Upload(ctx, ReportPath(report), data, metadata)
	if err != nil {
		return "", err
	}
	s.logger.Debug("Uploaded run report", zap.String("url", url))
	return url, nil
}

// LoadReport fetches a report previously stored by a BlobSink.
func LoadReport(ctx context.Context, client BlobStorageClient, reference string) (*engine.RunReport, error) {
	data, err := client.Download(ctx, reference)
	if err != nil {
		return nil, err
	}
	var report engine.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &report, nil
}

// MultiSink stores a report in every sink, returning the locations of
// those that succeeded and the first error.
type MultiSink []ReportSink

func (m MultiSink) Store(ctx context.Context, report *engine.RunReport) (string, error) {
	var (
		first     error
		locations []string
	)
	for _, sink := range m {
		loc, err := sink.Store(ctx, report)
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		locations = append(locations, loc)
	}
	if len(locations) == 0 {
		return "", first
	}
	return strings.Join(locations, ","), first
}
