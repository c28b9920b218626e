package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	natsconn "github.com/wehubfusion/Daedalus/internal/nats"
	"github.com/wehubfusion/Daedalus/internal/tracing"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/reporting"
	"github.com/wehubfusion/Daedalus/pkg/runner"
)

var (
	modelFile string
	modelSets []string
)

// runCmd executes one or more workflow files.
var runCmd = &cobra.Command{
	Use:   "run <workflow-file>...",
	Short: "Execute workflows",
	Long: `Load each workflow file and execute it. Several files run as a batch
of independent workflows, bounded by batch.max_concurrent.

Results are logged and, when configured, published to NATS, captured in
Sentry and stored as run reports on disk or in Azure Blob Storage.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflows(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&modelFile, "model", "", "JSON file with the initial model")
	runCmd.Flags().StringSliceVar(&modelSets, "set", nil, "model values as key=value (repeatable)")
	runCmd.Flags().String("report-dir", "", "directory run reports are written to")
	runCmd.Flags().Bool("stop-on-error", false, "stop a sequence at its first failure")
	runCmd.Flags().Int("concurrency", 0, "number of workflows run at once")

	_ = settings.BindPFlag("paths.reports_dir", runCmd.Flags().Lookup("report-dir"))
	_ = settings.BindPFlag("engine.stop_on_error", runCmd.Flags().Lookup("stop-on-error"))
	_ = settings.BindPFlag("batch.max_concurrent", runCmd.Flags().Lookup("concurrency"))
}

func runWorkflows(ctx context.Context, files []string) error {
	shutdown, err := tracing.Setup(ctx, cfg.Tracing, logger.Named("tracing"))
	if err != nil {
		return err
	}
	defer func() { _ = tracing.Stop(shutdown, logger) }()

	model, err := loadModel(modelFile, modelSets)
	if err != nil {
		return err
	}
	logger.Debug("Initial model", debugFields(model)...)

	paths, err := pathProvider()
	if err != nil {
		return err
	}
	scripts, err := newScriptEngine(paths)
	if err != nil {
		return err
	}
	defer scripts.Close()

	jobs := make([]runner.Job, 0, len(files))
	for _, file := range files {
		root, err := loadWorkflow(file)
		if err != nil {
			return err
		}
		jobs = append(jobs, runner.Job{
			Name: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
			Root: root,
			Env: engine.Environment{
				Scripts: scripts,
				Model:   copyModel(model),
			},
		})
	}

	out, err := newReporters(ctx)
	if err != nil {
		return err
	}
	defer out.close()

	processor := engine.NewProcessor(cfg.EngineConfig(logger.Named("engine")))
	for _, l := range out.listeners {
		processor.AddListener(l)
	}

	batch, err := runner.NewBatchRunner(processor, cfg.RunnerConfig(logger.Named("runner")))
	if err != nil {
		return err
	}
	results, err := batch.OnComplete(out.complete).Run(ctx, jobs)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		status := "passed"
		if !res.Passed() {
			failed++
			status = "failed"
		}
		switch {
		case res.Report != nil:
			printf("%-8s %s (%d passed, %d failed, %s)\n", status, res.Job, res.Report.Passed, res.Report.Failed, res.Report.Duration)
		case res.Err != nil:
			printf("%-8s %s (%v)\n", status, res.Job, res.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d workflows failed", failed, len(results))
	}
	return nil
}

// reporters fans results and reports out to the configured destinations.
type reporters struct {
	listeners []engine.Listener
	sinks     reporting.MultiSink
	nats      *reporting.NATSPublisher
	sentry    *reporting.SentryReporter
	closers   []func()
}

func newReporters(ctx context.Context) (*reporters, error) {
	r := &reporters{listeners: []engine.Listener{reporting.NewLogListener(logger.Named("results"))}}

	if cfg.NATS.Enabled {
		conn, err := natsconn.Connect(ctx, cfg.NATSConnection(), logger.Named("nats"))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func() {
			if err := natsconn.Close(conn); err != nil {
				logger.Warn("Failed to close NATS connection", zap.Error(err))
			}
		})
		r.nats = reporting.NewNATSPublisher(conn, cfg.NATS.Subject, logger.Named("nats")).
			WithRetry(cfg.NATS.MaxRetries, cfg.NATS.ReconnectWait)
		r.listeners = append(r.listeners, r.nats)
	}

	if cfg.Sentry.DSN != "" {
		s, err := reporting.NewSentryReporter(cfg.SentryConfig(), logger.Named("sentry"))
		if err != nil {
			r.close()
			return nil, err
		}
		r.sentry = s
		r.listeners = append(r.listeners, s)
		r.closers = append(r.closers, func() { s.Flush() })
	}

	if cfg.Paths.ReportsDir != "" {
		r.sinks = append(r.sinks, reporting.NewFileSink(cfg.Paths.ReportsDir, logger.Named("reports")))
	}
	if cfg.Blob.ConnectionString != "" {
		client, err := reporting.NewAzureBlobClient(cfg.Blob.ConnectionString, cfg.Blob.Container, logger.Named("blob"))
		if err != nil {
			r.close()
			return nil, err
		}
		r.sinks = append(r.sinks, reporting.NewBlobSink(client, logger.Named("reports")))
	}
	return r, nil
}

func (r *reporters) complete(ctx context.Context, res runner.Result) {
	if res.Report == nil {
		return
	}
	reporting.LogReport(logger, res.Report)
	if r.sentry != nil {
		r.sentry.CaptureReport(res.Report)
	}
	if r.nats != nil {
		if err := r.nats.PublishReport(ctx, res.Report); err != nil {
			logger.Warn("Failed to publish run report", zap.String("job", res.Job), zap.Error(err))
		}
	}
	if len(r.sinks) > 0 {
		loc, err := r.sinks.Store(ctx, res.Report)
		if err != nil {
			logger.Warn("Failed to store run report", zap.String("job", res.Job), zap.Error(err))
		}
		if loc != "" {
			logger.Info("Run report stored", zap.String("job", res.Job), zap.String("location", loc))
		}
	}
}

// close runs the closers in reverse order.
func (r *reporters) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}
