package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wehubfusion/Daedalus/pkg/engine"
)

func failedResult() engine.ProcessResult {
	return engine.ProcessResult{
		RunID:    "run-1",
		NodeID:   "n-2",
		NodeName: "Submit",
		Kind:     "click_control",
		Path:     "Login/Submit",
		Outcome:  engine.OutcomeFailed,
		Phase:    engine.PhaseAct,
		Message:  "element not found",
		Err:      errors.New("element not found"),
		Duration: 40 * time.Millisecond,
	}
}

func sampleReport() *engine.RunReport {
	return &engine.RunReport{
		RunID:    "run-1",
		Workflow: "Login Suite",
		Outcome:  engine.OutcomeFailed,
		Passed:   2,
		Failed:   1,
		Results:  []engine.ProcessResult{failedResult()},
	}
}

func TestLogListener(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLogListener(zap.New(core))

	l.OnResult(context.Background(), engine.ProcessResult{NodeID: "n-1", Outcome: engine.OutcomePassed})
	l.OnResult(context.Background(), failedResult())

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "act", entries[1].ContextMap()["phase"])
	assert.Equal(t, "element not found", entries[1].ContextMap()["error"])
}

func TestLogReport(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	LogReport(logger, &engine.RunReport{RunID: "a", Outcome: engine.OutcomePassed})
	LogReport(logger, sampleReport())
	LogReport(logger, &engine.RunReport{RunID: "b", Outcome: engine.OutcomeFailed, Error: "break outside loop"})
	LogReport(logger, nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "Run completed", entries[0].Message)
	assert.Equal(t, "Run completed with failures", entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

type fakeConn struct {
	mu       sync.Mutex
	failures int
	subjects []string
	payloads [][]byte
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return errors.New("nats: connection closed")
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestNATSPublisher_OnResult(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "", nil)

	p.OnResult(context.Background(), failedResult())

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "daedalus.results.run-1.result", conn.subjects[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	assert.Equal(t, "n-2", decoded["node_id"])
	assert.Equal(t, "failed", decoded["outcome"])
	assert.Equal(t, "element not found", decoded["error"])
	assert.EqualValues(t, 1, p.Published())
}

func TestNATSPublisher_Retries(t *testing.T) {
	tests := []struct {
		name          string
		failures      int
		wantPublished int64
		wantFailed    int64
	}{
		{name: "recovers within retries", failures: 2, wantPublished: 1},
		{name: "gives up", failures: 5, wantFailed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{failures: tt.failures}
			p := NewNATSPublisher(conn, "qa", nil).WithRetry(2, time.Millisecond)

			p.OnResult(context.Background(), failedResult())

			assert.Equal(t, tt.wantPublished, p.Published())
			assert.Equal(t, tt.wantFailed, p.Failed())
		})
	}
}

func TestNATSPublisher_PublishReport(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "qa", nil)

	require.NoError(t, p.PublishReport(context.Background(), sampleReport()))
	assert.Equal(t, []string{"qa.run-1.report"}, conn.subjects)
	assert.Error(t, p.PublishReport(context.Background(), nil))
}

func TestNATSPublisher_CancelledRetry(t *testing.T) {
	conn := &fakeConn{failures: 10}
	p := NewNATSPublisher(conn, "qa", nil).WithRetry(3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PublishReport(ctx, sampleReport())
	assert.ErrorIs(t, err, context.Canceled)
}

func newCapturingHub(t *testing.T) (*sentry.Hub, func() []*sentry.Event) {
	t.Helper()
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		SampleRate: 1.0,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
			return nil
		},
	})
	require.NoError(t, err)
	return sentry.NewHub(client, sentry.NewScope()), func() []*sentry.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*sentry.Event(nil), events...)
	}
}

func TestSentryReporter_CapturesFailures(t *testing.T) {
	hub, captured := newCapturingHub(t)
	r := NewSentryReporterWithHub(hub, nil)

	r.OnResult(context.Background(), engine.ProcessResult{NodeID: "n-1", Outcome: engine.OutcomePassed})
	r.OnResult(context.Background(), engine.ProcessResult{NodeID: "n-3", Outcome: engine.OutcomeCancelled})
	r.OnResult(context.Background(), failedResult())

	events := captured()
	require.Len(t, events, 1)
	assert.Equal(t, "n-2", events[0].Tags["node_id"])
	assert.Equal(t, "click_control", events[0].Tags["kind"])
	assert.Equal(t, "act", events[0].Tags["phase"])
	require.NotEmpty(t, events[0].Exception)
	assert.Equal(t, "element not found", events[0].Exception[len(events[0].Exception)-1].Value)
}

func TestSentryReporter_ConcurrentRunsKeepTheirTags(t *testing.T) {
	hub, captured := newCapturingHub(t)
	r := NewSentryReporterWithHub(hub, nil)

	const runs = 50
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := failedResult()
			res.RunID = fmt.Sprintf("run-%d", i)
			res.NodeID = fmt.Sprintf("node-%d", i)
			r.OnResult(context.Background(), res)
		}(i)
	}
	wg.Wait()

	events := captured()
	require.Len(t, events, runs)
	for _, ev := range events {
		var i int
		_, err := fmt.Sscanf(ev.Tags["run_id"], "run-%d", &i)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("node-%d", i), ev.Tags["node_id"])
	}

	r.CaptureReport(&engine.RunReport{RunID: "after", Workflow: "smoke", Error: "aborted"})
	events = captured()
	require.Len(t, events, runs+1)
	assert.Equal(t, "after", events[runs].Tags["run_id"])
	assert.Empty(t, events[runs].Tags["node_id"], "tags of earlier captures must not stick to the hub")
}

func TestSentryReporter_CaptureReport(t *testing.T) {
	hub, captured := newCapturingHub(t)
	r := NewSentryReporterWithHub(hub, nil)

	r.CaptureReport(sampleReport())
	r.CaptureReport(&engine.RunReport{RunID: "run-2", Workflow: "smoke", Error: "break outside loop"})

	events := captured()
	require.Len(t, events, 1)
	assert.Equal(t, "run-2", events[0].Tags["run_id"])
	assert.Equal(t, sentry.LevelFatal, events[0].Level)
	assert.Contains(t, events[0].Message, "break outside loop")
}

func TestReportPath(t *testing.T) {
	assert.Equal(t, "reports/login-suite/run-1/report.json", ReportPath(sampleReport()))
	assert.Equal(t, "reports/workflow/x/report.json", ReportPath(&engine.RunReport{RunID: "x"}))
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, nil)

	path, err := sink.Store(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "login-suite", "run-1", "report.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded engine.RunReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Login Suite", decoded.Workflow)
	assert.Equal(t, 1, decoded.Failed)

	_, err = sink.Store(context.Background(), &engine.RunReport{})
	assert.Error(t, err)
}

type fakeBlobs struct {
	objects  map[string][]byte
	metadata map[string]map[string]string
	err      error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, metadata: map[string]map[string]string{}}
}

func (f *fakeBlobs) Upload(_ context.Context, blobPath string, data []byte, metadata map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.objects[blobPath] = data
	f.metadata[blobPath] = metadata
	return "https://acct.blob.core.windows.net/runs/" + blobPath, nil
}

func (f *fakeBlobs) Download(_ context.Context, reference string) ([]byte, error) {
	path, err := blobPathOf(reference, "https://acct.blob.core.windows.net", "runs")
	if err != nil {
		return nil, err
	}
	data, ok := f.objects[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func TestBlobSink(t *testing.T) {
	blobs := newFakeBlobs()
	sink := NewBlobSink(blobs, nil)

	url, err := sink.Store(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.core.windows.net/runs/reports/login-suite/run-1/report.json", url)
	assert.Equal(t, "failed", blobs.metadata["reports/login-suite/run-1/report.json"]["outcome"])
	assert.Equal(t, "1", blobs.metadata["reports/login-suite/run-1/report.json"]["failed"])

	loaded, err := LoadReport(context.Background(), blobs, url+"?sv=2024&sig=abc")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	require.Len(t, loaded.Results, 1)
	assert.Equal(t, "n-2", loaded.Results[0].NodeID)
}

func TestMultiSink(t *testing.T) {
	broken := newFakeBlobs()
	broken.err = errors.New("403")
	dir := t.TempDir()

	loc, err := MultiSink{NewBlobSink(broken, nil), NewFileSink(dir, nil)}.Store(context.Background(), sampleReport())
	assert.Error(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "login-suite", "run-1", "report.json"), loc)
}

func TestParseConnectionString(t *testing.T) {
	params := parseConnectionString("DefaultEndpointsProtocol=http;AccountName=dev;AccountKey=a2V5==;;BlobEndpoint=http://127.0.0.1:10000/dev;")
	assert.Equal(t, "http", params["DefaultEndpointsProtocol"])
	assert.Equal(t, "dev", params["AccountName"])
	assert.Equal(t, "a2V5==", params["AccountKey"])
	assert.Equal(t, "http://127.0.0.1:10000/dev", params["BlobEndpoint"])
}

func TestServiceURLFor(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{name: "explicit endpoint", params: map[string]string{"AccountName": "a", "BlobEndpoint": "http://localhost:10000/a"}, want: "http://localhost:10000/a"},
		{name: "defaults", params: map[string]string{"AccountName": "a"}, want: "https://a.blob.core.windows.net"},
		{name: "sovereign cloud", params: map[string]string{"AccountName": "a", "EndpointSuffix": "core.chinacloudapi.cn"}, want: "https://a.blob.core.chinacloudapi.cn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serviceURLFor(tt.params))
		})
	}
}

func TestBlobPathOf(t *testing.T) {
	const svc = "http://127.0.0.1:10000/devstoreaccount1"
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "full url", ref: svc + "/runs/reports/a/b/report.json", want: "reports/a/b/report.json"},
		{name: "sas url", ref: svc + "/runs/reports/a/b/report.json?sv=1&sig=x", want: "reports/a/b/report.json"},
		{name: "container path", ref: "runs/reports/a.json", want: "reports/a.json"},
		{name: "escaped", ref: "reports/login%20suite.json", want: "reports/login suite.json"},
		{name: "empty", ref: "  ", wantErr: true},
		{name: "container only", ref: svc + "/runs/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := blobPathOf(tt.ref, svc, "runs")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewAzureBlobClient(t *testing.T) {
	const azurite = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
		"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
		"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

	tests := []struct {
		name             string
		connectionString string
		container        string
		errContains      string
	}{
		{name: "empty connection string", container: "runs", errContains: "connection string is required"},
		{name: "empty container", connectionString: azurite, errContains: "container name is required"},
		{name: "missing key", connectionString: "AccountName=a", container: "runs", errContains: "account name and key"},
		{name: "azurite", connectionString: azurite, container: "runs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewAzureBlobClient(tt.connectionString, tt.container, nil)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://127.0.0.1:10000/devstoreaccount1", client.serviceURL)
		})
	}
}
