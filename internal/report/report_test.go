package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/otpload/internal/loadtest"
	"github.com/FairForge/otpload/internal/profile"
)

func testReport() *Report {
	opts := &profile.Options{
		Name:     "redis-get-capacity",
		Scenario: profile.RampingVUs(profile.S(15*time.Second, 100), profile.S(20*time.Second, 0)),
		Thresholds: map[string][]string{
			"http_req_failed{phase:main}": {"rate<0.01"},
		},
	}
	opts.ApplyDefaults()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := &loadtest.Summary{
		RunID:          "3f0c9e43-9f4f-4a0e-9b2b-2c8f0d7a1e55",
		TestName:       "redis-get-capacity",
		Executor:       profile.ExecutorRampingVUs,
		StartTime:      start,
		EndTime:        start.Add(35 * time.Second),
		Duration:       35 * time.Second,
		TotalRequests:  10000,
		SuccessCount:   9990,
		FailureCount:   10,
		RequestsPerSec: 285.7,
		ErrorRate:      0.001,
		AvgLatency:     12 * time.Millisecond,
		P95Latency:     40 * time.Millisecond,
		P99Latency:     90 * time.Millisecond,
		Checks:         []loadtest.CheckSummary{{Name: "status is 200", Passes: 9990, Fails: 10}},
		Errors:         map[string]int64{"status 500": 10},
		Thresholds: []loadtest.ThresholdResult{
			{Selector: "http_req_failed{phase:main}", Expression: "rate<0.01", Actual: 0.001, Passed: true},
		},
	}
	r := New("redis-get-capacity", opts, s)
	r.GeneratedAt = start.Add(time.Minute)
	return r
}

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		path string
		want Encoding
	}{
		{"out.json", Encoding{FormatJSON, CompressionNone}},
		{"dir/out.yaml", Encoding{FormatYAML, CompressionNone}},
		{"out.YML", Encoding{FormatYAML, CompressionNone}},
		{"out.json.gz", Encoding{FormatJSON, CompressionGzip}},
		{"out.yaml.zst", Encoding{FormatYAML, CompressionZstd}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := EncodingFor(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"out.txt", "out.gz", "out"} {
		_, err := EncodingFor(bad)
		assert.Error(t, err, bad)
	}
}

func TestExportLoad(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"r.json", "r.yaml", "r.json.gz", "r.yml.gz", "r.json.zst", "nested/r.yaml.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			want := testReport()
			require.NoError(t, Export(path, want))

			got, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, SchemaVersion, got.SchemaVersion)
			assert.Equal(t, want.Script, got.Script)
			assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
			assert.Equal(t, want.Profile, got.Profile)
			assert.Equal(t, want.Summary.RunID, got.Summary.RunID)
			assert.Equal(t, want.Summary.TotalRequests, got.Summary.TotalRequests)
			assert.Equal(t, want.Summary.P95Latency, got.Summary.P95Latency)
			assert.Equal(t, want.Summary.Checks, got.Summary.Checks)
			assert.Equal(t, want.Summary.Thresholds, got.Summary.Thresholds)
			assert.Equal(t, want.Summary.Errors, got.Summary.Errors)
		})
	}
}

func TestExport_Compressed(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "r.json")
	gz := filepath.Join(dir, "r.json.gz")
	require.NoError(t, Export(plain, testReport()))
	require.NoError(t, Export(gz, testReport()))

	raw, err := os.ReadFile(gz)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "gzip magic")

	p, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), p[0])
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(bytes.NewBufferString(`{"schema_version": 99, "summary": {}}`), Encoding{Format: FormatJSON})
	assert.ErrorContains(t, err, "unsupported schema version 99")

	_, err = Decode(bytes.NewBufferString(`{"schema_version": 1}`), Encoding{Format: FormatJSON})
	assert.ErrorContains(t, err, "summary is missing")

	_, err = Decode(bytes.NewBufferString(`not gzip`), Encoding{Format: FormatJSON, Compression: CompressionGzip})
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
