// Package report exports run summaries to disk and compares them.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/FairForge/otpload/internal/loadtest"
	"github.com/FairForge/otpload/internal/profile"
)

// SchemaVersion is bumped on incompatible changes to Report.
const SchemaVersion = 1

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Compression applied on top of a format
const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// Report is the machine-readable result of one run.
type Report struct {
	SchemaVersion int               `json:"schema_version" yaml:"schema_version"`
	GeneratedAt   time.Time         `json:"generated_at" yaml:"generated_at"`
	Script        string            `json:"script" yaml:"script"`
	Profile       *profile.Options  `json:"profile" yaml:"profile"`
	Summary       *loadtest.Summary `json:"summary" yaml:"summary"`
}

// New wraps a summary for export.
func New(script string, opts *profile.Options, summary *loadtest.Summary) *Report {
	return &Report{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Script:        script,
		Profile:       opts,
		Summary:       summary,
	}
}

// Validate checks a loaded report.
func (r *Report) Validate() error {
	if r.SchemaVersion != SchemaVersion {
		return fmt.Errorf("report: unsupported schema version %d", r.SchemaVersion)
	}
	if r.Summary == nil {
		return errors.New("report: summary is missing")
	}
	return nil
}

// Encoding is a format plus optional compression.
type Encoding struct {
	Format      string
	Compression string
}

// EncodingFor derives the encoding from a file name:
// .json, .yaml or .yml, optionally followed by .gz or .zst.
func EncodingFor(path string) (Encoding, error) {
	var enc Encoding
	name := strings.ToLower(filepath.Base(path))

	switch {
	case strings.HasSuffix(name, ".gz"):
		enc.Compression = CompressionGzip
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".zst"):
		enc.Compression = CompressionZstd
		name = strings.TrimSuffix(name, ".zst")
	}

	switch filepath.Ext(name) {
	case ".json":
		enc.Format = FormatJSON
	case ".yaml", ".yml":
		enc.Format = FormatYAML
	default:
		return enc, fmt.Errorf("report: unsupported file extension in %q (want .json, .yaml or .yml, optionally .gz or .zst)", path)
	}
	return enc, nil
}

// Encode writes r to w.
func Encode(w io.Writer, enc Encoding, r *Report) (err error) {
	var closer io.Closer
	switch enc.Compression {
	case CompressionNone:
	case CompressionGzip:
		gz := gzip.NewWriter(w)
		w, closer = gz, gz
	case CompressionZstd:
		zw, zerr := zstd.NewWriter(w)
		if zerr != nil {
			return fmt.Errorf("report: failed to create zstd encoder: %w", zerr)
		}
		w, closer = zw, zw
	default:
		return fmt.Errorf("report: unknown compression %q", enc.Compression)
	}

	switch enc.Format {
	case FormatJSON:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		err = e.Encode(r)
	case FormatYAML:
		e := yaml.NewEncoder(w)
		e.SetIndent(2)
		if err = e.Encode(r); err == nil {
			err = e.Close()
		}
	default:
		err = fmt.Errorf("report: unknown format %q", enc.Format)
	}
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return fmt.Errorf("report: encode: %w", err)
	}

	if closer != nil {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("report: failed to close compressor: %w", err)
		}
	}
	return nil
}

// Decode reads a report from rd.
func Decode(rd io.Reader, enc Encoding) (*Report, error) {
	switch enc.Compression {
	case CompressionNone:
	case CompressionGzip:
		gz, err := gzip.NewReader(rd)
		if err != nil {
			return nil, fmt.Errorf("report: gzip: %w", err)
		}
		defer gz.Close()
		rd = gz
	case CompressionZstd:
		zr, err := zstd.NewReader(rd, zstd.WithDecoderMaxMemory(256*1024*1024))
		if err != nil {
			return nil, fmt.Errorf("report: zstd: %w", err)
		}
		defer zr.Close()
		rd = zr
	default:
		return nil, fmt.Errorf("report: unknown compression %q", enc.Compression)
	}

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("report: read: %w", err)
	}

	var r Report
	switch enc.Format {
	case FormatJSON:
		err = json.Unmarshal(data, &r)
	case FormatYAML:
		err = yaml.NewDecoder(bytes.NewReader(data)).Decode(&r)
	default:
		err = fmt.Errorf("unknown format %q", enc.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("report: decode: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Export writes r to path, choosing the encoding from the extension.
func Export(path string, r *Report) error {
	enc, err := EncodingFor(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("report: failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: failed to create file: %w", err)
	}
	if err := Encode(f, enc, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: failed to write file: %w", err)
	}
	return nil
}

// Load reads a report written by Export.
func Load(path string) (*Report, error) {
	enc, err := EncodingFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: failed to read file: %w", err)
	}
	defer f.Close()

	r, err := Decode(f, enc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
