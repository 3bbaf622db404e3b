package profile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes, schema-checks, defaults and validates a YAML (or JSON,
// which is valid YAML) profile document.
func Parse(data []byte) (*Options, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	if doc == nil {
		return nil, &ValidationError{Problems: []string{"document is empty"}}
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var opts Options
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}

	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Load reads and parses a profile file.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", path, err)
	}
	opts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Write encodes the profile as YAML.
func (o *Options) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(o); err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	return enc.Close()
}

// Clone returns a deep copy.
func (o *Options) Clone() *Options {
	c := *o
	c.Scenario.Stages = append([]Stage(nil), o.Scenario.Stages...)
	if o.Thresholds != nil {
		c.Thresholds = make(map[string][]string, len(o.Thresholds))
		for k, v := range o.Thresholds {
			c.Thresholds[k] = append([]string(nil), v...)
		}
	}
	return &c
}
