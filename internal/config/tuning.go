package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the retrieval constants that were picked empirically.
// Every field can be overridden from the YAML file named by RETRIEVAL_CONFIG.
type Tuning struct {
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold"`
	MultiAspectMinAspects  int     `yaml:"multi_aspect_min_aspects"`
	DedupThreshold         float64 `yaml:"dedup_threshold"`
	SeedK                  int     `yaml:"seed_k"`
	TopThreads             int     `yaml:"top_threads"`
	MaxContextThreads      int     `yaml:"max_context_threads"`
	OverFetchFactor        int     `yaml:"over_fetch_factor"`
	OverFetchCap           int     `yaml:"over_fetch_cap"`
	DefaultMaxTokens       int     `yaml:"default_max_tokens"`
}

// DefaultTuning returns the built-in retrieval constants.
func DefaultTuning() Tuning {
	return Tuning{
		LowConfidenceThreshold: 0.5,
		MultiAspectMinAspects:  2,
		DedupThreshold:         0.8,
		SeedK:                  10,
		TopThreads:             3,
		MaxContextThreads:      3,
		OverFetchFactor:        10,
		OverFetchCap:           100,
		DefaultMaxTokens:       3000,
	}
}

// LoadTuning reads a YAML tuning file. Keys missing from the file keep their defaults;
// unknown keys are rejected.
func LoadTuning(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to read retrieval config: %w", err)
	}

	t := DefaultTuning()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tuning{}, fmt.Errorf("failed to parse retrieval config %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("invalid retrieval config %s: %w", path, err)
	}
	return t, nil
}

// Validate checks that every constant is in range.
func (t Tuning) Validate() error {
	switch {
	case t.LowConfidenceThreshold <= 0 || t.LowConfidenceThreshold > 1:
		return fmt.Errorf("low_confidence_threshold must be in (0, 1]")
	case t.MultiAspectMinAspects < 1:
		return fmt.Errorf("multi_aspect_min_aspects must be at least 1")
	case t.DedupThreshold <= 0 || t.DedupThreshold > 1:
		return fmt.Errorf("dedup_threshold must be in (0, 1]")
	case t.SeedK < 1:
		return fmt.Errorf("seed_k must be at least 1")
	case t.TopThreads < 1:
		return fmt.Errorf("top_threads must be at least 1")
	case t.MaxContextThreads < 1:
		return fmt.Errorf("max_context_threads must be at least 1")
	case t.OverFetchFactor < 1:
		return fmt.Errorf("over_fetch_factor must be at least 1")
	case t.OverFetchCap < 1:
		return fmt.Errorf("over_fetch_cap must be at least 1")
	case t.DefaultMaxTokens < 1:
		return fmt.Errorf("default_max_tokens must be at least 1")
	}
	return nil
}
