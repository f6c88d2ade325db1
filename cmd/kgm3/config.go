package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full CLI configuration, loaded from YAML.
type Config struct {
	Model    ModelConfig   `yaml:"model"`
	Storage  StorageConfig `yaml:"storage"`
	LogLevel string        `yaml:"log_level"`
}

// ModelConfig locates the model artifacts and sets encoding behavior.
type ModelConfig struct {
	// Path to the ONNX model file.
	Path string `yaml:"path"`
	// TokenizerPath to the matching tokenizer.json.
	TokenizerPath string `yaml:"tokenizer_path"`
	// PadID fills batches; XLM-RoBERTa vocabularies use 1, BERT 0.
	PadID int64 `yaml:"pad_id"`
	// Normalize L2-normalizes embeddings.
	Normalize bool `yaml:"normalize"`
	// Temperature divides similarity scores; only honored with
	// normalization on.
	Temperature float64 `yaml:"temperature"`
	// MaxLength truncates tokenized rows; 0 keeps the serving default.
	MaxLength int `yaml:"max_length"`
	// BatchSize bounds texts per encoding pass; 0 keeps the serving
	// default.
	BatchSize int `yaml:"batch_size"`
	// CacheSize caps the embedding cache; 0 disables it.
	CacheSize int `yaml:"cache_size"`
}

// StorageConfig locates the Postgres index.
type StorageConfig struct {
	// PostgresDSN may also come from KGM3_POSTGRES_DSN, which wins over
	// the file.
	PostgresDSN string `yaml:"postgres_dsn"`
	// Dimensions is the embedding width declared to pgvector.
	Dimensions int `yaml:"dimensions"`
}

// LoadConfig reads, env-overrides, and validates a YAML config file.
// Unknown fields are rejected.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if dsn := os.Getenv("KGM3_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Model.Path == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if c.Model.TokenizerPath == "" {
		errs = append(errs, errors.New("model.tokenizer_path is required"))
	}
	if c.Model.Temperature < 0 {
		errs = append(errs, errors.New("model.temperature must not be negative"))
	}
	if c.Model.MaxLength < 0 {
		errs = append(errs, errors.New("model.max_length must not be negative"))
	}
	if c.Storage.Dimensions < 0 {
		errs = append(errs, errors.New("storage.dimensions must not be negative"))
	}
	return errors.Join(errs...)
}
