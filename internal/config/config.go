// Package config provides the configuration record for a sectorcast run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SECTORCAST_"

// Config holds every path and tunable the pipeline and trainer need.
// Components take their settings from a Config; they do not default anything themselves.
type Config struct {
	// Input
	RawDataDir string `json:"raw_data_dir" yaml:"raw_data_dir"` // Root holding train/*.csv and test.csv

	// Outputs
	TrainOutputPath string `json:"train_output_path" yaml:"train_output_path"` // .csv or .parquet
	TestOutputPath  string `json:"test_output_path" yaml:"test_output_path"`   // .csv or .parquet
	ScalerPath      string `json:"scaler_path" yaml:"scaler_path"`             // Fitted scaler artifact (JSON)
	ModelDir        string `json:"model_dir" yaml:"model_dir"`                 // One artifact per model plus best.json
	MetricsPath     string `json:"metrics_path" yaml:"metrics_path"`           // Prometheus textfile; empty disables

	// Execution
	Workers int `json:"workers" yaml:"workers"` // Rolling generator fan-out; 1 = sequential
}

// Default configuration values
const (
	DefaultRawDataDir      = "./raw_datas"
	DefaultTrainOutputPath = "artifacts/raw_data/train_data/train.csv"
	DefaultTestOutputPath  = "artifacts/raw_data/test_data/test.csv"
	DefaultScalerPath      = "final_model/scaler.json"
	DefaultModelDir        = "final_model/models"
	DefaultWorkers         = 1
)

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		RawDataDir:      DefaultRawDataDir,
		TrainOutputPath: DefaultTrainOutputPath,
		TestOutputPath:  DefaultTestOutputPath,
		ScalerPath:      DefaultScalerPath,
		ModelDir:        DefaultModelDir,
		Workers:         DefaultWorkers,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"raw_data_dir", c.RawDataDir},
		{"train_output_path", c.TrainOutputPath},
		{"test_output_path", c.TestOutputPath},
		{"scaler_path", c.ScalerPath},
		{"model_dir", c.ModelDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s must not be empty", r.name)
		}
	}

	if filepath.Clean(c.TrainOutputPath) == filepath.Clean(c.TestOutputPath) {
		return fmt.Errorf("train_output_path and test_output_path must differ, both are %s", c.TrainOutputPath)
	}

	for name, path := range map[string]string{
		"train_output_path": c.TrainOutputPath,
		"test_output_path":  c.TestOutputPath,
	} {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv", ".parquet", ".pq":
		default:
			return fmt.Errorf("%s must end in .csv or .parquet, got %s", name, path)
		}
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.RawDataDir == "" {
		c.RawDataDir = defaults.RawDataDir
	}
	if c.TrainOutputPath == "" {
		c.TrainOutputPath = defaults.TrainOutputPath
	}
	if c.TestOutputPath == "" {
		c.TestOutputPath = defaults.TestOutputPath
	}
	if c.ScalerPath == "" {
		c.ScalerPath = defaults.ScalerPath
	}
	if c.ModelDir == "" {
		c.ModelDir = defaults.ModelDir
	}
	if c.Workers == 0 {
		c.Workers = defaults.Workers
	}

	// MetricsPath stays empty unless set; an empty path disables the textfile export.

	return c
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromYAML loads configuration from YAML data
func LoadFromYAML(data []byte) (Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing YAML configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		config, err = LoadFromJSON(data)
	case ".yaml", ".yml":
		config, err = LoadFromYAML(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", filename, err)
	}

	return config, nil
}

// ApplyEnv overrides fields from SECTORCAST_* environment variables.
// Unparseable numeric values are reported rather than ignored.
func ApplyEnv(config Config) (Config, error) {
	paths := map[string]*string{
		"RAW_DATA_DIR":      &config.RawDataDir,
		"TRAIN_OUTPUT_PATH": &config.TrainOutputPath,
		"TEST_OUTPUT_PATH":  &config.TestOutputPath,
		"SCALER_PATH":       &config.ScalerPath,
		"MODEL_DIR":         &config.ModelDir,
		"METRICS_PATH":      &config.MetricsPath,
	}
	for key, field := range paths {
		if val, ok := os.LookupEnv(EnvPrefix + key); ok {
			*field = val
		}
	}

	if val := os.Getenv(EnvPrefix + "WORKERS"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return Config{}, fmt.Errorf("parsing %sWORKERS: %w", EnvPrefix, err)
		}
		config.Workers = parsed
	}

	return config, nil
}

// Load builds the effective configuration: defaults, then the optional file, then
// environment overrides. The result is validated.
func Load(filename string) (Config, error) {
	config := NewConfig()
	if filename != "" {
		var err error
		if config, err = LoadFromFile(filename); err != nil {
			return Config{}, err
		}
	}

	config, err := ApplyEnv(config)
	if err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
