package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/benchcluster/internal/cluster"
)

// #region types
// Config is the full tool configuration, usually read from benchcluster.yaml.
type Config struct {
	Clustering ClusteringConfig `yaml:"clustering"`
	Overlap    OverlapConfig    `yaml:"overlap"`
	Outputs    OutputsConfig    `yaml:"outputs"`
	Codegen    CodegenConfig    `yaml:"codegen"`
	Store      StoreConfig      `yaml:"store"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
	Serve      ServeConfig      `yaml:"serve"`
}

// ClusteringConfig feeds the packer and the deduplicating engine.
type ClusteringConfig struct {
	Budget           float64 `yaml:"budget" validate:"gt=0"`
	MaxStalledRounds int     `yaml:"max_stalled_rounds" validate:"gte=1"`
	MinClusterSize   int     `yaml:"min_cluster_size" validate:"gte=2"`
	Parallelism      int     `yaml:"parallelism" validate:"gte=1,lte=256"`
}

// OverlapConfig controls overlap measurement over coverage reports.
type OverlapConfig struct {
	CoverageDir     string  `yaml:"coverage_dir"`
	ThroughputCSV   string  `yaml:"throughput_csv"`
	CandidateMarker string  `yaml:"candidate_marker" validate:"required"`
	MinOverlap      float64 `yaml:"min_overlap" validate:"gte=0,lte=100"`
	Basis           string  `yaml:"basis" validate:"oneof=target candidate"`
	Workers         int     `yaml:"workers" validate:"gte=1,lte=256"`
	Report          string  `yaml:"report" validate:"required"`
}

// OutputsConfig names the files written after clustering. Empty paths are skipped.
type OutputsConfig struct {
	AllPossible    string `yaml:"all_possible"`
	HighestOverlap string `yaml:"highest_overlap"`
	Manifest       string `yaml:"manifest"`
	Clustered      string `yaml:"clustered"`
	Remaining      string `yaml:"remaining"`
}

// CodegenConfig controls Java source generation from a manifest.
type CodegenConfig struct {
	Package       string `yaml:"package" validate:"required"`
	BenchmarksDir string `yaml:"benchmarks_dir"`
	OutputDir     string `yaml:"output_dir" validate:"required"`
}

// StoreConfig points at the SQLite run database. Empty disables persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig names the Prometheus textfile. Empty disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LogConfig selects level and handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// ServeConfig is the overlap gRPC service listen address.
type ServeConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// #endregion types

// #region defaults
// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Clustering: ClusteringConfig{
			Budget:           0.000005, // 5 microseconds
			MaxStalledRounds: 500,
			MinClusterSize:   2,
			Parallelism:      1,
		},
		Overlap: OverlapConfig{
			CandidateMarker: "_Benchmark.benchmark_",
			MinOverlap:      0,
			Basis:           "target",
			Workers:         4,
			Report:          "jmh_ju2jmh_overlap.txt",
		},
		Outputs: OutputsConfig{
			AllPossible:    "results/clusters_all_possible.txt",
			HighestOverlap: "results/clusters_highest_overlap.txt",
			Manifest:       "results/clusters_ready_to_generate_file.txt",
			Clustered:      "results/clustered_ju2jmh_benchmarks.txt",
			Remaining:      "results/remaining_ju2jmh_benchmarks.txt",
		},
		Codegen: CodegenConfig{
			Package:   "benchmarks.clusters",
			OutputDir: "clusters",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Serve: ServeConfig{
			Addr: "localhost:50061",
		},
	}
}

// #endregion defaults

// #region load
var validate = validator.New()

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every struct-tag constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q (value %v)", verrs[0].Namespace(), verrs[0].Tag(), verrs[0].Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Engine converts the clustering section into engine parameters.
func (c ClusteringConfig) Engine() cluster.Config {
	return cluster.Config{
		Budget:           c.Budget,
		MaxStalledRounds: c.MaxStalledRounds,
		MinClusterSize:   c.MinClusterSize,
		Parallelism:      c.Parallelism,
	}
}

// Save writes cfg as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// #endregion load

// #region env
func applyEnv(cfg *Config) error {
	cfg.Store.Path = envOr("BENCHCLUSTER_DB", cfg.Store.Path)
	cfg.Metrics.Textfile = envOr("BENCHCLUSTER_METRICS", cfg.Metrics.Textfile)
	cfg.Log.Level = envOr("BENCHCLUSTER_LOG_LEVEL", cfg.Log.Level)
	cfg.Serve.Addr = envOr("BENCHCLUSTER_ADDR", cfg.Serve.Addr)

	if v := os.Getenv("BENCHCLUSTER_BUDGET"); v != "" {
		b, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BENCHCLUSTER_BUDGET: %w", err)
		}
		cfg.Clustering.Budget = b
	}
	if v := os.Getenv("BENCHCLUSTER_MAX_STALLED_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BENCHCLUSTER_MAX_STALLED_ROUNDS: %w", err)
		}
		cfg.Clustering.MaxStalledRounds = n
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion env
