// Package config loads the cranbench configuration.
//
// Values are applied in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. cranbench.yaml, or the file named by --config
//  3. Environment variables (CRANBENCH_*)
//
// The result is validated once, at load time. Components receive explicit
// values from the loaded Config and never read the environment themselves.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/cranbench/internal/aggregate"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

// FileNames are the config files looked up in the working directory.
var FileNames = []string{"cranbench.yaml", "cranbench.yml"}

// Config is the complete cranbench configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version" ignored:"true"`
	Inputs    InputsConfig    `yaml:"inputs" json:"inputs"`
	Artifacts ArtifactsConfig `yaml:"artifacts" json:"artifacts"`
	Sweep     SweepConfig     `yaml:"sweep" json:"sweep"`
	Evaluator EvaluatorConfig `yaml:"evaluator" json:"evaluator"`
	Summary   SummaryConfig   `yaml:"summary" json:"summary"`
	State     StateConfig     `yaml:"state" json:"state"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// InputsConfig locates the Cranfield collection.
type InputsConfig struct {
	Corpus  string `yaml:"corpus" json:"corpus" envconfig:"CRANBENCH_CORPUS"`
	Queries string `yaml:"queries" json:"queries" envconfig:"CRANBENCH_QUERIES"`
	Qrels   string `yaml:"qrels" json:"qrels" envconfig:"CRANBENCH_QRELS"`
}

// ArtifactsConfig locates the per-configuration outputs.
type ArtifactsConfig struct {
	IndexRoot  string `yaml:"index_root" json:"index_root" envconfig:"CRANBENCH_INDEX_ROOT"`
	ResultsDir string `yaml:"results_dir" json:"results_dir" envconfig:"CRANBENCH_RESULTS_DIR"`
	ReportsDir string `yaml:"reports_dir" json:"reports_dir" envconfig:"CRANBENCH_REPORTS_DIR"`
}

// SweepConfig selects the configuration space.
type SweepConfig struct {
	Tokenizers []variant.Tokenizer `yaml:"tokenizers" json:"tokenizers" envconfig:"CRANBENCH_TOKENIZERS"`
	Scorings   []variant.Scoring   `yaml:"scorings" json:"scorings" envconfig:"CRANBENCH_SCORINGS"`
	Boosts     []BoostPair         `yaml:"boosts" json:"boosts" envconfig:"CRANBENCH_BOOSTS"`

	TopK    int    `yaml:"top_k" json:"top_k" envconfig:"CRANBENCH_TOP_K"`
	RunTag  string `yaml:"run_tag" json:"run_tag" envconfig:"CRANBENCH_RUN_TAG"`
	Workers int    `yaml:"workers" json:"workers" envconfig:"CRANBENCH_WORKERS"`
}

// EvaluatorConfig configures the trec_eval subprocess.
type EvaluatorConfig struct {
	Tool    string        `yaml:"tool" json:"tool" envconfig:"CRANBENCH_TREC_EVAL"`
	Args    []string      `yaml:"args,omitempty" json:"args,omitempty" envconfig:"CRANBENCH_TREC_EVAL_ARGS"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" envconfig:"CRANBENCH_TREC_EVAL_TIMEOUT"`
	// Retries applies to timed out invocations only.
	Retries int `yaml:"retries" json:"retries" envconfig:"CRANBENCH_TREC_EVAL_RETRIES"`
}

// SummaryConfig configures the aggregated CSV.
type SummaryConfig struct {
	Output string `yaml:"output" json:"output" envconfig:"CRANBENCH_SUMMARY"`
	Layout string `yaml:"layout" json:"layout" envconfig:"CRANBENCH_SUMMARY_LAYOUT"`
}

// StateConfig locates the run ledger and the metrics textfile.
type StateConfig struct {
	Ledger string `yaml:"ledger" json:"ledger" envconfig:"CRANBENCH_LEDGER"`
	// MetricsTextfile is empty to disable sweep metrics.
	MetricsTextfile string `yaml:"metrics_textfile" json:"metrics_textfile" envconfig:"CRANBENCH_METRICS_TEXTFILE"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level" envconfig:"CRANBENCH_LOG_LEVEL"`
	File  string `yaml:"file" json:"file" envconfig:"CRANBENCH_LOG_FILE"`
}

// BoostPair weights title matches against body matches. It reads and
// writes as "title:body", e.g. "2:1".
type BoostPair struct {
	Title float64
	Body  float64
}

// String returns the "title:body" form.
func (b BoostPair) String() string {
	return strconv.FormatFloat(b.Title, 'f', -1, 64) + ":" + strconv.FormatFloat(b.Body, 'f', -1, 64)
}

// MarshalText implements encoding.TextMarshaler.
func (b BoostPair) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BoostPair) UnmarshalText(text []byte) error {
	p, err := ParseBoostPair(string(text))
	if err != nil {
		return err
	}
	*b = p
	return nil
}

// ParseBoostPair parses "title:body".
func ParseBoostPair(s string) (BoostPair, error) {
	title, body, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return BoostPair{}, fmt.Errorf("boost %q: want title:body", s)
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(title), 64)
	if err != nil {
		return BoostPair{}, fmt.Errorf("boost %q: bad title weight: %w", s, err)
	}
	c, err := strconv.ParseFloat(strings.TrimSpace(body), 64)
	if err != nil {
		return BoostPair{}, fmt.Errorf("boost %q: bad body weight: %w", s, err)
	}
	b := BoostPair{Title: t, Body: c}
	if !b.finite() {
		return BoostPair{}, fmt.Errorf("boost %q: weights must be finite", s)
	}
	return b, nil
}

func (b BoostPair) finite() bool {
	for _, w := range []float64{b.Title, b.Body} {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return false
		}
	}
	return true
}

// NewConfig creates a Config with defaults. Relative paths resolve against
// the working directory.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Inputs: InputsConfig{
			Corpus:  filepath.Join("cran", "cran.all.1400"),
			Queries: filepath.Join("cran", "cran.qry"),
			Qrels:   filepath.Join("cran", "cranqrel"),
		},
		Artifacts: ArtifactsConfig{
			IndexRoot:  "indexes",
			ResultsDir: "results",
			ReportsDir: "trec_reports",
		},
		Sweep: SweepConfig{
			Tokenizers: variant.AllTokenizers(),
			Scorings:   variant.AllScorings(),
			Boosts: []BoostPair{
				{Title: 1, Body: 1},
				{Title: 2, Body: 1},
				{Title: 1, Body: 2},
			},
			TopK:    100,
			RunTag:  "cranbench",
			Workers: 1,
		},
		Evaluator: EvaluatorConfig{
			Tool:    "trec_eval",
			Timeout: 2 * time.Minute,
			Retries: 1,
		},
		Summary: SummaryConfig{
			Output: "trec_eval_summary.csv",
			Layout: aggregate.LayoutFull.String(),
		},
		State: StateConfig{
			Ledger: filepath.Join(defaultStateDir(), "ledger.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// defaultStateDir returns ~/.cranbench, or a temp directory when the home
// directory cannot be resolved.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cranbench")
	}
	return filepath.Join(home, ".cranbench")
}

// FindFile returns the first config file from FileNames present in dir, or
// "" when there is none.
func FindFile(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load loads configuration. An explicit path must exist; with an empty path
// a cranbench.yaml in the working directory is used when present.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = FindFile(".")
	} else if _, err := os.Stat(path); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeConfigNotFound, "config file not found", err).
			WithDetail("path", path).
			WithSuggestion("run 'cranbench config init' to create one")
	}

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, cerrors.ConfigError("invalid environment override", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML overlays the file onto c. Keys absent from the file keep their
// current values; a list present in the file replaces the default list.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cerrors.ConfigError("failed to read config file", err).WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return cerrors.ConfigError("failed to parse config file", err).WithDetail("path", path)
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Inputs.Corpus == "" || c.Inputs.Queries == "" || c.Inputs.Qrels == "" {
		errs = append(errs, errors.New("inputs.corpus, inputs.queries and inputs.qrels are required"))
	}
	if c.Artifacts.IndexRoot == "" || c.Artifacts.ResultsDir == "" || c.Artifacts.ReportsDir == "" {
		errs = append(errs, errors.New("artifacts.index_root, artifacts.results_dir and artifacts.reports_dir are required"))
	}

	if len(c.Sweep.Tokenizers) == 0 {
		errs = append(errs, errors.New("sweep.tokenizers must not be empty"))
	}
	if len(c.Sweep.Scorings) == 0 {
		errs = append(errs, errors.New("sweep.scorings must not be empty"))
	}
	if len(c.Sweep.Boosts) == 0 {
		errs = append(errs, errors.New("sweep.boosts must not be empty"))
	}
	seen := make(map[BoostPair]bool)
	for _, b := range c.Sweep.Boosts {
		switch {
		case !b.finite():
			errs = append(errs, fmt.Errorf("sweep.boosts: %s is not a finite weight", b))
		case b.Title < 0 || b.Body < 0:
			errs = append(errs, fmt.Errorf("sweep.boosts: %s has a negative weight", b))
		case b.Title == 0 && b.Body == 0:
			errs = append(errs, fmt.Errorf("sweep.boosts: %s weights nothing", b))
		case seen[b]:
			errs = append(errs, fmt.Errorf("sweep.boosts: %s is listed twice", b))
		}
		seen[b] = true
	}
	if c.Sweep.TopK <= 0 {
		errs = append(errs, fmt.Errorf("sweep.top_k must be positive, got %d", c.Sweep.TopK))
	}
	if c.Sweep.Workers <= 0 {
		errs = append(errs, fmt.Errorf("sweep.workers must be positive, got %d", c.Sweep.Workers))
	}
	if c.Sweep.RunTag == "" || strings.ContainsAny(c.Sweep.RunTag, " \t\n") {
		errs = append(errs, fmt.Errorf("sweep.run_tag must be a single non-empty word, got %q", c.Sweep.RunTag))
	}

	if c.Evaluator.Tool == "" {
		errs = append(errs, errors.New("evaluator.tool is required"))
	}
	if c.Evaluator.Timeout < 0 {
		errs = append(errs, fmt.Errorf("evaluator.timeout must not be negative, got %s", c.Evaluator.Timeout))
	}
	if c.Evaluator.Retries < 0 {
		errs = append(errs, fmt.Errorf("evaluator.retries must not be negative, got %d", c.Evaluator.Retries))
	}

	if _, err := aggregate.ParseLayout(c.Summary.Layout); err != nil {
		errs = append(errs, fmt.Errorf("summary.layout: %w", err))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level))
	}

	if len(errs) > 0 {
		return cerrors.New(cerrors.ErrCodeConfigInvalid, "invalid configuration", errors.Join(errs...)).
			WithSuggestion("fix the listed keys in cranbench.yaml or the CRANBENCH_* environment")
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cerrors.IOError("failed to write config file", err).WithDetail("path", path)
	}
	return nil
}
