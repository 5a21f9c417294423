// Package config implements AnICA's configuration loading and resolution
// (§6.2): a single JSON object whose recognized top-level keys are the only
// options the core reads, plus the ${BASE_DIR}/relative-path resolution and
// campaign-config template expansion rules.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cdl-saarland/AnICA/pkg/errs"
)

// FeatureDecl is one [name, kind] entry of insn_feature_manager.features.
type FeatureDecl struct {
	Name string
	Kind string
}

func (f *FeatureDecl) UnmarshalJSON(data []byte) error {
	var tuple [2]string
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	f.Name, f.Kind = tuple[0], tuple[1]
	return nil
}

func (f FeatureDecl) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{f.Name, f.Kind})
}

// FilterSpec is one entry of iwho.filters.
type FilterSpec struct {
	Kind     string `json:"kind"`
	FilePath string `json:"file_path,omitempty"`
}

// IWHOConfig is the iwho.* configuration substructure.
type IWHOConfig struct {
	ContextSpecifier string       `json:"context_specifier"`
	Filters          []FilterSpec `json:"filters"`
}

// InterestingnessConfig is the interestingness_metric.* substructure.
type InterestingnessConfig struct {
	MinInterestingness     float64 `json:"min_interestingness"`
	MostlyInterestingRatio float64 `json:"mostly_interesting_ratio"`
	InvertInterestingness  bool    `json:"invert_interestingness"`
}

// StrategyEntry is one [name, N] entry of discovery.generalization_strategy.
type StrategyEntry struct {
	Name string
	N    int
}

func (s *StrategyEntry) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &s.Name); err != nil {
		return err
	}
	return json.Unmarshal(tuple[1], &s.N)
}

func (s StrategyEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Name, s.N})
}

// Termination is the discovery campaign's termination criterion (§4.8): any
// conjunction of the configured bounds ends the campaign at the next batch
// boundary. A zero field means that bound is not in force.
type Termination struct {
	Days                          int `json:"days,omitempty"`
	Hours                         int `json:"hours,omitempty"`
	Minutes                       int `json:"minutes,omitempty"`
	Seconds                       int `json:"seconds,omitempty"`
	MaxDiscoveries                int `json:"max_discoveries,omitempty"`
	MaxConsecutiveStagnantBatches int `json:"max_consecutive_stagnant_batches,omitempty"`
}

// DiscoveryConfig is the discovery.* substructure.
type DiscoveryConfig struct {
	DiscoveryBatchSize            int             `json:"discovery_batch_size"`
	DiscoveryPossibleBlockLengths []int           `json:"discovery_possible_block_lengths"`
	GeneralizationBatchSize       int             `json:"generalization_batch_size"`
	GeneralizationStrategy        []StrategyEntry `json:"generalization_strategy"`
	Termination                   Termination     `json:"termination"`
}

// SamplingConfig is the sampling.* substructure.
type SamplingConfig struct {
	WrapInLoop bool `json:"wrap_in_loop"`
}

// PredManagerConfig is the predmanager.* substructure.
type PredManagerConfig struct {
	RegistryPath string `json:"registry_path"`
	NumProcesses *int   `json:"num_processes"`
}

// InsnFeatureManagerConfig is the insn_feature_manager.* substructure.
type InsnFeatureManagerConfig struct {
	Features []FeatureDecl `json:"features"`
}

// Config is one resolved AnICA configuration document.
type Config struct {
	InsnFeatureManager    InsnFeatureManagerConfig `json:"insn_feature_manager"`
	IWHO                  IWHOConfig               `json:"iwho"`
	InterestingnessMetric InterestingnessConfig    `json:"interestingness_metric"`
	Discovery             DiscoveryConfig          `json:"discovery"`
	Sampling              SamplingConfig           `json:"sampling"`
	MeasurementDB         json.RawMessage          `json:"measurement_db,omitempty"`
	PredManager           PredManagerConfig        `json:"predmanager"`
	// Predictors names the predictor_ids a discover campaign evaluates, or
	// the single-element "TEMPLATE:all_predictor_pairs" sentinel expanded
	// by ExpandTemplates before the discovery loop runs (§9).
	Predictors []string `json:"predictors,omitempty"`

	baseDir string
}

// TemplateAllPredictorPairs is the campaign config template sentinel.
const TemplateAllPredictorPairs = "TEMPLATE:all_predictor_pairs"

// Load reads and resolves a configuration document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapConfigError(err, "config: reading %s", path)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errs.WrapConfigError(err, "config: parsing %s", path)
	}
	c.baseDir = filepath.Dir(path)
	c.resolvePaths()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// BaseDir returns the enclosing directory of the config file this Config
// was loaded from.
func (c *Config) BaseDir() string { return c.baseDir }

// resolvePaths expands ${BASE_DIR} and leading-"." relative paths in every
// path-valued configuration field (§6.2).
func (c *Config) resolvePaths() {
	for i := range c.IWHO.Filters {
		c.IWHO.Filters[i].FilePath = c.resolvePath(c.IWHO.Filters[i].FilePath)
	}
	c.PredManager.RegistryPath = c.resolvePath(c.PredManager.RegistryPath)
}

func (c *Config) resolvePath(raw string) string {
	if raw == "" {
		return raw
	}
	expanded := strings.ReplaceAll(raw, "${BASE_DIR}", c.baseDir)
	if strings.HasPrefix(expanded, ".") {
		return filepath.Join(c.baseDir, expanded)
	}
	return expanded
}

// Validate checks the config for the mistakes the core can detect before
// doing any work (used by "discover --check-config").
func (c *Config) Validate() error {
	if c.InterestingnessMetric.MostlyInterestingRatio < 0 || c.InterestingnessMetric.MostlyInterestingRatio > 1 {
		return errs.ConfigError("config: interestingness_metric.mostly_interesting_ratio must be in [0,1], got %v", c.InterestingnessMetric.MostlyInterestingRatio)
	}
	for _, f := range c.InsnFeatureManager.Features {
		if f.Name == "" || f.Kind == "" {
			return errs.ConfigError("config: insn_feature_manager.features entry missing name or kind")
		}
	}
	for _, f := range c.IWHO.Filters {
		switch f.Kind {
		case "no_cf", "with_measurements", "blacklist", "whitelist":
		default:
			return errs.ConfigError("config: iwho.filters entry has unknown kind %q", f.Kind)
		}
		if (f.Kind == "blacklist" || f.Kind == "whitelist") && f.FilePath == "" {
			return errs.ConfigError("config: iwho.filters %s entry requires file_path", f.Kind)
		}
	}
	return nil
}

// Clone returns a deep-enough copy suitable for template expansion.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Predictors = append([]string(nil), c.Predictors...)
	cp.IWHO.Filters = append([]FilterSpec(nil), c.IWHO.Filters...)
	cp.InsnFeatureManager.Features = append([]FeatureDecl(nil), c.InsnFeatureManager.Features...)
	cp.Discovery.DiscoveryPossibleBlockLengths = append([]int(nil), c.Discovery.DiscoveryPossibleBlockLengths...)
	cp.Discovery.GeneralizationStrategy = append([]StrategyEntry(nil), c.Discovery.GeneralizationStrategy...)
	return &cp
}

// ExpandTemplates runs the campaign config template-expansion preprocessing
// pass (§9): the all_predictor_pairs sentinel expands to C(n, 2) configs,
// one per unordered pair of the given predictor universe. Any other
// Predictors value is left untouched and yields a single-element result.
func (c *Config) ExpandTemplates(allPredictorKeys []string) ([]*Config, error) {
	if len(c.Predictors) != 1 || c.Predictors[0] != TemplateAllPredictorPairs {
		return []*Config{c}, nil
	}
	if len(allPredictorKeys) < 2 {
		return nil, errs.ConfigError("config: %s requires at least 2 predictors, got %d", TemplateAllPredictorPairs, len(allPredictorKeys))
	}
	var res []*Config
	for i := 0; i < len(allPredictorKeys); i++ {
		for j := i + 1; j < len(allPredictorKeys); j++ {
			cp := c.Clone()
			cp.Predictors = []string{allPredictorKeys[i], allPredictorKeys[j]}
			res = append(res, cp)
		}
	}
	return res, nil
}
