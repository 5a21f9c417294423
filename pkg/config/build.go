package config

import (
	"os"
	"strings"
	"time"

	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/feature"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
	"github.com/cdl-saarland/AnICA/pkg/predictor"
)

// BuildContext constructs the iwho.Context this config describes: the
// context_specifier's scheme universe, restricted by iwho.filters. For
// blacklist/whitelist filters, FilePath is read as one scheme ID per line.
func (c *Config) BuildContext() (iwho.Context, error) {
	filters := make([]iwho.FilterSpec, len(c.IWHO.Filters))
	for i, f := range c.IWHO.Filters {
		spec := iwho.FilterSpec{Kind: iwho.FilterKind(f.Kind), FilePath: f.FilePath}
		if spec.Kind == iwho.FilterBlacklist || spec.Kind == iwho.FilterWhitelist {
			ids, err := readIDList(f.FilePath)
			if err != nil {
				return nil, err
			}
			spec.Listed = ids
		}
		filters[i] = spec
	}
	return iwho.NewContext(c.IWHO.ContextSpecifier, filters)
}

func readIDList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapConfigError(err, "config: reading filter file %s", path)
	}
	var res []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res = append(res, line)
	}
	return res, nil
}

// BuildFeatureManager constructs the feature.Manager this config describes,
// over ctx's filtered scheme universe. Declared feature names must be among
// the ones the binary knows extractors for (feature.DefaultExtractors).
func (c *Config) BuildFeatureManager(ctx iwho.Context) (*feature.Manager, error) {
	extractors := feature.DefaultExtractors()
	decls := make([]feature.Declaration, len(c.InsnFeatureManager.Features))
	for i, fd := range c.InsnFeatureManager.Features {
		kind := feature.Kind(fd.Kind)
		d := feature.Declaration{Name: fd.Name, Kind: kind}
		if kind == feature.KindEditDistance {
			d.EditDistanceMax = 2
		}
		if _, ok := extractors[fd.Name]; !ok {
			return nil, errs.ConfigError("config: insn_feature_manager.features names unknown feature %q", fd.Name)
		}
		decls[i] = d
	}
	return feature.NewManager(ctx, decls, extractors)
}

// BuildPredictorManager constructs a predictor.Manager and loads
// predmanager.registry_path into it.
func (c *Config) BuildPredictorManager(timeout time.Duration) (*predictor.Manager, error) {
	m := predictor.NewManager(timeout)
	if c.PredManager.RegistryPath == "" {
		return m, nil
	}
	if err := predictor.LoadRegistry(m, c.PredManager.RegistryPath); err != nil {
		return nil, err
	}
	return m, nil
}
