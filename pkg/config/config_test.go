package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "campaign.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadResolvesBaseDirAndRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"iwho": {"filters": [{"kind": "blacklist", "file_path": "${BASE_DIR}/blacklist.txt"}]},
		"predmanager": {"registry_path": "./registry.json"}
	}`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BaseDir() != dir {
		t.Errorf("BaseDir() = %q, want %q", c.BaseDir(), dir)
	}
	wantBlacklist := filepath.Join(dir, "blacklist.txt")
	if c.IWHO.Filters[0].FilePath != wantBlacklist {
		t.Errorf("Filters[0].FilePath = %q, want %q", c.IWHO.Filters[0].FilePath, wantBlacklist)
	}
	wantRegistry := filepath.Join(dir, "registry.json")
	if c.PredManager.RegistryPath != wantRegistry {
		t.Errorf("PredManager.RegistryPath = %q, want %q", c.PredManager.RegistryPath, wantRegistry)
	}
}

func TestValidateRejectsRatioOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"interestingness_metric": {"mostly_interesting_ratio": 1.5}}`)
	if _, err := Load(path); err == nil {
		t.Errorf("Load with mostly_interesting_ratio=1.5 did not error")
	}
}

func TestValidateRejectsFilterWithoutFilePath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"iwho": {"filters": [{"kind": "blacklist"}]}}`)
	if _, err := Load(path); err == nil {
		t.Errorf("Load with blacklist filter missing file_path did not error")
	}
}

func TestFeatureDeclRoundTrips(t *testing.T) {
	f := FeatureDecl{Name: "mnemonic", Kind: "singleton"}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `["mnemonic","singleton"]` {
		t.Errorf("Marshal(FeatureDecl) = %s, want [\"mnemonic\",\"singleton\"]", data)
	}
	var got FeatureDecl
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != f {
		t.Errorf("round-tripped FeatureDecl = %v, want %v", got, f)
	}
}

func TestStrategyEntryRoundTrips(t *testing.T) {
	s := StrategyEntry{Name: "random", N: 10}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got StrategyEntry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != s {
		t.Errorf("round-tripped StrategyEntry = %v, want %v", got, s)
	}
}

func TestExpandTemplatesAllPredictorPairs(t *testing.T) {
	c := &Config{Predictors: []string{TemplateAllPredictorPairs}}
	expanded, err := c.ExpandTemplates([]string{"llvm-mca", "uica", "iaca"})
	if err != nil {
		t.Fatalf("ExpandTemplates: %v", err)
	}
	if len(expanded) != 3 {
		t.Fatalf("ExpandTemplates(3 predictors) = %d configs, want 3", len(expanded))
	}
	seen := map[[2]string]bool{}
	for _, e := range expanded {
		if len(e.Predictors) != 2 {
			t.Fatalf("expanded config has %d predictors, want 2", len(e.Predictors))
		}
		seen[[2]string{e.Predictors[0], e.Predictors[1]}] = true
	}
	if len(seen) != 3 {
		t.Errorf("ExpandTemplates produced %d distinct pairs, want 3", len(seen))
	}
}

func TestExpandTemplatesPassesThroughNonTemplate(t *testing.T) {
	c := &Config{Predictors: []string{"llvm-mca", "uica"}}
	expanded, err := c.ExpandTemplates([]string{"llvm-mca", "uica", "iaca"})
	if err != nil {
		t.Fatalf("ExpandTemplates: %v", err)
	}
	if len(expanded) != 1 || expanded[0] != c {
		t.Errorf("ExpandTemplates(non-template) = %v, want [c] unchanged", expanded)
	}
}

func TestExpandTemplatesRequiresAtLeastTwoPredictors(t *testing.T) {
	c := &Config{Predictors: []string{TemplateAllPredictorPairs}}
	if _, err := c.ExpandTemplates([]string{"llvm-mca"}); err == nil {
		t.Errorf("ExpandTemplates with fewer than 2 predictors did not error")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := &Config{Predictors: []string{"a", "b"}}
	cp := c.Clone()
	cp.Predictors[0] = "changed"
	if c.Predictors[0] != "a" {
		t.Errorf("Clone shares backing array with the original: mutating the clone changed %v", c.Predictors)
	}
}
