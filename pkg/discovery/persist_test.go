package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cdl-saarland/AnICA/pkg/config"
)

// A blacklist filter's file is copied into filter_files/filter_01_<name>
// byte-for-byte, and the resolved config's filter path is rewritten to
// point at the copy rather than the original (scenario 5).
func TestPersistFilterFilesRewritesPathAndCopiesContent(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "filter_files"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	blPath := filepath.Join(dir, "bl.csv")
	content := []byte("ADD_R64_R64\nSUB_R64_R64\n")
	if err := os.WriteFile(blPath, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := &config.Config{IWHO: config.IWHOConfig{
		Filters: []config.FilterSpec{{Kind: "blacklist", FilePath: blPath}},
	}}

	resolved, err := PersistFilterFiles(dir, cfg)
	if err != nil {
		t.Fatalf("PersistFilterFiles: %v", err)
	}

	want := filepath.Join(dir, "filter_files", "filter_01_bl.csv")
	got := resolved.IWHO.Filters[0].FilePath
	if got != want {
		t.Errorf("PersistFilterFiles() rewrote path to %q, want %q", got, want)
	}

	gotContent, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", got, err)
	}
	if string(gotContent) != string(content) {
		t.Errorf("copied filter file content = %q, want %q (byte-for-byte)", gotContent, content)
	}

	if cfg.IWHO.Filters[0].FilePath != blPath {
		t.Errorf("PersistFilterFiles mutated the input config's FilePath, want it left untouched")
	}
}

// Filters without a file_path (no_cf, with_measurements) are left alone.
func TestPersistFilterFilesSkipsFiltersWithoutAPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "filter_files"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	cfg := &config.Config{IWHO: config.IWHOConfig{
		Filters: []config.FilterSpec{{Kind: "no_cf"}},
	}}

	resolved, err := PersistFilterFiles(dir, cfg)
	if err != nil {
		t.Fatalf("PersistFilterFiles: %v", err)
	}
	if resolved.IWHO.Filters[0].FilePath != "" {
		t.Errorf("PersistFilterFiles() set a path for a no_cf filter: %q", resolved.IWHO.Filters[0].FilePath)
	}
}
