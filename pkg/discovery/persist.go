package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cdl-saarland/AnICA/pkg/config"
	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/witness"
)

// discoveryFile is the persisted discoveries/discovery_<id>.json document
// (§6.4).
type discoveryFile struct {
	ID      string          `json:"id"`
	AB      json.RawMessage `json:"abstract_block"`
	SeedAsm string          `json:"seed_asm"`
}

// NewOutDir allocates campaign_<idx>_<timestamp>/ under root and creates its
// filter_files/, discoveries/ and witnesses/ subdirectories, returning the
// campaign directory path. idx lets several campaigns (e.g. from a
// TEMPLATE:all_predictor_pairs expansion) share one root without clobbering
// each other.
func NewOutDir(root string, idx int, now time.Time) (string, error) {
	dir := filepath.Join(root, fmt.Sprintf("campaign_%d_%s", idx, now.UTC().Format("20060102T150405Z")))
	for _, sub := range []string{"", "filter_files", "discoveries", "witnesses"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", errs.WrapDiscoveryError(err, "discovery: creating campaign directory")
		}
	}
	return dir, nil
}

// AttachFileLog points c.Log at log.txt inside dir, in addition to whatever
// output the logger already has, and leaves the returned file open for the
// caller to Close once the campaign finishes.
func (c *Campaign) AttachFileLog(dir string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, "log.txt"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errs.WrapDiscoveryError(err, "discovery: opening log.txt")
	}
	c.Log.SetOutput(f)
	c.Log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return f, nil
}

// PersistFilterFiles copies every blacklist/whitelist filter's file_path into
// dir's filter_files/ subdirectory and returns a clone of cfg whose filter
// paths point at the copies, so campaign_config.json keeps a reproducible
// record of exactly which instructions were filtered even if the original
// file is later edited or moved (§6.4). Filters with no file_path (no_cf,
// with_measurements) are left untouched.
func PersistFilterFiles(dir string, cfg *config.Config) (*config.Config, error) {
	resolved := cfg.Clone()
	n := 0
	for i, f := range resolved.IWHO.Filters {
		if (f.Kind != "blacklist" && f.Kind != "whitelist") || f.FilePath == "" {
			continue
		}
		data, err := os.ReadFile(f.FilePath)
		if err != nil {
			return nil, errs.WrapDiscoveryError(err, "discovery: reading filter file %s", f.FilePath)
		}
		n++
		dst := filepath.Join(dir, "filter_files", fmt.Sprintf("filter_%02d_%s", n, filepath.Base(f.FilePath)))
		if err := writeFile(dst, data); err != nil {
			return nil, err
		}
		resolved.IWHO.Filters[i].FilePath = dst
	}
	return resolved, nil
}

// WriteCampaignConfig persists campaign_config.json, the resolved config
// this campaign is running under.
func WriteCampaignConfig(dir string, cfg any) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errs.WrapDiscoveryError(err, "discovery: marshaling campaign_config.json")
	}
	return writeFile(filepath.Join(dir, "campaign_config.json"), data)
}

// PersistDiscovery writes discoveries/discovery_<id>.json and the matching
// witnesses/witness_<id>.json for one accepted discovery.
func PersistDiscovery(dir string, d *Discovery) error {
	abJSON, err := json.Marshal(d.AB)
	if err != nil {
		return errs.WrapDiscoveryError(err, "discovery: marshaling abstract block for %s", d.ID)
	}
	df := discoveryFile{ID: d.ID, AB: abJSON, SeedAsm: d.SeedAsm}
	data, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return errs.WrapDiscoveryError(err, "discovery: marshaling discovery %s", d.ID)
	}
	if err := writeFile(filepath.Join(dir, "discoveries", "discovery_"+d.ID+".json"), data); err != nil {
		return err
	}

	wf := witness.File{DiscoveryID: d.ID, SeedAsm: d.SeedAsm, Trace: d.Trace.Entries}
	wdata, err := wf.Marshal()
	if err != nil {
		return errs.WrapDiscoveryError(err, "discovery: marshaling witness %s", d.ID)
	}
	return writeFile(filepath.Join(dir, "witnesses", "witness_"+d.ID+".json"), wdata)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.WrapDiscoveryError(err, "discovery: writing %s", path)
	}
	return nil
}
