package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

// registryEntry is one predmanager.registry_path JSON array element: how to
// invoke one external predictor as a subprocess. The predictor is called as
// `command args...` with the block's asm on stdin and is expected to print
// a single floating point throughput-per-iteration estimate to stdout.
type registryEntry struct {
	Key                   string   `json:"key"`
	Command               string   `json:"command"`
	Args                  []string `json:"args"`
	UnsupportedSchemeFile string   `json:"unsupported_scheme_file,omitempty"`
}

// ExecPredictor runs an external throughput predictor as a subprocess per
// call, the black-box shape every real AnICA predictor plugin takes.
type ExecPredictor struct {
	key                  string
	command              string
	args                 []string
	unsupportedSchemeIDs []string
}

var _ Predictor = (*ExecPredictor)(nil)

func (p *ExecPredictor) Key() string                    { return p.key }
func (p *ExecPredictor) UnsupportedSchemeIDs() []string { return p.unsupportedSchemeIDs }

// Predict writes bb's assembly to the subprocess's stdin and parses its
// stdout as a single float64.
func (p *ExecPredictor) Predict(ctx context.Context, bb *iwho.BasicBlock) (float64, error) {
	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = strings.NewReader(bb.Asm() + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, errs.WrapPredictorError(err, "exec predictor %q: %s", p.key, strings.TrimSpace(stderr.String()))
	}
	tp, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, errs.WrapPredictorError(err, "exec predictor %q: malformed output %q", p.key, stdout.String())
	}
	return tp, nil
}

// LoadRegistry reads predmanager.registry_path: a JSON array of
// registryEntry objects, one per predictor, and registers an ExecPredictor
// for each into m.
func LoadRegistry(m *Manager, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.WrapConfigError(err, "predictor: reading registry %s", path)
	}
	var entries []registryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return errs.WrapConfigError(err, "predictor: parsing registry %s", path)
	}
	for _, e := range entries {
		if e.Key == "" || e.Command == "" {
			return errs.ConfigError("predictor: registry entry missing key or command")
		}
		p := &ExecPredictor{key: e.Key, command: e.Command, args: e.Args}
		if e.UnsupportedSchemeFile != "" {
			ids, err := readLines(e.UnsupportedSchemeFile)
			if err != nil {
				return err
			}
			p.unsupportedSchemeIDs = ids
		}
		m.Register(p)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapConfigError(err, "predictor: reading filter file %s", path)
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
