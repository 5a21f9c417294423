// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/config"
	"github.com/cdl-saarland/AnICA/pkg/generalizer"
	"github.com/cdl-saarland/AnICA/pkg/interestingness"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
	"github.com/cdl-saarland/AnICA/pkg/util"
	"github.com/cdl-saarland/AnICA/pkg/witness"
)

var generalizeCmd = &cobra.Command{
	Use:   "generalize <asm_file> <predictor_id>...",
	Short: "Generalize a single seed basic block against a fixed set of predictors.",
	Args:  cobra.MinimumNArgs(2),
	Run:   runGeneralize,
}

func init() {
	generalizeCmd.Flags().String("config", "", "path to the configuration file")
	generalizeCmd.Flags().Uint64("seed", 0, "seed for the random generator")
	generalizeCmd.Flags().Bool("no-minimize", false, "skip the minimization pass before generalizing")
	generalizeCmd.Flags().Bool("no-restrict-to-supported", false, "do not drop predictor-unsupported schemes from the feasible universe")
	generalizeCmd.Flags().Bool("interactive", false, "prompt for each expansion step at the terminal instead of searching automatically")
	generalizeCmd.Flags().String("output", "", "directory to write start_bb.s, minimized_bb.s, discovery.json and witness.json into")
	generalizeCmd.MarkFlagRequired("config")
}

func runGeneralize(cmd *cobra.Command, args []string) {
	asmFile, predictorIDs := args[0], args[1:]
	cfgPath := getStringFlag(cmd, "config")
	seed := getUint64Flag(cmd, "seed")
	noMinimize := getFlag(cmd, "no-minimize")
	interactive := getFlag(cmd, "interactive")
	outDir := getStringFlag(cmd, "output")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fail(err)
	}
	ctx, err := cfg.BuildContext()
	if err != nil {
		fail(err)
	}
	featureMgr, err := cfg.BuildFeatureManager(ctx)
	if err != nil {
		fail(err)
	}
	predMgr, err := cfg.BuildPredictorManager(0)
	if err != nil {
		fail(err)
	}
	keys, err := predMgr.ResolveKeyPatterns(predictorIDs)
	if err != nil {
		fail(err)
	}

	asmData, err := os.ReadFile(asmFile)
	if err != nil {
		fail(err)
	}
	seedBB, err := iwho.ParseAsm(ctx, string(asmData))
	if err != nil {
		fail(err)
	}

	gen := &generalizer.Generalizer{
		Ctx:           ctx,
		Predictors:    predMgr,
		PredictorKeys: keys,
		Interesting: interestingness.Config{
			MinInterestingness:     cfg.InterestingnessMetric.MinInterestingness,
			MostlyInterestingRatio: cfg.InterestingnessMetric.MostlyInterestingRatio,
			InvertInterestingness:  cfg.InterestingnessMetric.InvertInterestingness,
		},
		BatchSize: cfg.Discovery.GeneralizationBatchSize,
	}
	if gen.BatchSize <= 0 {
		gen.BatchSize = 16
	}

	rng := util.NewRng(seed)
	runCtx := context.Background()

	workingBB := seedBB
	if !noMinimize {
		workingBB, err = gen.Minimize(runCtx, featureMgr, seedBB, rng)
		if err != nil {
			fail(err)
		}
	}

	seedAB, err := block.FromConcrete(featureMgr, ctx, workingBB)
	if err != nil {
		fail(err)
	}

	strat := strategyFromConfig(cfg.Discovery.GeneralizationStrategy)
	if interactive {
		strat = generalizer.Interactive(terminalPrompt())
	}

	result, err := gen.Run(runCtx, seedAB, strat, rng)
	if err != nil {
		fail(err)
	}

	abJSON, err := json.MarshalIndent(result.AB, "", "  ")
	if err != nil {
		fail(err)
	}
	fmt.Println(string(abJSON))

	if outDir == "" {
		return
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fail(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "start_bb.s"), []byte(seedBB.Asm()+"\n"), 0o644); err != nil {
		fail(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "minimized_bb.s"), []byte(workingBB.Asm()+"\n"), 0o644); err != nil {
		fail(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "discovery.json"), abJSON, 0o644); err != nil {
		fail(err)
	}
	wf := witness.File{SeedAsm: seedBB.Asm(), Trace: result.Trace.Entries}
	wJSON, err := wf.Marshal()
	if err != nil {
		fail(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "witness.json"), wJSON, 0o644); err != nil {
		fail(err)
	}
}

// terminalPrompt builds an interactive callback that lists the scored
// candidate expansions and reads a choice from the terminal, in the manner
// of a cursor-driven picker degraded to a plain numbered prompt when stdin
// isn't a terminal.
func terminalPrompt() generalizer.InteractiveCallback {
	reader := bufio.NewReader(os.Stdin)
	return func(ab *block.AbstractBlock, candidates []generalizer.ScoredExpansion) (generalizer.InteractiveDecision, error) {
		if len(candidates) == 0 {
			return generalizer.InteractiveDecision{Terminate: true}, nil
		}
		isTTY := term.IsTerminal(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr, "candidate expansions:")
		for i, c := range candidates {
			fmt.Fprintf(os.Stderr, "  [%d] %s (benefit %d)\n", i, c.Expansion.Coordinate(ab), c.Benefit)
		}
		fmt.Fprintln(os.Stderr, "  [q] stop here")
		if isTTY {
			fmt.Fprint(os.Stderr, "choice: ")
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return generalizer.InteractiveDecision{Terminate: true}, nil
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "q" || line == "" {
			return generalizer.InteractiveDecision{Terminate: true}, nil
		}
		idx, err := strconv.Atoi(line)
		if err != nil || idx < 0 || idx >= len(candidates) {
			return generalizer.InteractiveDecision{Terminate: true}, nil
		}
		return generalizer.InteractiveDecision{Expansion: candidates[idx].Expansion}, nil
	}
}
