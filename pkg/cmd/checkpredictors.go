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
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/config"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
	"github.com/cdl-saarland/AnICA/pkg/sampler"
	"github.com/cdl-saarland/AnICA/pkg/util"
)

var checkPredictorsCmd = &cobra.Command{
	Use:   "check-predictors [predictor_id...]",
	Short: "Sample a batch of concrete blocks and report which schemes each predictor fails on.",
	Run:   runCheckPredictors,
}

func init() {
	checkPredictorsCmd.Flags().String("config", "", "path to the configuration file")
	checkPredictorsCmd.Flags().Bool("write-filter", false, "write a predmanager filter file per predictor listing the scheme IDs it failed on")
	checkPredictorsCmd.Flags().Int("batch-size", 64, "number of blocks to sample per scheme under test")
	checkPredictorsCmd.MarkFlagRequired("config")
}

func runCheckPredictors(cmd *cobra.Command, args []string) {
	cfgPath := getStringFlag(cmd, "config")
	writeFilter := getFlag(cmd, "write-filter")
	batchSize := getIntFlag(cmd, "batch-size")

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
	keys := args
	if len(keys) == 0 {
		keys, err = predMgr.ResolveKeyPatterns([]string{".*"})
		if err != nil {
			fail(err)
		}
	}

	rng := util.NewRng(0)
	runCtx := context.Background()
	failuresByKey := map[string]map[string]bool{}
	for _, k := range keys {
		failuresByKey[k] = map[string]bool{}
	}

	oneSlot := block.MakeTop(featureMgr, 1)
	for _, scheme := range ctx.FilteredSchemes() {
		samp := sampler.PrecomputeForSchemes(oneSlot, ctx, [][]*iwho.InsnScheme{{scheme}})
		var batch []*iwho.BasicBlock
		for i := 0; i < batchSize; i++ {
			bb, err := samp.Sample(rng)
			if err != nil {
				continue
			}
			batch = append(batch, bb)
		}
		if len(batch) == 0 {
			continue
		}
		for _, k := range keys {
			results, err := predMgr.Evaluate(runCtx, k, batch)
			if err != nil {
				continue
			}
			for _, r := range results {
				if !r.Ok() {
					failuresByKey[k][scheme.ID] = true
					break
				}
			}
		}
	}

	var sortedKeys []string
	for k := range failuresByKey {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)
	for _, k := range sortedKeys {
		failed := failuresByKey[k]
		fmt.Printf("%s: %d unsupported scheme(s)\n", k, len(failed))
		if writeFilter && len(failed) > 0 {
			if err := writeFilterFile(k, failed); err != nil {
				fail(err)
			}
		}
	}
}

func writeFilterFile(key string, failed map[string]bool) error {
	f, err := os.Create(key + ".filter.txt")
	if err != nil {
		return err
	}
	defer f.Close()
	var ids []string
	for id := range failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintln(f, id)
	}
	return nil
}
