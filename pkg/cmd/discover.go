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
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cdl-saarland/AnICA/pkg/config"
	"github.com/cdl-saarland/AnICA/pkg/discovery"
	"github.com/cdl-saarland/AnICA/pkg/generalizer"
	"github.com/cdl-saarland/AnICA/pkg/interestingness"
	"github.com/cdl-saarland/AnICA/pkg/util"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <outdir>",
	Short: "Run a discovery campaign: repeatedly sample, generalize and record interesting blocks.",
	Args:  cobra.ExactArgs(1),
	Run:   runDiscover,
}

func init() {
	discoverCmd.Flags().String("config", "", "path to the campaign configuration file")
	discoverCmd.Flags().Bool("check-config", false, "validate the configuration and exit without running")
	discoverCmd.Flags().Bool("loop", false, "keep launching new campaigns until interrupted")
	discoverCmd.Flags().Bool("split-configs", false, "run one campaign per config produced by template expansion, instead of the first only")
	discoverCmd.Flags().Uint64("seed", 0, "seed for the campaign's random generator")
	discoverCmd.MarkFlagRequired("config")
}

func runDiscover(cmd *cobra.Command, args []string) {
	outRoot := args[0]
	cfgPath := getStringFlag(cmd, "config")
	checkOnly := getFlag(cmd, "check-config")
	loop := getFlag(cmd, "loop")
	splitConfigs := getFlag(cmd, "split-configs")
	seed := getUint64Flag(cmd, "seed")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fail(err)
	}
	if checkOnly {
		fmt.Println("config OK")
		return
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

	allKeys, err := predMgr.ResolveKeyPatterns([]string{".*"})
	if err != nil {
		fail(err)
	}
	configs, err := cfg.ExpandTemplates(allKeys)
	if err != nil {
		fail(err)
	}
	if !splitConfigs && len(configs) > 1 {
		configs = configs[:1]
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rng := util.NewRng(seed)

	runOne := func(idx int, c *config.Config) error {
		keys, err := predMgr.ResolveKeyPatterns(c.Predictors)
		if err != nil {
			return err
		}
		gen := &generalizer.Generalizer{
			Ctx:           ctx,
			Predictors:    predMgr,
			PredictorKeys: keys,
			Interesting: interestingness.Config{
				MinInterestingness:     c.InterestingnessMetric.MinInterestingness,
				MostlyInterestingRatio: c.InterestingnessMetric.MostlyInterestingRatio,
				InvertInterestingness:  c.InterestingnessMetric.InvertInterestingness,
			},
			BatchSize: c.Discovery.GeneralizationBatchSize,
		}
		strat := strategyFromConfig(c.Discovery.GeneralizationStrategy)

		dir, err := discovery.NewOutDir(outRoot, idx, time.Now())
		if err != nil {
			return err
		}
		campaign := discovery.NewCampaign(c, featureMgr, ctx, gen, strat)
		campaign.OutDir = dir
		logFile, err := campaign.AttachFileLog(dir)
		if err != nil {
			return err
		}
		defer logFile.Close()

		resolvedCfg, err := discovery.PersistFilterFiles(dir, c)
		if err != nil {
			return err
		}
		if err := discovery.WriteCampaignConfig(dir, resolvedCfg); err != nil {
			return err
		}
		campaign.Log.WithField("predictors", keys).Info("discovery: starting campaign")
		return campaign.Run(sigCtx, rng.Derive(uint64(idx)))
	}

	for idx, c := range configs {
		if err := runOne(idx, c); err != nil {
			log.WithError(err).Error("discover: campaign failed")
			fail(err)
		}
	}
	for loop {
		select {
		case <-sigCtx.Done():
			return
		default:
		}
		for idx, c := range configs {
			if err := runOne(len(configs)+idx, c); err != nil {
				log.WithError(err).Error("discover: campaign failed")
				fail(err)
			}
		}
	}
}

func strategyFromConfig(entries []config.StrategyEntry) generalizer.Strategy {
	if len(entries) == 0 {
		return generalizer.Random(1)
	}
	e := entries[0]
	switch e.Name {
	case "max_benefit":
		return generalizer.MaxBenefit()
	default:
		n := e.N
		if n < 1 {
			n = 1
		}
		return generalizer.Random(n)
	}
}
