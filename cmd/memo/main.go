// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/daviszhen/cascades/pkg/memo"
	"github.com/daviszhen/cascades/pkg/util"
)

var runCfg = &util.Config{}

var defCfgFilePaths = []string{".", "etc"}
var cfgFileName = "memo.toml"

func init() {
	cobra.OnInitialize(loadConfig)
	RootCmd.AddCommand(demoCmd)
}

func loadConfig() {
	for _, dirPath := range defCfgFilePaths {
		fpath := filepath.Join(dirPath, cfgFileName)
		if util.FileIsValid(fpath) {
			_, err := toml.DecodeFile(fpath, runCfg)
			if err != nil {
				util.Error("load config file failed",
					zap.String("fpath", fpath),
					zap.Error(err))
				continue
			}
			break
		}
	}
	applyDefaults()
	initSearchOptions()
}

func applyDefaults() {
	if runCfg.Search.CostLimit == 0 {
		runCfg.Search.CostLimit = 1e12
	}
	if runCfg.Search.DefaultSelectivity == 0 {
		runCfg.Search.DefaultSelectivity = 0.2
	}
	if runCfg.Search.DefaultScanRows == 0 {
		runCfg.Search.DefaultScanRows = 1000
	}
}

func initSearchOptions() {
	if viper.IsSet("search.costLimit") {
		runCfg.Search.CostLimit = viper.GetFloat64("search.costLimit")
	}
	if viper.IsSet("debug.traceIntegrate") {
		runCfg.Debug.TraceIntegrate = viper.GetBool("debug.traceIntegrate")
	}
	if viper.IsSet("debug.printMemo") {
		runCfg.Debug.PrintMemo = viper.GetBool("debug.printMemo")
	}
	if viper.IsSet("debug.printStats") {
		runCfg.Debug.PrintStats = viper.GetBool("debug.printStats")
	}
}

var info = "cascades memo demo"
var RootCmd = &cobra.Command{
	Use:          "memo",
	Short:        info,
	Long:         info,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("use memo --help or -h")
	},
}

var demoInfo = "integrate a sample plan and search for the best physical plan"
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: demoInfo,
	Long:  demoInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(runCfg)
	},
}

func sampleMetadata() *memo.Metadata {
	md := memo.NewMetadata()
	md.AddTable(&memo.TableMeta{
		Name:     "orders",
		Columns:  []string{"o_orderkey", "o_custkey", "o_totalprice"},
		RowCount: 150000,
		Indexes:  map[string][]string{"orders_pk": {"o_orderkey"}},
	})
	md.AddTable(&memo.TableMeta{
		Name:     "customer",
		Columns:  []string{"c_custkey", "c_name"},
		RowCount: 15000,
		Indexes:  map[string][]string{"customer_pk": {"c_custkey"}},
	})
	return md
}

func samplePlan() *memo.Expr {
	scanOrders := &memo.Expr{
		Op:    memo.OpScan,
		Table: "orders",
		Cols:  []string{"o_orderkey", "o_custkey", "o_totalprice"},
	}
	scanCustomer := &memo.Expr{
		Op:    memo.OpScan,
		Table: "customer",
		Cols:  []string{"c_custkey", "c_name"},
	}
	filter := &memo.Expr{
		Op:       memo.OpFilter,
		Filters:  []string{"o_totalprice > 100"},
		Children: []*memo.Expr{scanOrders},
	}
	join := &memo.Expr{
		Op:       memo.OpJoin,
		Filters:  []string{"o_custkey = c_custkey"},
		Children: []*memo.Expr{filter, scanCustomer},
	}
	return join
}

func runDemo(cfg *util.Config) error {
	ce := memo.NewHeuristicCE()
	ce.Selectivity = cfg.Search.DefaultSelectivity
	ce.ScanRows = cfg.Search.DefaultScanRows
	ctx := memo.NewContext(
		sampleMetadata(),
		&memo.DebugInfo{TraceEnabled: cfg.Debug.TraceIntegrate},
		memo.DefaultLogicalProps{},
		ce)

	m := memo.NewMemo()
	driver := NewDriver(m)
	driver.Lock()
	defer driver.Unlock()

	inserted := make(memo.NodeIdSet)
	rootGroup := m.Integrate(ctx, samplePlan(), nil, inserted,
		memo.LogicalRewriteRoot, false)
	util.Info("integrated sample plan",
		zap.Int32("rootGroup", int32(rootGroup)),
		zap.Int("insertedNodes", inserted.Size()),
		zap.Int("groups", m.GetGroupCount()))

	props := memo.MakePhysProps(
		memo.OrderProp(memo.OrderSpec{Col: "o_orderkey"}))
	res := driver.OptimizeGroup(ctx, rootGroup, props,
		memo.NewCost(cfg.Search.CostLimit))
	if res == nil || !res.IsOptimized() {
		util.Error("no plan within cost limit",
			zap.Float64("costLimit", cfg.Search.CostLimit))
		os.Exit(1)
	}
	plan := res.ExtractPlan()
	util.Info("found winner",
		zap.String("plan", plan.String()),
		zap.String("cost", res.NodeInfo.Cost.String()))

	if cfg.Debug.PrintMemo {
		fmt.Println(m.Explain())
	}
	if cfg.Debug.PrintStats {
		stats := m.GetStats()
		fmt.Printf("integrations=%d explorations=%d memoChecks=%d\n",
			stats.NumIntegrations,
			stats.PhysPlanExplorationCount,
			stats.PhysMemoCheckCount)
	}
	return nil
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
