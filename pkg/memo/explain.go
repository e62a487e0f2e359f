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

package memo

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// Explain dumps every group with its logical alternatives, provenance
// and physical winners. Diagnostics only.
func (m *Memo) Explain() string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("memo (%d groups)", len(m.groups)))
	for _, g := range m.groups {
		branch := tree.AddMetaBranch(fmt.Sprintf("G%d", g.Id()), g.Props().String())
		for i, node := range g.LogicalNodes().Nodes() {
			branch.AddMetaNode(
				fmt.Sprintf("logical %d (%s)", i, g.NodeRule(i)),
				node.String())
		}
		for _, res := range g.PhysicalNodes().Results() {
			resBranch := branch.AddMetaBranch(
				fmt.Sprintf("phys %d", res.Index),
				fmt.Sprintf("%s limit=%s", res.PhysProps, res.CostLimit))
			if res.IsOptimized() {
				resBranch.AddMetaNode(
					fmt.Sprintf("winner (%s) cost=%s local=%s ce=%.2f",
						res.NodeInfo.Rule, res.NodeInfo.Cost,
						res.NodeInfo.LocalCost, res.NodeInfo.AdjustedCE),
					res.NodeInfo.Node.String())
			}
			for i, rejected := range res.RejectedNodeInfo {
				resBranch.AddMetaNode(
					fmt.Sprintf("rejected %d (%s) cost=%s", i, rejected.Rule, rejected.Cost),
					rejected.Node.String())
			}
		}
	}
	return tree.String()
}

func (m *Memo) String() string {
	return m.Explain()
}
