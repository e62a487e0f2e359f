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
	"github.com/huandu/go-clone"
	"github.com/tidwall/btree"

	"github.com/daviszhen/cascades/pkg/util"
)

// PhysNodeInfo is one concrete implementation with its costs.
type PhysNodeInfo struct {
	Node *Expr

	// cost of the entire subtree
	Cost CostType
	// operator cost without the subtree
	LocalCost CostType
	// cardinality adjusted for physical properties, for display
	AdjustedCE float64

	Rule PhysicalRewriteType
}

// PhysOptimizationResult is one optimization attempt of a group under a
// specific requested property set. The property set never changes after
// creation; the cost limit may only be raised.
type PhysOptimizationResult struct {
	Index     int
	PhysProps PhysProps

	CostLimit CostType

	// set once optimization under PhysProps succeeded
	NodeInfo         *PhysNodeInfo
	RejectedNodeInfo []*PhysNodeInfo

	// index of the last logical node in the group we implemented
	LastImplementedNodePos int

	Queue *PhysRewriteQueue
}

func newPhysOptimizationResult(index int, props PhysProps, costLimit CostType) *PhysOptimizationResult {
	return &PhysOptimizationResult{
		Index:     index,
		PhysProps: props,
		CostLimit: costLimit,
		Queue:     NewPhysRewriteQueue(),
	}
}

func (res *PhysOptimizationResult) IsOptimized() bool {
	return res.NodeInfo != nil
}

// RaiseCostLimit widens the search. Lowering is a caller bug.
func (res *PhysOptimizationResult) RaiseCostLimit(costLimit CostType) {
	util.AssertFunc(!costLimit.Less(res.CostLimit))
	res.CostLimit = costLimit
}

// AcceptPlan admits a candidate into the winner's circle. A candidate
// above the cost limit, or not strictly cheaper than the incumbent, goes
// to the rejected list. Equal cost keeps the incumbent.
func (res *PhysOptimizationResult) AcceptPlan(info *PhysNodeInfo) bool {
	util.AssertFunc(info != nil && info.Node != nil)
	if res.CostLimit.Less(info.Cost) {
		res.RejectedNodeInfo = append(res.RejectedNodeInfo, info)
		return false
	}
	if res.NodeInfo != nil && !info.Cost.Less(res.NodeInfo.Cost) {
		res.RejectedNodeInfo = append(res.RejectedNodeInfo, info)
		return false
	}
	if res.NodeInfo != nil {
		res.RejectedNodeInfo = append(res.RejectedNodeInfo, res.NodeInfo)
	}
	res.NodeInfo = info
	return true
}

// ExtractPlan returns a detached copy of the winning plan.
func (res *PhysOptimizationResult) ExtractPlan() *Expr {
	util.AssertFunc(res.IsOptimized())
	return clone.Clone(res.NodeInfo.Node).(*Expr)
}

// PhysNodes is a group's winner's circle: optimization results addressed
// by index and found through a property-set fingerprint index.
type PhysNodes struct {
	results []*PhysOptimizationResult

	propsToResult btree.Map[uint64, []int]
}

func NewPhysNodes() *PhysNodes {
	return &PhysNodes{}
}

// AddOptimizationResult returns the existing result for a structurally
// equal property set, or creates one with a fresh index. The property set
// is copied so later caller mutation cannot corrupt the key.
func (pn *PhysNodes) AddOptimizationResult(props PhysProps, costLimit CostType) (*PhysOptimizationResult, bool) {
	if pos, has := pn.Find(props); has {
		return pn.results[pos], false
	}
	owned := clone.Clone(props).(PhysProps)
	res := newPhysOptimizationResult(len(pn.results), owned, costLimit)
	pn.results = append(pn.results, res)
	fp := owned.Fingerprint()
	positions, _ := pn.propsToResult.Get(fp)
	pn.propsToResult.Set(fp, append(positions, res.Index))
	return res, true
}

func (pn *PhysNodes) Find(props PhysProps) (int, bool) {
	positions, _ := pn.propsToResult.Get(props.Fingerprint())
	for _, pos := range positions {
		if pn.results[pos].PhysProps.Equal(props) {
			return pos, true
		}
	}
	return 0, false
}

func (pn *PhysNodes) At(index int) *PhysOptimizationResult {
	util.AssertFunc(index >= 0 && index < len(pn.results))
	return pn.results[index]
}

func (pn *PhysNodes) Size() int {
	return len(pn.results)
}

func (pn *PhysNodes) Results() []*PhysOptimizationResult {
	return pn.results
}
