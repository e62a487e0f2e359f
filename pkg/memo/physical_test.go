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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func physInfo(cost float64, rule PhysicalRewriteType) *PhysNodeInfo {
	return &PhysNodeInfo{
		Node: &Expr{Op: OpSeqScan, Table: "t1"},
		Cost: NewCost(cost),
		Rule: rule,
	}
}

func TestAddOptimizationResultDedup(t *testing.T) {
	pn := NewPhysNodes()

	p1 := MakePhysProps(OrderProp(OrderSpec{Col: "a"}))
	res1, created := pn.AddOptimizationResult(p1, NewCost(100))
	assert.True(t, created)
	assert.Equal(t, 0, res1.Index)

	// same property values: same result, not a new one
	p1Again := MakePhysProps(OrderProp(OrderSpec{Col: "a"}))
	res2, created := pn.AddOptimizationResult(p1Again, NewCost(100))
	assert.False(t, created)
	assert.Same(t, res1, res2)

	// different value: distinct result
	p2 := MakePhysProps(OrderProp(OrderSpec{Col: "a", Desc: true}))
	res3, created := pn.AddOptimizationResult(p2, NewCost(100))
	assert.True(t, created)
	assert.Equal(t, 1, res3.Index)
	assert.Equal(t, 2, pn.Size())
}

func TestPhysNodesFindAndAt(t *testing.T) {
	pn := NewPhysNodes()
	props := MakePhysProps(LimitSkipProp(10, 0))
	res, _ := pn.AddOptimizationResult(props, NewCost(100))

	pos, ok := pn.Find(MakePhysProps(LimitSkipProp(10, 0)))
	assert.True(t, ok)
	assert.Equal(t, res.Index, pos)

	_, ok = pn.Find(MakePhysProps(LimitSkipProp(20, 0)))
	assert.False(t, ok)

	assert.Same(t, res, pn.At(res.Index))
	assert.Panics(t, func() {
		pn.At(5)
	})
}

func TestAddOptimizationResultCopiesProps(t *testing.T) {
	pn := NewPhysNodes()
	prop := OrderProp(OrderSpec{Col: "a"})
	props := MakePhysProps(prop)
	res, _ := pn.AddOptimizationResult(props, NewCost(100))

	// mutating the caller's set must not corrupt the stored key
	prop.Order[0].Col = "b"
	assert.Equal(t, "a", res.PhysProps.Get(PropOrder).Order[0].Col)
	_, ok := pn.Find(MakePhysProps(OrderProp(OrderSpec{Col: "a"})))
	assert.True(t, ok)
}

func TestAcceptPlanWinnerMonotonicity(t *testing.T) {
	res := newPhysOptimizationResult(0, MakePhysProps(), NewCost(100))
	assert.False(t, res.IsOptimized())

	// first admissible plan wins
	assert.True(t, res.AcceptPlan(physInfo(50, PhysicalRewriteSeqScan)))
	require.True(t, res.IsOptimized())
	assert.Equal(t, NewCost(50), res.NodeInfo.Cost)

	// more expensive plan is rejected
	assert.False(t, res.AcceptPlan(physInfo(70, PhysicalRewriteIndexScan)))
	assert.Equal(t, NewCost(50), res.NodeInfo.Cost)
	assert.Len(t, res.RejectedNodeInfo, 1)

	// equal cost keeps the incumbent
	assert.False(t, res.AcceptPlan(physInfo(50, PhysicalRewriteIndexScan)))
	assert.Equal(t, PhysicalRewriteSeqScan, res.NodeInfo.Rule)

	// cheaper plan replaces it, old winner moves to rejected
	assert.True(t, res.AcceptPlan(physInfo(30, PhysicalRewriteIndexScan)))
	assert.Equal(t, NewCost(30), res.NodeInfo.Cost)
	assert.Len(t, res.RejectedNodeInfo, 3)
}

func TestAcceptPlanCostLimit(t *testing.T) {
	res := newPhysOptimizationResult(0, MakePhysProps(), NewCost(100))

	// above the limit: no winner
	assert.False(t, res.AcceptPlan(physInfo(150, PhysicalRewriteSeqScan)))
	assert.False(t, res.IsOptimized())
	assert.Len(t, res.RejectedNodeInfo, 1)

	// raising the limit admits it on retry
	res.RaiseCostLimit(NewCost(200))
	assert.True(t, res.AcceptPlan(physInfo(150, PhysicalRewriteSeqScan)))
	assert.True(t, res.IsOptimized())
}

func TestRaiseCostLimitNeverLowers(t *testing.T) {
	res := newPhysOptimizationResult(0, MakePhysProps(), NewCost(100))
	res.RaiseCostLimit(NewCost(100))
	res.RaiseCostLimit(NewCost(300))
	assert.Equal(t, NewCost(300), res.CostLimit)
	assert.Panics(t, func() {
		res.RaiseCostLimit(NewCost(200))
	})
}

func TestExtractPlanDetached(t *testing.T) {
	res := newPhysOptimizationResult(0, MakePhysProps(), NewCost(100))
	res.AcceptPlan(physInfo(50, PhysicalRewriteSeqScan))

	plan := res.ExtractPlan()
	plan.Table = "changed"
	assert.Equal(t, "t1", res.NodeInfo.Node.Table)
}

func TestExtractPlanWithoutWinner(t *testing.T) {
	res := newPhysOptimizationResult(0, MakePhysProps(), NewCost(100))
	assert.Panics(t, func() {
		res.ExtractPlan()
	})
}
