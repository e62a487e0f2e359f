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
	"math"
	"sort"

	"github.com/daviszhen/cascades/pkg/memo"
	"github.com/daviszhen/cascades/pkg/util"
)

// Driver is a minimal property-driven physical rewriter on top of the
// memo. It owns the rule choice and the cost model; the memo only stores
// what it finds.
type Driver struct {
	m    *memo.Memo
	lock *util.ReentryLock
}

func NewDriver(m *memo.Memo) *Driver {
	return &Driver{
		m:    m,
		lock: util.NewReentryLock(),
	}
}

// The memo is not safe for concurrent mutation; one optimization request
// holds the lock end to end.
func (d *Driver) Lock() {
	d.lock.Lock()
}

func (d *Driver) Unlock() {
	d.lock.Unlock()
}

// OptimizeGroup returns the optimization result for the group under the
// requested properties, searching if the winner's circle has no answer
// yet. A result that is still unoptimized means no plan fit the limit.
func (d *Driver) OptimizeGroup(
	ctx *memo.Context,
	gid memo.GroupId,
	props memo.PhysProps,
	costLimit memo.CostType) *memo.PhysOptimizationResult {
	d.m.BumpPhysMemoCheck()
	g := d.m.GetGroup(gid)
	res, created := g.PhysicalNodes().AddOptimizationResult(props, costLimit)
	if !created {
		if res.IsOptimized() {
			return res
		}
		if res.CostLimit.Less(costLimit) {
			// wider budget: revisit every logical alternative
			res.RaiseCostLimit(costLimit)
			res.LastImplementedNodePos = 0
		} else {
			// already searched under an equal-or-looser limit
			return res
		}
	}
	d.m.BumpPhysExploration()

	// one enforcer candidate per optimization attempt, not per alternative
	if res.PhysProps.Has(memo.PropOrder) {
		d.enqueueOrderEnforcer(res, gid)
	}
	nodes := g.LogicalNodes().Nodes()
	for ; res.LastImplementedNodePos < len(nodes); res.LastImplementedNodePos++ {
		d.enqueueImplementations(ctx, res, gid, nodes[res.LastImplementedNodePos])
	}
	for !res.Queue.Empty() {
		d.implement(ctx, gid, res, res.Queue.Pop())
	}
	return res
}

func (d *Driver) enqueueImplementations(
	ctx *memo.Context,
	res *memo.PhysOptimizationResult,
	gid memo.GroupId,
	node *memo.Expr) {
	if res.PhysProps.Has(memo.PropOrder) {
		order := res.PhysProps.Get(memo.PropOrder).Order

		// index scans deliver order for free when the index leads with
		// the requested column
		if node.Op == memo.OpScan {
			if index, has := matchingIndex(ctx, node, order); has {
				idxScan := node.Clone()
				idxScan.Op = memo.OpIndexScan
				idxScan.Index = index
				res.Queue.Push(&memo.PhysRewriteEntry{
					Rule:     memo.PhysicalRewriteIndexScan,
					Priority: 20,
					Node:     idxScan,
				})
			}
		}
		return
	}

	entry := directImplementation(node)
	if entry != nil {
		childProps := make([]memo.PhysProps, len(entry.Node.Children))
		for i := range childProps {
			childProps[i] = memo.MakePhysProps()
		}
		entry.ChildProps = childProps
		res.Queue.Push(entry)
	}
}

// enqueueOrderEnforcer satisfies a requested order with an explicit sort
// over the same group optimized without the order requirement. The
// candidate does not depend on any one logical alternative.
func (d *Driver) enqueueOrderEnforcer(res *memo.PhysOptimizationResult, gid memo.GroupId) {
	relaxed := make([]*memo.PhysProp, 0, len(res.PhysProps))
	for kind := memo.PhysPropKind(0); kind < memo.PropProjections+1; kind++ {
		if kind != memo.PropOrder && res.PhysProps.Has(kind) {
			relaxed = append(relaxed, res.PhysProps.Get(kind))
		}
	}
	enforcer := &memo.Expr{
		Op:       memo.OpSort,
		OrderBy:  res.PhysProps.Get(memo.PropOrder).Order,
		Children: []*memo.Expr{memo.NewGroupRef(gid)},
	}
	res.Queue.Push(&memo.PhysRewriteEntry{
		Rule:       memo.PhysicalRewriteEnforcer,
		Priority:   5,
		Node:       enforcer,
		ChildProps: []memo.PhysProps{memo.MakePhysProps(relaxed...)},
	})
}

func directImplementation(node *memo.Expr) *memo.PhysRewriteEntry {
	impl := node.Clone()
	switch node.Op {
	case memo.OpScan:
		impl.Op = memo.OpSeqScan
		return &memo.PhysRewriteEntry{
			Rule: memo.PhysicalRewriteSeqScan, Priority: 10, Node: impl}
	case memo.OpFilter:
		impl.Op = memo.OpPhysFilter
		return &memo.PhysRewriteEntry{
			Rule: memo.PhysicalRewriteFilter, Priority: 10, Node: impl}
	case memo.OpProject:
		impl.Op = memo.OpPhysProject
		return &memo.PhysRewriteEntry{
			Rule: memo.PhysicalRewriteProject, Priority: 10, Node: impl}
	case memo.OpLimit:
		impl.Op = memo.OpPhysLimit
		return &memo.PhysRewriteEntry{
			Rule: memo.PhysicalRewriteLimit, Priority: 10, Node: impl}
	case memo.OpJoin:
		impl.Op = memo.OpHashJoin
		return &memo.PhysRewriteEntry{
			Rule: memo.PhysicalRewriteHashJoin, Priority: 10, Node: impl}
	case memo.OpAgg:
		impl.Op = memo.OpHashAgg
		return &memo.PhysRewriteEntry{
			Rule: memo.PhysicalRewriteHashAgg, Priority: 10, Node: impl}
	case memo.OpOrder:
		impl.Op = memo.OpSort
		return &memo.PhysRewriteEntry{
			Rule: memo.PhysicalRewriteSort, Priority: 10, Node: impl}
	default:
		return nil
	}
}

func matchingIndex(ctx *memo.Context, scan *memo.Expr, order []memo.OrderSpec) (string, bool) {
	if len(order) == 0 || order[0].Desc {
		return "", false
	}
	table, has := ctx.Metadata.Table(scan.Table)
	if !has {
		return "", false
	}
	// visit index names in sorted order so plans are replayable
	names := make([]string, 0, len(table.Indexes))
	for name := range table.Indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if keys := table.Indexes[name]; len(keys) != 0 && keys[0] == order[0].Col {
			return name, true
		}
	}
	return "", false
}

func (d *Driver) implement(
	ctx *memo.Context,
	gid memo.GroupId,
	res *memo.PhysOptimizationResult,
	entry *memo.PhysRewriteEntry) {
	plan := entry.Node.Clone()
	childCost := memo.NewCost(0)
	for i, child := range plan.Children {
		childProps := memo.MakePhysProps()
		if i < len(entry.ChildProps) && entry.ChildProps[i] != nil {
			childProps = entry.ChildProps[i]
		}
		childRes := d.OptimizeGroup(ctx, child.Group, childProps, res.CostLimit)
		if !childRes.IsOptimized() {
			// no child plan within the limit, drop the candidate
			return
		}
		plan.Children[i] = childRes.NodeInfo.Node
		childCost = childCost.Add(childRes.NodeInfo.Cost)
	}
	ce := d.m.GetGroup(gid).Props().CE
	localCost := d.costLocal(ctx, entry.Node, ce)
	res.AcceptPlan(&memo.PhysNodeInfo{
		Node:       plan,
		Cost:       localCost.Add(childCost),
		LocalCost:  localCost,
		AdjustedCE: adjustCE(ce, res.PhysProps),
		Rule:       entry.Rule,
	})
}

// costLocal is the demo cost model: per-operator cost without the
// subtree, driven by the group cardinality estimate.
func (d *Driver) costLocal(ctx *memo.Context, node *memo.Expr, ce float64) memo.CostType {
	switch node.Op {
	case memo.OpSeqScan:
		rows := defaultRows(ctx, node)
		return memo.NewCost(rows)
	case memo.OpIndexScan:
		rows := defaultRows(ctx, node)
		return memo.NewCost(rows * 0.6)
	case memo.OpPhysFilter:
		return memo.NewCost(ce * 0.1)
	case memo.OpPhysProject, memo.OpPhysLimit:
		return memo.NewCost(ce * 0.01)
	case memo.OpHashJoin, memo.OpHashAgg:
		return memo.NewCost(ce * 1.5)
	case memo.OpNLJoin:
		return memo.NewCost(ce * 3)
	case memo.OpMergeJoin:
		return memo.NewCost(ce * 1.2)
	case memo.OpSort:
		return memo.NewCost(ce * math.Log2(ce+2))
	default:
		panic("usp")
	}
}

func defaultRows(ctx *memo.Context, scan *memo.Expr) float64 {
	if table, has := ctx.Metadata.Table(scan.Table); has {
		return table.RowCount
	}
	return 1000
}

func adjustCE(ce float64, props memo.PhysProps) float64 {
	if props.Has(memo.PropLimitSkip) {
		return math.Min(ce, float64(props.Get(memo.PropLimitSkip).Limit))
	}
	return ce
}
