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

func testContext() *Context {
	md := NewMetadata()
	md.AddTable(&TableMeta{
		Name:     "t1",
		Columns:  []string{"a", "b"},
		RowCount: 100,
		Indexes:  map[string][]string{"t1_pk": {"a"}},
	})
	md.AddTable(&TableMeta{
		Name:     "t2",
		Columns:  []string{"c", "d"},
		RowCount: 1000,
	})
	return NewContext(md, &DebugInfo{}, DefaultLogicalProps{}, NewHeuristicCE())
}

func joinExpr(left, right *Expr, on ...string) *Expr {
	return &Expr{Op: OpJoin, Filters: on, Children: []*Expr{left, right}}
}

func filterExpr(child *Expr, preds ...string) *Expr {
	return &Expr{Op: OpFilter, Filters: preds, Children: []*Expr{child}}
}

func integrate(t *testing.T, m *Memo, ctx *Context, node *Expr) (GroupId, NodeIdSet) {
	inserted := make(NodeIdSet)
	gid := m.Integrate(ctx, node, nil, inserted, LogicalRewriteRoot, false)
	require.GreaterOrEqual(t, int(gid), 0)
	return gid, inserted
}

func TestIntegrateSingleScan(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, inserted := integrate(t, m, ctx, scanExpr("t1", "a", "b"))
	assert.Equal(t, 1, m.GetGroupCount())
	assert.Equal(t, 1, inserted.Size())

	g := m.GetGroup(gid)
	assert.Equal(t, 1, g.LogicalNodes().Size())
	assert.Equal(t, []string{"a", "b"}, g.ProjectionNames())
	assert.Equal(t, OpColumnBinder, g.Binder().Op)
	assert.True(t, g.Props().Derived)
	assert.Equal(t, float64(100), g.Props().CE)
}

func TestIntegrateDedupIdempotence(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	tree := func() *Expr {
		return joinExpr(
			filterExpr(scanExpr("t1", "a", "b"), "a > 10"),
			scanExpr("t2", "c", "d"),
			"a = c")
	}

	gid1, inserted1 := integrate(t, m, ctx, tree())
	groups := m.GetGroupCount()
	nodes := m.GetLogicalNodeCount()
	assert.Equal(t, 4, groups)
	assert.Equal(t, nodes, inserted1.Size())

	// same structure again: same root group, nothing new
	gid2, inserted2 := integrate(t, m, ctx, tree())
	assert.Equal(t, gid1, gid2)
	assert.Equal(t, groups, m.GetGroupCount())
	assert.Equal(t, nodes, m.GetLogicalNodeCount())
	assert.True(t, inserted2.Empty())

	stats := m.GetStats()
	assert.Equal(t, uint64(2), stats.NumIntegrations)
}

func TestIntegrateSharedSubtrees(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	// A(x, y) then a structurally identical A(x', y') built from
	// separately constructed but equal children
	x := scanExpr("t1", "a", "b")
	y := scanExpr("t2", "c", "d")
	gidA1, _ := integrate(t, m, ctx, joinExpr(x, y, "a = c"))

	x2 := scanExpr("t1", "a", "b")
	y2 := scanExpr("t2", "c", "d")
	gidA2, _ := integrate(t, m, ctx, joinExpr(x2, y2, "a = c"))

	assert.Equal(t, gidA1, gidA2)
	assert.Equal(t, 3, m.GetGroupCount())
	assert.Equal(t, 3, m.GetLogicalNodeCount())
}

func TestInputCombinationUniqueness(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, _ := integrate(t, m, ctx,
		joinExpr(scanExpr("t1", "a", "b"), scanExpr("t2", "c", "d"), "a = c"))

	root := m.GetNode(NodeId{Group: gid, Index: 0})
	childGroups := root.ChildGroups()

	// exactly one node recorded for this ordered input vector
	count := 0
	m.ScanInputGroupsToNodeId(func(groups GroupIdVector, nodes NodeIdSet) bool {
		if groups.encode() == childGroups.encode() {
			count = nodes.Size()
		}
		return true
	})
	assert.Equal(t, 1, count)

	// the inverse map agrees
	groups, has := m.InputGroups(NodeId{Group: gid, Index: 0})
	assert.True(t, has)
	assert.Equal(t, childGroups, groups)
}

func TestAddNodeIntoTargetGroup(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, _ := integrate(t, m, ctx, filterExpr(scanExpr("t1", "a", "b"), "a > 10"))
	g := m.GetGroup(gid)
	require.Equal(t, 1, g.LogicalNodes().Size())

	// a rewrite adds an equivalent alternative into the same group
	childGid := m.GetNode(NodeId{Group: gid, Index: 0}).ChildGroups()[0]
	alt := &Expr{
		Op:       OpFilter,
		Filters:  []string{"10 < a"},
		Children: []*Expr{NewGroupRef(childGid)},
	}
	inserted := make(NodeIdSet)
	nodeId := m.AddNode(ctx, GroupIdVector{childGid}, nil, gid, inserted,
		alt, LogicalRewriteFilterPush)
	assert.Equal(t, gid, nodeId.Group)
	assert.Equal(t, 1, nodeId.Index)
	assert.Equal(t, 2, g.LogicalNodes().Size())
	assert.Equal(t, LogicalRewriteFilterPush, g.NodeRule(1))

	// inserting the duplicate changes nothing
	dup := alt.Clone()
	inserted2 := make(NodeIdSet)
	nodeId2 := m.AddNode(ctx, GroupIdVector{childGid}, nil, gid, inserted2,
		dup, LogicalRewriteProjectMerge)
	assert.Equal(t, nodeId, nodeId2)
	assert.True(t, inserted2.Empty())
	assert.Equal(t, 2, g.LogicalNodes().Size())
	// provenance of the original insertion is preserved
	assert.Equal(t, LogicalRewriteFilterPush, g.NodeRule(1))
}

func TestIntegrateWithTargetGroupMap(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, _ := integrate(t, m, ctx, filterExpr(scanExpr("t1", "a", "b"), "a > 10"))
	before := m.GetGroupCount()

	// rewrite output asserted to live in the input's group
	alt := filterExpr(scanExpr("t1", "a", "b"), "a >= 11")
	target := NodeTargetGroupMap{alt: gid}
	inserted := make(NodeIdSet)
	outGid := m.Integrate(ctx, alt, target, inserted, LogicalRewriteFilterPush, false)
	assert.Equal(t, gid, outGid)
	assert.Equal(t, before, m.GetGroupCount())
	assert.Equal(t, 2, m.GetGroup(gid).LogicalNodes().Size())
}

func TestGroupIdStability(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid1, _ := integrate(t, m, ctx, scanExpr("t1", "a", "b"))
	gid2, _ := integrate(t, m, ctx, scanExpr("t2", "c", "d"))
	assert.NotEqual(t, gid1, gid2)

	integrate(t, m, ctx,
		joinExpr(scanExpr("t1", "a", "b"), scanExpr("t2", "c", "d"), "a = c"))

	// earlier ids still point at the same content
	assert.Equal(t, "t1", m.GetGroup(gid1).LogicalNodes().At(0).Table)
	assert.Equal(t, "t2", m.GetGroup(gid2).LogicalNodes().At(0).Table)
}

func TestClearLogicalNodes(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, _ := integrate(t, m, ctx, filterExpr(scanExpr("t1", "a", "b"), "a > 10"))
	g := m.GetGroup(gid)
	res, _ := g.PhysicalNodes().AddOptimizationResult(MakePhysProps(), NewCost(1e6))
	res.AcceptPlan(&PhysNodeInfo{
		Node: &Expr{Op: OpPhysFilter, Filters: []string{"a > 10"}},
		Cost: NewCost(10),
		Rule: PhysicalRewriteFilter,
	})

	m.ClearLogicalNodes(gid)
	assert.Equal(t, 0, g.LogicalNodes().Size())
	// physical winners survive
	assert.Equal(t, 1, g.PhysicalNodes().Size())
	assert.True(t, g.PhysicalNodes().At(0).IsOptimized())
	// input maps scrubbed
	_, has := m.InputGroups(NodeId{Group: gid, Index: 0})
	assert.False(t, has)
	// group id still valid
	assert.Equal(t, gid, g.Id())
}

func TestClear(t *testing.T) {
	ctx := testContext()
	m := NewMemo()
	integrate(t, m, ctx,
		joinExpr(scanExpr("t1", "a", "b"), scanExpr("t2", "c", "d"), "a = c"))
	m.Clear()
	assert.Equal(t, 0, m.GetGroupCount())
	assert.Equal(t, 0, m.GetLogicalNodeCount())
	assert.Equal(t, uint64(0), m.GetStats().NumIntegrations)

	// memo is reusable after Clear
	gid, _ := integrate(t, m, ctx, scanExpr("t1", "a", "b"))
	assert.Equal(t, GroupId(0), gid)
}

func TestEstimateCEIdempotent(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, _ := integrate(t, m, ctx, filterExpr(scanExpr("t1", "a", "b"), "a > 10"))
	g := m.GetGroup(gid)
	first := *g.Props()
	firstProjections := append([]string{}, first.Projections...)

	m.EstimateCE(ctx, gid)
	second := *g.Props()
	assert.Equal(t, first.CE, second.CE)
	assert.Equal(t, firstProjections, second.Projections)
	assert.True(t, second.Derived)
}

func TestGetGroupOutOfRange(t *testing.T) {
	m := NewMemo()
	assert.Panics(t, func() {
		m.GetGroup(0)
	})
	assert.Panics(t, func() {
		m.GetGroup(-1)
	})
}

func TestFindNodeInGroup(t *testing.T) {
	ctx := testContext()
	m := NewMemo()
	gid, _ := integrate(t, m, ctx, scanExpr("t1", "a", "b"))

	pos, ok := m.FindNodeInGroup(gid, scanExpr("t1", "a", "b"))
	assert.True(t, ok)
	assert.Equal(t, 0, pos)

	_, ok = m.FindNodeInGroup(gid, scanExpr("t2", "c", "d"))
	assert.False(t, ok)
}

func TestExplainSmoke(t *testing.T) {
	ctx := testContext()
	m := NewMemo()
	integrate(t, m, ctx,
		joinExpr(scanExpr("t1", "a", "b"), scanExpr("t2", "c", "d"), "a = c"))

	out := m.Explain()
	assert.Contains(t, out, "G0")
	assert.Contains(t, out, "SCAN t1")
	assert.Contains(t, out, "JOIN")
}
