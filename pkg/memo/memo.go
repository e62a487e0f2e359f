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
	"strconv"
	"strings"

	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"github.com/daviszhen/cascades/pkg/util"
)

type GroupIdVector []GroupId

func (v GroupIdVector) encode() string {
	bb := strings.Builder{}
	for i, gid := range v {
		if i > 0 {
			bb.WriteByte('.')
		}
		bb.WriteString(strconv.FormatInt(int64(gid), 10))
	}
	return bb.String()
}

// Metadata is static information about data sources, consulted during
// logical property derivation.
type Metadata struct {
	tables map[string]*TableMeta
}

type TableMeta struct {
	Name     string
	Columns  []string
	RowCount float64
	// index name -> key columns
	Indexes map[string][]string
}

func NewMetadata() *Metadata {
	return &Metadata{tables: make(map[string]*TableMeta)}
}

func (md *Metadata) AddTable(table *TableMeta) {
	util.AssertFunc(table != nil && table.Name != "")
	md.tables[table.Name] = table
}

func (md *Metadata) Table(name string) (*TableMeta, bool) {
	table, has := md.tables[name]
	return table, has
}

// DebugInfo gates optional tracing. Never correctness-relevant.
type DebugInfo struct {
	TraceEnabled bool
}

// LogicalPropsInterface derives a node's logical properties from the node
// and its children's already-derived properties.
type LogicalPropsInterface interface {
	DeriveProps(ctx *Context, m *Memo, nodeId NodeId) LogicalProps
}

// CEInterface estimates the row count of a node. Implementations are
// pluggable: heuristic or statistics-based.
type CEInterface interface {
	DeriveCE(ctx *Context, m *Memo, groupId GroupId, node *Expr) float64
}

// Context is an explicit parameter pack of external services. It is
// passed by reference into every call that needs them and never stored
// inside the memo.
type Context struct {
	Metadata               *Metadata
	DebugInfo              *DebugInfo
	LogicalPropsDerivation LogicalPropsInterface
	CEDerivation           CEInterface
}

func NewContext(
	metadata *Metadata,
	debugInfo *DebugInfo,
	logicalProps LogicalPropsInterface,
	ce CEInterface) *Context {
	ctx := &Context{
		Metadata:               metadata,
		DebugInfo:              debugInfo,
		LogicalPropsDerivation: logicalProps,
		CEDerivation:           ce,
	}
	ctx.validate()
	return ctx
}

func (ctx *Context) validate() {
	util.AssertFunc(ctx != nil)
	util.AssertFunc(ctx.Metadata != nil)
	util.AssertFunc(ctx.DebugInfo != nil)
	util.AssertFunc(ctx.LogicalPropsDerivation != nil)
	util.AssertFunc(ctx.CEDerivation != nil)
}

// Stats are diagnostics counters. They never affect correctness.
type Stats struct {
	// calls to Integrate
	NumIntegrations uint64
	// recursive physical optimization calls
	PhysPlanExplorationCount uint64
	// checks against the winner's circle
	PhysMemoCheckCount uint64
}

// NodeTargetGroupMap lets a rewrite assert that a node of the tree being
// integrated belongs to a specific existing group. Keyed by node identity
// within the input tree.
type NodeTargetGroupMap map[*Expr]GroupId

type inputsEntry struct {
	groups GroupIdVector
	nodes  NodeIdSet
}

// Memo is the registry of all groups. Deduplication happens on two
// levels: per group via OrderPreservingSet and globally via the map from
// input group vectors to the node ids already derived from exactly those
// inputs.
type Memo struct {
	groups []*Group

	// ordered child group vector -> node ids produced from those inputs
	inputGroupsToNodeId btree.Map[string, *inputsEntry]
	// inverse of the above; each node id appears in exactly one entry of each
	nodeIdToInputGroups map[NodeId]GroupIdVector

	stats Stats
}

func NewMemo() *Memo {
	return &Memo{
		nodeIdToInputGroups: make(map[NodeId]GroupIdVector),
	}
}

func (m *Memo) GetGroup(groupId GroupId) *Group {
	util.AssertFunc(groupId >= 0 && int(groupId) < len(m.groups))
	return m.groups[groupId]
}

func (m *Memo) GetGroupCount() int {
	return len(m.groups)
}

func (m *Memo) GetNode(nodeId NodeId) *Expr {
	return m.GetGroup(nodeId.Group).LogicalNodes().At(nodeId.Index)
}

func (m *Memo) FindNodeInGroup(groupId GroupId, node *Expr) (int, bool) {
	return m.GetGroup(groupId).LogicalNodes().Find(node)
}

func (m *Memo) GetLogicalNodeCount() int {
	count := 0
	for _, g := range m.groups {
		count += g.LogicalNodes().Size()
	}
	return count
}

func (m *Memo) GetPhysicalNodeCount() int {
	count := 0
	for _, g := range m.groups {
		count += g.PhysicalNodes().Size()
	}
	return count
}

func (m *Memo) GetStats() Stats {
	return m.stats
}

// BumpPhysExploration and BumpPhysMemoCheck let the external physical
// rewriter account its recursion and winner's-circle checks here.
func (m *Memo) BumpPhysExploration() {
	m.stats.PhysPlanExplorationCount++
}

func (m *Memo) BumpPhysMemoCheck() {
	m.stats.PhysMemoCheckCount++
}

// addGroup allocates a fresh group id. Ids are never recycled.
func (m *Memo) addGroup(projections []string) GroupId {
	gid := GroupId(len(m.groups))
	m.groups = append(m.groups, NewGroup(gid, projections))
	return gid
}

// findNode looks for an existing node derived from exactly this ordered
// input vector that is structurally equal to the candidate.
func (m *Memo) findNode(groups GroupIdVector, node *Expr) (NodeId, bool) {
	entry, has := m.inputGroupsToNodeId.Get(groups.encode())
	if !has {
		return NodeId{}, false
	}
	for _, nodeId := range orderedNodeIds(entry.nodes) {
		if m.GetNode(nodeId).StructurallyEqual(node) {
			return nodeId, true
		}
	}
	return NodeId{}, false
}

func orderedNodeIds(set NodeIdSet) []NodeId {
	ids := make([]NodeId, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	// deterministic scan order
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && less(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

func less(a, b NodeId) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Index < b.Index
}

// addNodeToGroup inserts into the group's logical node set and records
// rule provenance. Returns the node id and whether it was new.
func (m *Memo) addNodeToGroup(groupId GroupId, n *Expr, rule LogicalRewriteType) (NodeId, bool) {
	pos, inserted := m.GetGroup(groupId).addNode(n, rule)
	return NodeId{Group: groupId, Index: pos}, inserted
}

// registerInputs records the node in the input-combination map and its
// inverse. The node must not be registered yet.
func (m *Memo) registerInputs(nodeId NodeId, groups GroupIdVector) {
	_, has := m.nodeIdToInputGroups[nodeId]
	util.AssertFunc(!has)
	key := groups.encode()
	entry, has := m.inputGroupsToNodeId.Get(key)
	if !has {
		entry = &inputsEntry{
			groups: util.CopyTo(groups),
			nodes:  make(NodeIdSet),
		}
		m.inputGroupsToNodeId.Set(key, entry)
	}
	util.AssertFunc(!entry.nodes.Find(nodeId))
	entry.nodes.Insert(nodeId)
	m.nodeIdToInputGroups[nodeId] = util.CopyTo(groups)
}

// AddNode inserts a single node whose children are already group refs
// matching groupVector. A negative targetGroupId allocates a new group
// with the given projections. Structural duplicates inside the target
// group return the existing id and change nothing.
func (m *Memo) AddNode(
	ctx *Context,
	groupVector GroupIdVector,
	projections []string,
	targetGroupId GroupId,
	insertedNodeIds NodeIdSet,
	n *Expr,
	rule LogicalRewriteType) NodeId {
	ctx.validate()
	util.AssertFunc(n != nil && n.Op.IsLogical())
	util.AssertFunc(insertedNodeIds != nil)
	for _, gid := range groupVector {
		// child refs must be resolved before the parent can be deduplicated
		util.AssertFunc(gid >= 0 && int(gid) < len(m.groups))
	}

	if targetGroupId < 0 {
		targetGroupId = m.addGroup(projections)
	}
	nodeId, inserted := m.addNodeToGroup(targetGroupId, n, rule)
	if inserted {
		insertedNodeIds.Insert(nodeId)
		m.registerInputs(nodeId, groupVector)
		m.EstimateCE(ctx, targetGroupId)
		m.trace(ctx, "memo add node",
			zap.Int32("group", int32(nodeId.Group)),
			zap.Int("index", nodeId.Index),
			zap.String("node", n.String()),
			zap.String("rule", rule.String()))
	}
	return nodeId
}

// Integrate walks the expression tree bottom-up, resolving every subtree
// into a (group, node) pair, and returns the root group id. Integrating
// two structurally equal trees with identical resolved children yields
// the same node id both times.
func (m *Memo) Integrate(
	ctx *Context,
	node *Expr,
	targetGroupMap NodeTargetGroupMap,
	insertedNodeIds NodeIdSet,
	rule LogicalRewriteType,
	addExistingNodeWithNewChild bool) GroupId {
	ctx.validate()
	m.stats.NumIntegrations++
	return m.integrate(ctx, node, targetGroupMap, insertedNodeIds, rule, addExistingNodeWithNewChild)
}

func (m *Memo) integrate(
	ctx *Context,
	node *Expr,
	targetGroupMap NodeTargetGroupMap,
	insertedNodeIds NodeIdSet,
	rule LogicalRewriteType,
	addExistingNodeWithNewChild bool) GroupId {
	util.AssertFunc(node != nil)
	if node.Op == OpGroupRef {
		util.AssertFunc(node.Group >= 0 && int(node.Group) < len(m.groups))
		return node.Group
	}
	util.AssertFunc(node.Op.IsLogical())

	// children first
	childGroups := make(GroupIdVector, 0, len(node.Children))
	for _, child := range node.Children {
		cgid := m.integrate(ctx, child, targetGroupMap, insertedNodeIds, rule,
			addExistingNodeWithNewChild)
		childGroups = append(childGroups, cgid)
	}

	n := node.Clone()
	n.Children = n.Children[:0]
	for _, cgid := range childGroups {
		n.Children = append(n.Children, NewGroupRef(cgid))
	}

	// a node already derived from exactly these inputs is reused unless
	// the caller explicitly wants a copy with a new child
	if existing, has := m.findNode(childGroups, n); has && !addExistingNodeWithNewChild {
		return existing.Group
	}

	targetGroupId := InvalidGroupId
	if tgid, has := targetGroupMap[node]; has {
		targetGroupId = tgid
	}
	projections := m.deriveProjections(n)
	if targetGroupId >= 0 {
		util.AssertFunc(sameProjectionSet(projections,
			m.GetGroup(targetGroupId).ProjectionNames()))
	}
	nodeId := m.AddNode(ctx, childGroups, projections, targetGroupId,
		insertedNodeIds, n, rule)
	return nodeId.Group
}

// deriveProjections computes the output column set for a node whose
// children are resolved group refs.
func (m *Memo) deriveProjections(n *Expr) []string {
	switch n.Op {
	case OpScan, OpProject:
		return n.Cols
	case OpAgg:
		cols := util.CopyTo(n.GroupBy)
		return append(cols, n.Aggs...)
	case OpFilter, OpOrder, OpLimit:
		util.AssertFunc(len(n.Children) == 1)
		return m.GetGroup(n.Children[0].Group).ProjectionNames()
	case OpJoin:
		util.AssertFunc(len(n.Children) == 2)
		left := m.GetGroup(n.Children[0].Group).ProjectionNames()
		right := m.GetGroup(n.Children[1].Group).ProjectionNames()
		return append(util.CopyTo(left), right...)
	default:
		panic("usp")
	}
}

func sameProjectionSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(util.UnorderedSet[string])
	set.Insert(a...)
	for _, col := range b {
		if !set.Find(col) {
			return false
		}
	}
	return true
}

// EstimateCE recomputes a group's logical properties. Idempotent: with no
// intervening insertion a second call derives the same values.
func (m *Memo) EstimateCE(ctx *Context, groupId GroupId) {
	ctx.validate()
	g := m.GetGroup(groupId)
	util.AssertFunc(g.LogicalNodes().Size() > 0)
	lastIdx := g.LogicalNodes().Size() - 1
	props := ctx.LogicalPropsDerivation.DeriveProps(ctx, m,
		NodeId{Group: groupId, Index: lastIdx})
	props.CE = ctx.CEDerivation.DeriveCE(ctx, m, groupId, g.LogicalNodes().At(lastIdx))
	props.Derived = true
	g.props = props
}

// ClearLogicalNodes drops a group's logical alternatives, typically after
// the winning physical plan was extracted. The group id and its physical
// winners stay valid. Input maps are scrubbed to stay consistent.
func (m *Memo) ClearLogicalNodes(groupId GroupId) {
	g := m.GetGroup(groupId)
	for nodeId, groups := range m.nodeIdToInputGroups {
		if nodeId.Group != groupId {
			continue
		}
		key := groups.encode()
		entry, has := m.inputGroupsToNodeId.Get(key)
		util.AssertFunc(has)
		entry.nodes.Erase(nodeId)
		if entry.nodes.Empty() {
			m.inputGroupsToNodeId.Delete(key)
		}
		delete(m.nodeIdToInputGroups, nodeId)
	}
	g.clearLogicalNodes()
}

// Clear resets the memo for the next independent optimization run.
func (m *Memo) Clear() {
	m.groups = nil
	m.inputGroupsToNodeId = btree.Map[string, *inputsEntry]{}
	m.nodeIdToInputGroups = make(map[NodeId]GroupIdVector)
	m.stats = Stats{}
}

// InputGroups returns the recorded input vector of a node.
func (m *Memo) InputGroups(nodeId NodeId) (GroupIdVector, bool) {
	groups, has := m.nodeIdToInputGroups[nodeId]
	return groups, has
}

// ScanInputGroupsToNodeId visits the input-combination map in key order.
func (m *Memo) ScanInputGroupsToNodeId(visit func(groups GroupIdVector, nodes NodeIdSet) bool) {
	m.inputGroupsToNodeId.Scan(func(_ string, entry *inputsEntry) bool {
		return visit(entry.groups, entry.nodes)
	})
}

func (m *Memo) trace(ctx *Context, msg string, fields ...zap.Field) {
	if ctx.DebugInfo.TraceEnabled {
		util.Debug(msg, fields...)
	}
}
