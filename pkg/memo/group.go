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
	"github.com/daviszhen/cascades/pkg/util"
)

// Group is one equivalence class: every logical node in it is assumed to
// produce the same result set over the same output columns. The
// projection set is fixed at construction and never changes.
type Group struct {
	id GroupId

	logicalNodes *OrderPreservingSet
	// rule that produced logicalNodes[i], parallel to the set
	rules []LogicalRewriteType

	props  LogicalProps
	binder *Expr

	logicalQueue *LogicalRewriteQueue

	// winner's circle
	physicalNodes *PhysNodes
}

func NewGroup(id GroupId, projections []string) *Group {
	return &Group{
		id:            id,
		logicalNodes:  NewOrderPreservingSet(),
		binder:        NewColumnBinder(projections),
		logicalQueue:  NewLogicalRewriteQueue(),
		physicalNodes: NewPhysNodes(),
	}
}

func (g *Group) Id() GroupId {
	return g.id
}

// Binder names and orders the group's output columns. Parent expressions
// resolve variable references against it.
func (g *Group) Binder() *Expr {
	return g.binder
}

func (g *Group) ProjectionNames() []string {
	return g.binder.Cols
}

// addNode inserts a logical alternative, pairing it with the rule that
// produced it. A structural duplicate returns the existing index and
// records nothing.
func (g *Group) addNode(n *Expr, rule LogicalRewriteType) (int, bool) {
	pos, inserted := g.logicalNodes.Emplace(n)
	if inserted {
		g.rules = append(g.rules, rule)
		g.props.Derived = false
	}
	util.AssertFunc(len(g.rules) == g.logicalNodes.Size())
	return pos, inserted
}

func (g *Group) LogicalNodes() *OrderPreservingSet {
	return g.logicalNodes
}

// NodeRule returns the rewrite that produced the node at index.
func (g *Group) NodeRule(index int) LogicalRewriteType {
	util.AssertFunc(index >= 0 && index < len(g.rules))
	return g.rules[index]
}

func (g *Group) Props() *LogicalProps {
	return &g.props
}

func (g *Group) LogicalQueue() *LogicalRewriteQueue {
	return g.logicalQueue
}

func (g *Group) PhysicalNodes() *PhysNodes {
	return g.physicalNodes
}

// clearLogicalNodes drops the logical alternatives and pending logical
// rewrites. Physical winners survive.
func (g *Group) clearLogicalNodes() {
	g.logicalNodes.Clear()
	g.rules = nil
	g.logicalQueue.Clear()
}
