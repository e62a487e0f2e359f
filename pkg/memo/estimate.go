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
	"math"

	"github.com/daviszhen/cascades/pkg/util"
)

const (
	defaultSelectivity = float64(0.2)
	defaultScanRows    = float64(1000)
)

// DefaultLogicalProps derives logical properties straight from the
// owning group's binder.
type DefaultLogicalProps struct{}

func (DefaultLogicalProps) DeriveProps(ctx *Context, m *Memo, nodeId NodeId) LogicalProps {
	g := m.GetGroup(nodeId.Group)
	return LogicalProps{
		Projections: util.CopyTo(g.ProjectionNames()),
	}
}

// HeuristicCE estimates cardinality without statistics: fixed
// selectivity per predicate, capped limits, metadata row counts for
// scans. Child estimates come from the already-derived child groups.
type HeuristicCE struct {
	Selectivity float64
	ScanRows    float64
}

func NewHeuristicCE() *HeuristicCE {
	return &HeuristicCE{
		Selectivity: defaultSelectivity,
		ScanRows:    defaultScanRows,
	}
}

func (ce *HeuristicCE) DeriveCE(ctx *Context, m *Memo, groupId GroupId, node *Expr) float64 {
	util.AssertFunc(node != nil)
	childCE := func(i int) float64 {
		util.AssertFunc(i < len(node.Children) && node.Children[i].Op == OpGroupRef)
		props := m.GetGroup(node.Children[i].Group).Props()
		util.AssertFunc(props.Derived)
		return props.CE
	}
	switch node.Op {
	case OpScan:
		if table, has := ctx.Metadata.Table(node.Table); has {
			return table.RowCount
		}
		return ce.ScanRows
	case OpFilter:
		est := childCE(0)
		for range node.Filters {
			est *= ce.Selectivity
		}
		return est
	case OpJoin:
		est := childCE(0) * childCE(1)
		for range node.Filters {
			est *= ce.Selectivity
		}
		return est
	case OpProject, OpOrder:
		return childCE(0)
	case OpAgg:
		if len(node.GroupBy) == 0 {
			return 1
		}
		return math.Max(1, childCE(0)*ce.Selectivity)
	case OpLimit:
		return math.Min(childCE(0), float64(node.Limit))
	default:
		panic("usp")
	}
}
