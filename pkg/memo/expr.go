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
	"slices"
	"strings"

	"github.com/huandu/go-clone"

	"github.com/daviszhen/cascades/pkg/util"
)

type GroupId int32

const InvalidGroupId GroupId = -1

// NodeId addresses one logical node inside one group.
type NodeId struct {
	Group GroupId
	Index int
}

type NodeIdSet = util.UnorderedSet[NodeId]

type Op uint8

const (
	OpInvalid Op = iota

	// OpGroupRef is a child reference into the memo. Once a node is
	// memo-resident all of its children are group refs.
	OpGroupRef
	// OpColumnBinder names and orders a group's output columns.
	OpColumnBinder

	OpScan
	OpFilter
	OpJoin
	OpProject
	OpAgg
	OpOrder
	OpLimit

	OpSeqScan
	OpIndexScan
	OpPhysFilter
	OpPhysProject
	OpPhysLimit
	OpHashJoin
	OpNLJoin
	OpMergeJoin
	OpHashAgg
	OpSort
)

var opNames = map[Op]string{
	OpInvalid:      "INVALID",
	OpGroupRef:     "GROUP_REF",
	OpColumnBinder: "BINDER",
	OpScan:         "SCAN",
	OpFilter:       "FILTER",
	OpJoin:         "JOIN",
	OpProject:      "PROJECT",
	OpAgg:          "AGG",
	OpOrder:        "ORDER",
	OpLimit:        "LIMIT",
	OpSeqScan:      "SEQ_SCAN",
	OpIndexScan:    "INDEX_SCAN",
	OpPhysFilter:   "PHYS_FILTER",
	OpPhysProject:  "PHYS_PROJECT",
	OpPhysLimit:    "PHYS_LIMIT",
	OpHashJoin:     "HASH_JOIN",
	OpNLJoin:       "NL_JOIN",
	OpMergeJoin:    "MERGE_JOIN",
	OpHashAgg:      "HASH_AGG",
	OpSort:         "SORT",
}

func (op Op) String() string {
	if name, has := opNames[op]; has {
		return name
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

func (op Op) IsLogical() bool {
	return op >= OpScan && op <= OpLimit
}

func (op Op) IsPhysical() bool {
	return op >= OpSeqScan && op <= OpSort
}

type OrderSpec struct {
	Col  string
	Desc bool
}

func (o OrderSpec) String() string {
	if o.Desc {
		return o.Col + " DESC"
	}
	return o.Col
}

// Expr is one expression tree node. Before integration children live in
// Children as arbitrary subtrees; integration rewrites each child into an
// OpGroupRef so that equality and hashing stay shallow.
type Expr struct {
	Op    Op
	Group GroupId // OpGroupRef only

	Table   string
	Index   string
	Cols    []string
	Filters []string
	GroupBy []string
	Aggs    []string
	OrderBy []OrderSpec
	Limit   int64
	Offset  int64

	Children []*Expr
}

func NewGroupRef(gid GroupId) *Expr {
	return &Expr{Op: OpGroupRef, Group: gid}
}

func NewColumnBinder(cols []string) *Expr {
	return &Expr{Op: OpColumnBinder, Cols: util.CopyTo(cols)}
}

// Clone returns a detached deep copy.
func (e *Expr) Clone() *Expr {
	return clone.Clone(e).(*Expr)
}

// Fingerprint hashes the node's shape and payload. Children contribute
// their group id when resolved, otherwise their own fingerprint.
func (e *Expr) Fingerprint() uint64 {
	h := util.HashU64(uint64(e.Op))
	h = util.HashCombine(h, util.HashString(e.Table))
	h = util.HashCombine(h, util.HashString(e.Index))
	h = util.HashCombine(h, hashStrings(e.Cols))
	h = util.HashCombine(h, hashStrings(e.Filters))
	h = util.HashCombine(h, hashStrings(e.GroupBy))
	h = util.HashCombine(h, hashStrings(e.Aggs))
	for _, o := range e.OrderBy {
		h = util.HashCombine(h, util.HashString(o.String()))
	}
	h = util.HashCombine(h, uint64(e.Limit))
	h = util.HashCombine(h, uint64(e.Offset))
	for _, child := range e.Children {
		if child.Op == OpGroupRef {
			h = util.HashCombine(h, util.HashU64(uint64(child.Group)))
		} else {
			h = util.HashCombine(h, child.Fingerprint())
		}
	}
	return h
}

func hashStrings(ss []string) uint64 {
	h := util.HashU64(uint64(len(ss)))
	for _, s := range ss {
		h = util.HashCombine(h, util.HashString(s))
	}
	return h
}

// StructurallyEqual compares shape and payload. Resolved children compare
// by group id, unresolved ones recursively.
func (e *Expr) StructurallyEqual(o *Expr) bool {
	if e == o {
		return true
	}
	if e == nil || o == nil {
		return false
	}
	if e.Op != o.Op ||
		e.Group != o.Group ||
		e.Table != o.Table ||
		e.Index != o.Index ||
		e.Limit != o.Limit ||
		e.Offset != o.Offset {
		return false
	}
	if !slices.Equal(e.Cols, o.Cols) ||
		!slices.Equal(e.Filters, o.Filters) ||
		!slices.Equal(e.GroupBy, o.GroupBy) ||
		!slices.Equal(e.Aggs, o.Aggs) ||
		!slices.Equal(e.OrderBy, o.OrderBy) {
		return false
	}
	if len(e.Children) != len(o.Children) {
		return false
	}
	for i, child := range e.Children {
		if !child.StructurallyEqual(o.Children[i]) {
			return false
		}
	}
	return true
}

// ChildGroups returns the resolved child group ids. Panics if any child
// is not a group ref yet.
func (e *Expr) ChildGroups() GroupIdVector {
	groups := make(GroupIdVector, 0, len(e.Children))
	for _, child := range e.Children {
		util.AssertFunc(child.Op == OpGroupRef)
		groups = append(groups, child.Group)
	}
	return groups
}

func (e *Expr) String() string {
	bb := strings.Builder{}
	bb.WriteString(e.Op.String())
	switch e.Op {
	case OpGroupRef:
		bb.WriteString(fmt.Sprintf(" G%d", e.Group))
	case OpScan, OpSeqScan:
		bb.WriteString(" " + e.Table)
	case OpIndexScan:
		bb.WriteString(" " + e.Table + "@" + e.Index)
	}
	if len(e.Cols) != 0 {
		bb.WriteString(" [" + strings.Join(e.Cols, ", ") + "]")
	}
	if len(e.Filters) != 0 {
		bb.WriteString(" (" + strings.Join(e.Filters, " AND ") + ")")
	}
	if len(e.GroupBy) != 0 {
		bb.WriteString(" by(" + strings.Join(e.GroupBy, ", ") + ")")
	}
	if len(e.Aggs) != 0 {
		bb.WriteString(" aggs(" + strings.Join(e.Aggs, ", ") + ")")
	}
	if len(e.OrderBy) != 0 {
		specs := make([]string, 0, len(e.OrderBy))
		for _, o := range e.OrderBy {
			specs = append(specs, o.String())
		}
		bb.WriteString(" order(" + strings.Join(specs, ", ") + ")")
	}
	if e.Op == OpLimit {
		bb.WriteString(fmt.Sprintf(" limit %d offset %d", e.Limit, e.Offset))
	}
	for _, child := range e.Children {
		if child.Op == OpGroupRef {
			bb.WriteString(fmt.Sprintf(" G%d", child.Group))
		}
	}
	return bb.String()
}
