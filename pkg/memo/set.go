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

// OrderPreservingSet stores distinct expression nodes in insertion order.
// Indices handed out by Emplace stay valid until Clear; later insertions
// never invalidate them. Lookup goes through a fingerprint index with a
// structural-equality check per bucket entry, not pointer identity.
type OrderPreservingSet struct {
	index map[uint64][]int
	nodes []*Expr
}

func NewOrderPreservingSet() *OrderPreservingSet {
	return &OrderPreservingSet{
		index: make(map[uint64][]int),
	}
}

// Emplace inserts the node unless a structurally equal one is present.
// Returns the stable index and whether a new entry was created.
func (set *OrderPreservingSet) Emplace(node *Expr) (int, bool) {
	util.AssertFunc(node != nil)
	fp := node.Fingerprint()
	for _, pos := range set.index[fp] {
		if set.nodes[pos].StructurallyEqual(node) {
			return pos, false
		}
	}
	pos := len(set.nodes)
	set.nodes = append(set.nodes, node)
	set.index[fp] = append(set.index[fp], pos)
	return pos, true
}

// Find looks the node up without inserting.
func (set *OrderPreservingSet) Find(node *Expr) (int, bool) {
	util.AssertFunc(node != nil)
	fp := node.Fingerprint()
	for _, pos := range set.index[fp] {
		if set.nodes[pos].StructurallyEqual(node) {
			return pos, true
		}
	}
	return 0, false
}

func (set *OrderPreservingSet) At(index int) *Expr {
	util.AssertFunc(index >= 0 && index < len(set.nodes))
	return set.nodes[index]
}

func (set *OrderPreservingSet) Size() int {
	return len(set.nodes)
}

// Nodes exposes the backing slice in insertion order. Callers must not
// mutate it.
func (set *OrderPreservingSet) Nodes() []*Expr {
	return set.nodes
}

func (set *OrderPreservingSet) Clear() {
	set.index = make(map[uint64][]int)
	set.nodes = nil
}
