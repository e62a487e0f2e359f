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
	"github.com/liyue201/gostl/ds/deque"
	"github.com/liyue201/gostl/ds/priorityqueue"
)

// LogicalRewriteEntry is one pending logical rewrite against a node of
// the owning group.
type LogicalRewriteEntry struct {
	Rule LogicalRewriteType
	Node NodeId
}

// LogicalRewriteQueue hands entries back in submission order so rule
// application stays deterministic and replayable.
type LogicalRewriteQueue struct {
	q *deque.Deque[*LogicalRewriteEntry]
}

func NewLogicalRewriteQueue() *LogicalRewriteQueue {
	return &LogicalRewriteQueue{q: deque.New[*LogicalRewriteEntry]()}
}

func (queue *LogicalRewriteQueue) Push(entry *LogicalRewriteEntry) {
	queue.q.PushBack(entry)
}

func (queue *LogicalRewriteQueue) Pop() *LogicalRewriteEntry {
	return queue.q.PopFront()
}

func (queue *LogicalRewriteQueue) Empty() bool {
	return queue.q.Empty()
}

func (queue *LogicalRewriteQueue) Size() int {
	return queue.q.Size()
}

func (queue *LogicalRewriteQueue) Clear() {
	queue.q = deque.New[*LogicalRewriteEntry]()
}

// PhysRewriteEntry is one pending physical rewrite candidate: the plan
// shape to try plus the properties to request from each child group.
type PhysRewriteEntry struct {
	Rule       PhysicalRewriteType
	Priority   int
	Node       *Expr
	ChildProps []PhysProps

	seq uint64
}

// PhysRewriteQueue orders candidates by priority, highest first; equal
// priorities come back in submission order.
type PhysRewriteQueue struct {
	q       *priorityqueue.PriorityQueue[*PhysRewriteEntry]
	size    int
	nextSeq uint64
}

// gostl's priority queue pops the entry the comparator ranks lowest.
func physRewriteCmp(a, b *PhysRewriteEntry) int {
	if a.Priority != b.Priority {
		if a.Priority > b.Priority {
			return -1
		}
		return 1
	}
	// earlier submission pops first
	if a.seq < b.seq {
		return -1
	} else if a.seq > b.seq {
		return 1
	}
	return 0
}

func NewPhysRewriteQueue() *PhysRewriteQueue {
	return &PhysRewriteQueue{
		q: priorityqueue.New[*PhysRewriteEntry](physRewriteCmp),
	}
}

func (queue *PhysRewriteQueue) Push(entry *PhysRewriteEntry) {
	entry.seq = queue.nextSeq
	queue.nextSeq++
	queue.size++
	queue.q.Push(entry)
}

func (queue *PhysRewriteQueue) Pop() *PhysRewriteEntry {
	queue.size--
	return queue.q.Pop()
}

func (queue *PhysRewriteQueue) Empty() bool {
	return queue.q.Empty()
}

func (queue *PhysRewriteQueue) Size() int {
	return queue.size
}
