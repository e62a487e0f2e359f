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

// LogicalRewriteType records which rewrite produced a logical node. The
// memo does not fire rewrites itself; it stores provenance so a rule does
// not re-apply to its own output.
type LogicalRewriteType uint8

const (
	LogicalRewriteRoot LogicalRewriteType = iota
	LogicalRewriteFilterPush
	LogicalRewriteProjectMerge
	LogicalRewriteJoinCommute
	LogicalRewriteJoinAssociate
	LogicalRewriteLimitPush
	LogicalRewriteAggSplit
)

var logicalRewriteNames = map[LogicalRewriteType]string{
	LogicalRewriteRoot:          "root",
	LogicalRewriteFilterPush:    "filterPush",
	LogicalRewriteProjectMerge:  "projectMerge",
	LogicalRewriteJoinCommute:   "joinCommute",
	LogicalRewriteJoinAssociate: "joinAssociate",
	LogicalRewriteLimitPush:     "limitPush",
	LogicalRewriteAggSplit:      "aggSplit",
}

func (rule LogicalRewriteType) String() string {
	return logicalRewriteNames[rule]
}

// PhysicalRewriteType records which implementation rule produced a
// candidate physical plan.
type PhysicalRewriteType uint8

const (
	PhysicalRewriteUninitialized PhysicalRewriteType = iota
	PhysicalRewriteSeqScan
	PhysicalRewriteIndexScan
	PhysicalRewriteFilter
	PhysicalRewriteProject
	PhysicalRewriteLimit
	PhysicalRewriteHashJoin
	PhysicalRewriteNLJoin
	PhysicalRewriteMergeJoin
	PhysicalRewriteHashAgg
	PhysicalRewriteSort
	PhysicalRewriteEnforcer
)

var physicalRewriteNames = map[PhysicalRewriteType]string{
	PhysicalRewriteUninitialized: "uninitialized",
	PhysicalRewriteSeqScan:       "seqScan",
	PhysicalRewriteIndexScan:     "indexScan",
	PhysicalRewriteFilter:        "filter",
	PhysicalRewriteProject:       "project",
	PhysicalRewriteLimit:         "limit",
	PhysicalRewriteHashJoin:      "hashJoin",
	PhysicalRewriteNLJoin:        "nlJoin",
	PhysicalRewriteMergeJoin:     "mergeJoin",
	PhysicalRewriteHashAgg:       "hashAgg",
	PhysicalRewriteSort:          "sort",
	PhysicalRewriteEnforcer:      "enforcer",
}

func (rule PhysicalRewriteType) String() string {
	return physicalRewriteNames[rule]
}
