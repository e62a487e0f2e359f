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
)

func TestHeuristicCEScan(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, _ := integrate(t, m, ctx, scanExpr("t1", "a", "b"))
	assert.Equal(t, float64(100), m.GetGroup(gid).Props().CE)

	// unknown table falls back to the default
	gid2, _ := integrate(t, m, ctx, scanExpr("unknown", "x"))
	assert.Equal(t, defaultScanRows, m.GetGroup(gid2).Props().CE)
}

func TestHeuristicCEFilter(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, _ := integrate(t, m, ctx,
		filterExpr(scanExpr("t1", "a", "b"), "a > 10", "b < 5"))
	// one selectivity factor per predicate
	assert.InDelta(t, 100*0.2*0.2, m.GetGroup(gid).Props().CE, 1e-9)
}

func TestHeuristicCEJoin(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, _ := integrate(t, m, ctx,
		joinExpr(scanExpr("t1", "a", "b"), scanExpr("t2", "c", "d"), "a = c"))
	assert.InDelta(t, 100*1000*0.2, m.GetGroup(gid).Props().CE, 1e-9)
}

func TestHeuristicCELimit(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	limit := &Expr{
		Op:       OpLimit,
		Limit:    7,
		Children: []*Expr{scanExpr("t1", "a", "b")},
	}
	gid, _ := integrate(t, m, ctx, limit)
	assert.Equal(t, float64(7), m.GetGroup(gid).Props().CE)
}

func TestHeuristicCEAgg(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	scalarAgg := &Expr{
		Op:       OpAgg,
		Aggs:     []string{"count(a)"},
		Children: []*Expr{scanExpr("t1", "a", "b")},
	}
	gid, _ := integrate(t, m, ctx, scalarAgg)
	assert.Equal(t, float64(1), m.GetGroup(gid).Props().CE)

	groupedAgg := &Expr{
		Op:       OpAgg,
		GroupBy:  []string{"a"},
		Aggs:     []string{"sum(b)"},
		Children: []*Expr{scanExpr("t1", "a", "b")},
	}
	gid2, _ := integrate(t, m, ctx, groupedAgg)
	assert.InDelta(t, 100*0.2, m.GetGroup(gid2).Props().CE, 1e-9)
}

func TestDefaultLogicalPropsProjections(t *testing.T) {
	ctx := testContext()
	m := NewMemo()

	gid, _ := integrate(t, m, ctx,
		joinExpr(scanExpr("t1", "a", "b"), scanExpr("t2", "c", "d"), "a = c"))
	assert.Equal(t, []string{"a", "b", "c", "d"},
		m.GetGroup(gid).Props().Projections)
}
