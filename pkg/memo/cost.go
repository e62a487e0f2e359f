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
	"math"

	"github.com/daviszhen/cascades/pkg/util"
)

// CostType is an estimated plan cost. The memo stores and compares costs;
// it never computes them, that is the external cost model's job.
type CostType struct {
	c float64
}

func NewCost(c float64) CostType {
	util.AssertFunc(!math.IsNaN(c) && c >= 0)
	return CostType{c: c}
}

func InfiniteCost() CostType {
	return CostType{c: math.Inf(1)}
}

func (cost CostType) IsInfinite() bool {
	return math.IsInf(cost.c, 1)
}

func (cost CostType) Value() float64 {
	return cost.c
}

func (cost CostType) Less(o CostType) bool {
	return util.GreaterFloat(o.c, cost.c)
}

func (cost CostType) Add(o CostType) CostType {
	return CostType{c: cost.c + o.c}
}

func (cost CostType) String() string {
	if cost.IsInfinite() {
		return "inf"
	}
	return fmt.Sprintf("%.2f", cost.c)
}
