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

	"github.com/daviszhen/cascades/pkg/util"
)

// LogicalProps are derived per group and cached until a new logical node
// arrives.
type LogicalProps struct {
	Projections []string
	CE          float64
	Derived     bool
}

func (props *LogicalProps) String() string {
	if !props.Derived {
		return "underived"
	}
	return fmt.Sprintf("[%s] CE=%.2f", strings.Join(props.Projections, ", "), props.CE)
}

type PhysPropKind uint8

const (
	PropOrder PhysPropKind = iota
	PropDistribution
	PropLimitSkip
	PropProjections

	numPhysPropKinds
)

var physPropKindNames = [numPhysPropKinds]string{
	"order",
	"distribution",
	"limitSkip",
	"projections",
}

func (kind PhysPropKind) String() string {
	util.AssertFunc(kind < numPhysPropKinds)
	return physPropKindNames[kind]
}

type DistributionType uint8

const (
	DistCentralized DistributionType = iota
	DistReplicated
	DistRoundRobin
	DistHashPartitioned
)

var distNames = map[DistributionType]string{
	DistCentralized:     "centralized",
	DistReplicated:      "replicated",
	DistRoundRobin:      "roundRobin",
	DistHashPartitioned: "hashPartitioned",
}

func (d DistributionType) String() string {
	return distNames[d]
}

// PhysProp is one requested physical property. Only the fields of its Kind
// are meaningful.
type PhysProp struct {
	Kind PhysPropKind

	Order            []OrderSpec
	Distribution     DistributionType
	DistributionCols []string
	Limit            int64
	Skip             int64
	Cols             []string
}

func OrderProp(specs ...OrderSpec) *PhysProp {
	return &PhysProp{Kind: PropOrder, Order: specs}
}

func DistributionProp(d DistributionType, cols ...string) *PhysProp {
	return &PhysProp{Kind: PropDistribution, Distribution: d, DistributionCols: cols}
}

func LimitSkipProp(limit, skip int64) *PhysProp {
	return &PhysProp{Kind: PropLimitSkip, Limit: limit, Skip: skip}
}

func ProjectionsProp(cols ...string) *PhysProp {
	return &PhysProp{Kind: PropProjections, Cols: cols}
}

func (prop *PhysProp) equal(o *PhysProp) bool {
	return prop.Kind == o.Kind &&
		slices.Equal(prop.Order, o.Order) &&
		prop.Distribution == o.Distribution &&
		slices.Equal(prop.DistributionCols, o.DistributionCols) &&
		prop.Limit == o.Limit &&
		prop.Skip == o.Skip &&
		slices.Equal(prop.Cols, o.Cols)
}

func (prop *PhysProp) fingerprint() uint64 {
	h := util.HashU64(uint64(prop.Kind))
	for _, o := range prop.Order {
		h = util.HashCombine(h, util.HashString(o.String()))
	}
	h = util.HashCombine(h, uint64(prop.Distribution))
	for _, c := range prop.DistributionCols {
		h = util.HashCombine(h, util.HashString(c))
	}
	h = util.HashCombine(h, uint64(prop.Limit))
	h = util.HashCombine(h, uint64(prop.Skip))
	for _, c := range prop.Cols {
		h = util.HashCombine(h, util.HashString(c))
	}
	return h
}

func (prop *PhysProp) String() string {
	bb := strings.Builder{}
	bb.WriteString(prop.Kind.String())
	switch prop.Kind {
	case PropOrder:
		specs := make([]string, 0, len(prop.Order))
		for _, o := range prop.Order {
			specs = append(specs, o.String())
		}
		bb.WriteString("(" + strings.Join(specs, ", ") + ")")
	case PropDistribution:
		bb.WriteString("(" + prop.Distribution.String())
		if len(prop.DistributionCols) != 0 {
			bb.WriteString(": " + strings.Join(prop.DistributionCols, ", "))
		}
		bb.WriteString(")")
	case PropLimitSkip:
		bb.WriteString(fmt.Sprintf("(%d, %d)", prop.Limit, prop.Skip))
	case PropProjections:
		bb.WriteString("(" + strings.Join(prop.Cols, ", ") + ")")
	}
	return bb.String()
}

// PhysProps is a set of requested properties keyed by kind. At most one
// property per kind. The set is structural: equality and fingerprint do
// not depend on construction order.
type PhysProps map[PhysPropKind]*PhysProp

func MakePhysProps(props ...*PhysProp) PhysProps {
	set := make(PhysProps, len(props))
	for _, prop := range props {
		util.AssertFunc(!set.Has(prop.Kind))
		set[prop.Kind] = prop
	}
	return set
}

func (props PhysProps) Has(kind PhysPropKind) bool {
	_, has := props[kind]
	return has
}

func (props PhysProps) Get(kind PhysPropKind) *PhysProp {
	prop, has := props[kind]
	util.AssertFunc(has)
	return prop
}

func (props PhysProps) Equal(o PhysProps) bool {
	if len(props) != len(o) {
		return false
	}
	for kind, prop := range props {
		other, has := o[kind]
		if !has || !prop.equal(other) {
			return false
		}
	}
	return true
}

func (props PhysProps) Fingerprint() uint64 {
	// iterate kinds in declaration order so the result is order-independent
	h := util.HashU64(uint64(len(props)))
	for kind := PhysPropKind(0); kind < numPhysPropKinds; kind++ {
		if prop, has := props[kind]; has {
			h = util.HashCombine(h, prop.fingerprint())
		}
	}
	return h
}

func (props PhysProps) String() string {
	parts := make([]string, 0, len(props))
	for kind := PhysPropKind(0); kind < numPhysPropKinds; kind++ {
		if prop, has := props[kind]; has {
			parts = append(parts, prop.String())
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
