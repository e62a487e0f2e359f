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

package util

import "sort"

func Back[T any](data []T) T {
	l := len(data)
	if l == 0 {
		panic("empty slice")
	}
	return data[l-1]
}

func Size[T any](data []T) int {
	return len(data)
}

func Empty[T any](data []T) bool {
	return Size(data) == 0
}

func FindIf[T any](data []T, pred func(t T) bool) int {
	for i, ele := range data {
		if pred(ele) {
			return i
		}
	}
	return -1
}

func CopyTo[T any](src []T) []T {
	dst := make([]T, len(src))
	copy(dst, src)
	return dst
}

type UnorderedSet[T comparable] map[T]bool

func (set UnorderedSet[T]) Insert(keys ...T) {
	for _, key := range keys {
		set[key] = true
	}
}

func (set UnorderedSet[T]) Find(key T) bool {
	_, has := set[key]
	return has
}

func (set UnorderedSet[T]) Erase(key T) {
	delete(set, key)
}

func (set UnorderedSet[T]) Empty() bool {
	return len(set) == 0
}

func (set UnorderedSet[T]) Size() int {
	return len(set)
}

func (set UnorderedSet[T]) Clear() {
	for key := range set {
		delete(set, key)
	}
}

// OrderedStrings returns the members of a string set in sorted order.
// Derived properties and explain output must not depend on map iteration order.
func OrderedStrings[T ~string](set UnorderedSet[T]) []T {
	keys := make([]T, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}
