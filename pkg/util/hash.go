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

import "encoding/binary"

const (
	M    uint64 = 0xc6a4a7935bd1e995
	SEED uint64 = 0xe17a1465
	R    uint64 = 47
)

// HashBytes is murmur64a over an arbitrary byte slice.
func HashBytes(data []byte) uint64 {
	l := uint64(len(data))
	h := SEED ^ (l * M)

	nblocks := int(l / 8)
	for i := 0; i < nblocks; i++ {
		k := binary.LittleEndian.Uint64(data[i*8:])
		k *= M
		k ^= k >> R
		k *= M

		h ^= k
		h *= M
	}
	tail := data[nblocks*8:]
	switch len(tail) & 7 {
	case 7:
		h ^= uint64(tail[6]) << 48
		fallthrough
	case 6:
		h ^= uint64(tail[5]) << 40
		fallthrough
	case 5:
		h ^= uint64(tail[4]) << 32
		fallthrough
	case 4:
		h ^= uint64(tail[3]) << 24
		fallthrough
	case 3:
		h ^= uint64(tail[2]) << 16
		fallthrough
	case 2:
		h ^= uint64(tail[1]) << 8
		fallthrough
	case 1:
		h ^= uint64(tail[0])
		h *= M
	}
	h ^= h >> R
	h *= M
	h ^= h >> R
	return h
}

func HashU64(x uint64) uint64 {
	x *= M
	x ^= x >> R
	x *= M
	return x
}

func HashString(s string) uint64 {
	return HashBytes([]byte(s))
}

// HashCombine folds a new value into an accumulated hash. The accumulator
// is mixed before the fold so that swapping it with the value changes the
// result.
func HashCombine(h, x uint64) uint64 {
	h *= M
	h ^= HashU64(x)
	return h
}
