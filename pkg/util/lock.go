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

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// ReentryLock serializes access to a shared structure that is not safe for
// concurrent mutation, while tolerating nested acquisition from the same
// goroutine. The optimizer driver takes it once per optimization request.
type ReentryLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner atomic.Int64
	count atomic.Uint64
}

func NewReentryLock() *ReentryLock {
	lock := &ReentryLock{}
	lock.cond = sync.NewCond(&lock.mu)
	return lock
}

func (lock *ReentryLock) Lock() {
	rid := goid.Get()
	lock.mu.Lock()
	defer lock.mu.Unlock()
	if lock.owner.Load() == rid {
		lock.count.Add(1)
		return
	}
	for lock.owner.Load() != 0 {
		lock.cond.Wait()
	}
	lock.owner.Store(rid)
	lock.count.Store(1)
}

func (lock *ReentryLock) Unlock() {
	rid := goid.Get()
	release := false
	lock.mu.Lock()
	defer func() {
		lock.mu.Unlock()
		if release {
			lock.cond.Signal()
		}
	}()

	if lock.count.Load() == 0 || lock.owner.Load() != rid {
		panic("unlock of unlocked mutex")
	}
	lock.count.Add(^uint64(0))
	if lock.count.Load() == 0 {
		lock.owner.Store(0)
		release = true
	}
}
