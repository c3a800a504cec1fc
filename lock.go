package bnpl

import (
	"sort"
	"sync"

	"github.com/xraph/bnpl/id"
)

// recordLocks serializes writers per record ID. A step locks every record it
// writes; keys are taken in sorted order so two steps sharing records cannot
// deadlock.
type recordLocks struct {
	mu    sync.Mutex
	locks map[string]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[string]*recordLock)}
}

// lock acquires every key and returns the matching unlock.
func (r *recordLocks) lock(ids ...id.ID) func() {
	keys := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, i := range ids {
		k := i.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	held := make([]*recordLock, len(keys))
	for n, k := range keys {
		r.mu.Lock()
		l, ok := r.locks[k]
		if !ok {
			l = &recordLock{}
			r.locks[k] = l
		}
		l.refs++
		r.mu.Unlock()

		l.mu.Lock()
		held[n] = l
	}

	return func() {
		for n := len(held) - 1; n >= 0; n-- {
			held[n].mu.Unlock()

			r.mu.Lock()
			held[n].refs--
			if held[n].refs == 0 {
				delete(r.locks, keys[n])
			}
			r.mu.Unlock()
		}
	}
}
