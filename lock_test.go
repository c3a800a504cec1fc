package bnpl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/bnpl/id"
)

func TestRecordLocksSerializeSameKey(t *testing.T) {
	locks := newRecordLocks()
	a := id.AccountFor("alice")
	p := id.PositionFor("alice", "sol")

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := locks.lock(a, p)
			counter++
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := locks.lock(p, a, a)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Empty(t, locks.locks, "released locks are reclaimed")
}
