package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOwnerLocksSerializeSameOwner(t *testing.T) {
	locks := newOwnerLocks()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.lock("alice")
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "same-owner sections must never overlap")
}

func TestOwnerLocksIndependentOwnersProceed(t *testing.T) {
	locks := newOwnerLocks()

	releaseAlice := locks.lock("alice")
	defer releaseAlice()

	// Another owner's lock must be acquirable while alice's is held.
	done := make(chan struct{})
	go func() {
		release := locks.lock("bob")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bob's lock blocked on alice's")
	}
}

func TestOwnerLocksEntriesAreReclaimed(t *testing.T) {
	locks := newOwnerLocks()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.lock("alice")
			release()
		}()
	}
	wg.Wait()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.entries, "uncontended entries must be removed")
}
