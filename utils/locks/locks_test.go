package locks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedSerializesSameKey(t *testing.T) {
	k := NewKeyed()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("spot-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyedIndependentKeys(t *testing.T) {
	k := NewKeyed()

	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()

	// a held lock on "a" must not block "b"
	<-done
	unlockA()
}

func TestKeyedDropsIdleEntries(t *testing.T) {
	k := NewKeyed()

	unlock := k.Lock("a")
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.entries)
}
