package rates

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	const n = 50
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("7|O")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, n, counter)

	// All holders released: the entry map must be empty again.
	km.mu.Lock()
	assert.Empty(t, km.locks)
	km.mu.Unlock()
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("7|O")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("7|D")
		unlockB()
		close(done)
	}()
	// A held lock on one key must not block another key.
	<-done
	unlockA()
}
