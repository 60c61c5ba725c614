package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientEnqueue_DropsAfterClose(t *testing.T) {
	c := newClient("u1", nil)

	assert.True(t, c.enqueue([]byte(`{"event":"x"}`)))
	c.close()
	assert.False(t, c.enqueue([]byte(`{"event":"y"}`)))

	// A second close is a no-op.
	c.close()
}

func TestClientEnqueue_DropsWhenBufferFull(t *testing.T) {
	c := newClient("u1", nil)
	for i := 0; i < sendBufferSize; i++ {
		assert.True(t, c.enqueue([]byte("m")))
	}
	assert.False(t, c.enqueue([]byte("m")))
}

func TestClientClose_SafeWithConcurrentSends(t *testing.T) {
	// A superseded connection's pumps keep sending while the server closes
	// it; the guarded channel turns those into drops, never a panic.
	c := newClient("u1", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				c.enqueue([]byte("m"))
			}
		}()
	}
	c.close()
	wg.Wait()
}
