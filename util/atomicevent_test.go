package util

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendAndValue(t *testing.T) {
	ae := NewAtomicEvent[string]()
	v, seq := ae.Latest()
	assert.Equal(t, "", v)
	assert.Equal(t, uint64(0), seq)

	ae.Send("hello")
	ae.Send("world")
	v, seq = ae.Latest()
	assert.Equal(t, "world", v)
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, "world", ae.Value())
}

func TestNotificationCoalesces(t *testing.T) {
	ae := NewAtomicEvent[int]()
	assert.Len(t, ae.Channel(), 0)

	ae.Send(1)
	ae.Send(2)
	ae.Send(3)
	assert.Len(t, ae.Channel(), 1)

	select {
	case <-ae.Channel():
	default:
		t.Fatal("should have received a notification")
	}
	select {
	case <-ae.Channel():
		t.Fatal("several sends must leave a single notification")
	default:
	}
	assert.Equal(t, 3, ae.Value())
}

func TestWait(t *testing.T) {
	ae := NewAtomicEvent[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		ae.Send(42)
	}()
	v, ok := ae.Wait(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok = ae.Wait(ctx)
	assert.False(t, ok)
}

func TestConcurrentSend(t *testing.T) {
	ae := NewAtomicEvent[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ae.Send(i)
		}(i)
	}
	wg.Wait()

	_, seq := ae.Latest()
	assert.Equal(t, uint64(50), seq)
	assert.Len(t, ae.Channel(), 1)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(7, 0, 5))
	assert.Equal(t, 0, Clamp(-3, 0, 5))
	assert.Equal(t, 2.5, Clamp(2.5, 0.0, 5.0))
}
