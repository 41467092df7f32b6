package sync_

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutexed(t *testing.T) {
	assert := assert.New(t)

	m := NewMutexed(10)
	assert.Equal(10, m.Get())
	m.Set(20)
	assert.Equal(20, m.Get())
	assert.Equal(20, m.Swap(30))
	assert.Equal(30, m.Get())

	sentinel := errors.New("sentinel")
	err := m.Locked(func(v int) error {
		assert.Equal(30, v)
		return sentinel
	})
	assert.ErrorIs(err, sentinel)
}

func TestRWMutexedWithMap(t *testing.T) {
	assert := assert.New(t)

	m := NewRWMutexed(map[string]int{})
	// Maps are reference values, so Locked can mutate the contents.
	assert.NoError(m.Locked(func(v map[string]int) error {
		v["a"] = 1
		return nil
	}))
	assert.NoError(m.RLocked(func(v map[string]int) error {
		assert.Equal(1, v["a"])
		return nil
	}))
	assert.Len(m.Get(), 1)
}

func TestEvent(t *testing.T) {
	assert := assert.New(t)

	var e Event
	assert.False(e.IsSet())
	select {
	case <-e.Wait():
		t.Fatal("wait channel closed before Set")
	default:
	}

	assert.True(e.Set())
	assert.False(e.Set())
	assert.True(e.IsSet())
	<-e.Wait()

	assert.True(e.Clear())
	assert.False(e.IsSet())
	assert.True(e.Set())
}
