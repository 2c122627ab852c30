package gloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseSentinel(t *testing.T) {
	assert.True(t, closeSentinel(false))
	assert.False(t, closeSentinel(true))
	assert.False(t, closeSentinel(nil))
	assert.False(t, closeSentinel("false"))
	assert.False(t, closeSentinel(0))
}

func TestBaseSource_MarkReadyConsumeReady(t *testing.T) {
	var b baseSource

	_, ok := b.consumeReady()
	assert.False(t, ok, "unready source must report ok=false")

	b.markReady("payload")
	assert.True(t, b.isReadyFlag())

	data, ok := b.consumeReady()
	assert.True(t, ok)
	assert.Equal(t, "payload", data)
	assert.False(t, b.isReadyFlag(), "consumeReady must clear the flag")

	_, ok = b.consumeReady()
	assert.False(t, ok, "second consume without a new markReady must fail")
}

func TestBaseSource_MarkReadyNoOpWhenClosed(t *testing.T) {
	var b baseSource
	b.Close()
	b.markReady("ignored")
	assert.False(t, b.isReadyFlag())
}

func TestBaseSource_CloseIsSticky(t *testing.T) {
	var b baseSource
	assert.False(t, b.Closed())
	b.Close()
	assert.True(t, b.Closed())
	b.Close()
	assert.True(t, b.Closed())
}

func TestBaseSource_SetTrigger(t *testing.T) {
	var b baseSource
	assert.Nil(t, b.currentTrigger())

	called := false
	b.SetTrigger(func(any) any {
		called = true
		return nil
	})
	trig := b.currentTrigger()
	if assert.NotNil(t, trig) {
		trig(nil)
		assert.True(t, called)
	}
}

func TestIODirection_String(t *testing.T) {
	assert.Equal(t, "read", DirRead.String())
	assert.Equal(t, "write", DirWrite.String())
}
