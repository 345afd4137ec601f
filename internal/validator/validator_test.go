package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatorLifecycle(t *testing.T) {
	v := New()
	assert.Equal(t, uint32(0), v.ExpectedOnionID())
	assert.Equal(t, uint32(1), v.StartOnion())

	c1 := v.ExpectedHopCountForNewSend()
	c2 := v.ExpectedHopCountForNewSend()
	assert.Equal(t, 1, c1)
	assert.Equal(t, 2, c2)
	assert.False(t, v.HasReceivedAtLeast(c1))

	v.NotifyFullyReceived()
	assert.True(t, v.HasReceivedAtLeast(c1))
	assert.False(t, v.HasReceivedAtLeast(c2))
	v.NotifyFullyReceived()
	assert.True(t, v.HasReceivedAtLeast(c2))

	c3 := v.ExpectedHopCountForNewSend()
	assert.False(t, v.HasReceivedAtLeast(c3))
	sent, received := v.Counters()
	assert.Equal(t, 3, sent)
	assert.Equal(t, 2, received)
}

func TestStartOnionWritesOffPendingHops(t *testing.T) {
	v := New()
	v.StartOnion()
	pending := v.ExpectedHopCountForNewSend()
	assert.False(t, v.HasReceivedAtLeast(pending))

	assert.Equal(t, uint32(2), v.StartOnion())
	assert.True(t, v.HasReceivedAtLeast(pending))
	assert.Equal(t, uint32(2), v.ExpectedOnionID())
}
