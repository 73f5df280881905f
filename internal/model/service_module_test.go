package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServiceIDIsPureAndStable(t *testing.T) {
	id1 := ServiceID("orders", "10.0.0.4", 9090)
	id2 := ServiceID("orders", "10.0.0.4", 9090)

	assert.Equal(t, id1, id2)
	assert.Equal(t, "orders-10-0-0-4-9090", id1)
}

func TestServiceIDReplacesDotsInHostOnly(t *testing.T) {
	id := ServiceID("splitter", "127.0.0.1", 7000)
	assert.Equal(t, "splitter-127-0-0-1-7000", id)
}

func TestSplitServiceName(t *testing.T) {
	name, ok := SplitServiceName("orders-10-0-0-4-9090")
	assert.True(t, ok)
	assert.Equal(t, "orders-10-0-0-4", name)
}

func TestSplitServiceNameMalformed(t *testing.T) {
	_, ok := SplitServiceName("bad-id")
	assert.False(t, ok)
}

func TestIsHealthy(t *testing.T) {
	now := time.Now()
	m := &ServiceModule{LastHeartbeat: now.Add(-10 * time.Second)}
	assert.True(t, m.IsHealthy(now))

	m.LastHeartbeat = now.Add(-31 * time.Second)
	assert.False(t, m.IsHealthy(now))
}
