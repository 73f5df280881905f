package readiness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeAgent struct{ ok bool }

func (f fakeAgent) AgentInfo(ctx context.Context) bool { return f.ok }

type fakeArtifact struct{ ok bool }

func (f fakeArtifact) IsHealthy(ctx context.Context) bool { return f.ok }

func TestCheckAllUp(t *testing.T) {
	c := NewChecker(fakePinger{}, fakeAgent{ok: true}, fakeArtifact{ok: true})
	status := c.Check(context.Background())

	assert.True(t, status.Up)
	assert.True(t, status.Backends["store"].Up)
}

func TestCheckStoreDown(t *testing.T) {
	c := NewChecker(fakePinger{err: errors.New("boom")}, fakeAgent{ok: true}, fakeArtifact{ok: true})
	status := c.Check(context.Background())

	assert.False(t, status.Up)
	assert.False(t, status.Backends["store"].Up)
	assert.Equal(t, "boom", status.Backends["store"].Error)
}
