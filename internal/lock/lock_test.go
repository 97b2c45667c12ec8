package lock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalGuard(t *testing.T) {
	ctx := context.Background()
	g := NewLocal()

	release, ok, err := g.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = g.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must not wait or succeed")

	release()
	release2, ok, _ := g.TryAcquire(ctx)
	assert.True(t, ok)
	release2()
}

type fakeGuard struct {
	busy     bool
	err      error
	held     bool
	released int
	order    *[]string
	name     string
}

func (f *fakeGuard) TryAcquire(context.Context) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.busy || f.held {
		return nil, false, nil
	}
	f.held = true
	return func() {
		f.held = false
		f.released++
		if f.order != nil {
			*f.order = append(*f.order, f.name)
		}
	}, true, nil
}

func TestChain_ReleasesInReverse(t *testing.T) {
	var order []string
	a := &fakeGuard{name: "a", order: &order}
	b := &fakeGuard{name: "b", order: &order}

	release, ok, err := Chain{a, nil, b}.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, a.held && b.held)

	release()
	assert.Equal(t, []string{"b", "a"}, order)
}

func TestChain_UnwindsOnBusy(t *testing.T) {
	a := &fakeGuard{}
	b := &fakeGuard{busy: true}

	_, ok, err := Chain{a, b}.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, a.held)
	assert.Equal(t, 1, a.released)
}

func TestChain_PropagatesError(t *testing.T) {
	a := &fakeGuard{}
	boom := errors.New("redis down")
	b := &fakeGuard{err: boom}

	_, ok, err := Chain{a, b}.TryAcquire(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.False(t, a.held)
}
