package vulkan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFences completes submitted fences only when told to, in queue order.
type fakeFences struct {
	queue     []fenceID
	done      map[fenceID]bool
	created   int
	destroyed int
	resets    int
	failNext  error
}

func newFakeFences() *fakeFences {
	return &fakeFences{done: map[fenceID]bool{}}
}

func (f *fakeFences) create() (fenceID, error) {
	f.created++
	return fenceID(f.created - 1), nil
}

func (f *fakeFences) reset(id fenceID) error {
	f.resets++
	f.done[id] = false
	return nil
}

func (f *fakeFences) signal(id fenceID) error {
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	f.queue = append(f.queue, id)
	return nil
}

// finish lets the GPU retire n queued fences.
func (f *fakeFences) finish(n int) {
	for i := 0; i < n && len(f.queue) > 0; i++ {
		f.done[f.queue[0]] = true
		f.queue = f.queue[1:]
	}
}

func (f *fakeFences) signaled(id fenceID) (bool, error) { return f.done[id], nil }

func (f *fakeFences) wait(id fenceID, _ uint64) error {
	for !f.done[id] {
		if len(f.queue) == 0 {
			return errors.New("deadlock")
		}
		f.finish(1)
	}
	return nil
}

func (f *fakeFences) destroy(fenceID) { f.destroyed++ }

func TestTimelineCompletesInOrder(t *testing.T) {
	ops := newFakeFences()
	tl := NewVulkanTimeline(ops)

	for v := uint64(1); v <= 3; v++ {
		require.NoError(t, tl.Signal(v))
	}
	got, err := tl.Completed()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)

	ops.finish(2)
	got, err = tl.Completed()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got)

	require.NoError(t, tl.Wait(3))
	got, _ = tl.Completed()
	assert.Equal(t, uint64(3), got)
}

func TestTimelineReusesRetiredFences(t *testing.T) {
	ops := newFakeFences()
	tl := NewVulkanTimeline(ops)

	for v := uint64(1); v <= 10; v++ {
		require.NoError(t, tl.Signal(v))
		require.NoError(t, tl.Wait(v))
	}
	assert.Equal(t, 1, ops.created)
	assert.Equal(t, 9, ops.resets)
}

func TestTimelineRejectsNonIncreasingValues(t *testing.T) {
	tl := NewVulkanTimeline(newFakeFences())
	require.NoError(t, tl.Signal(5))
	assert.Error(t, tl.Signal(5))
	assert.Error(t, tl.Signal(4))
}

func TestTimelineWaitOnCompletedValueIsFree(t *testing.T) {
	ops := newFakeFences()
	tl := NewVulkanTimeline(ops)
	require.NoError(t, tl.Wait(0))

	require.NoError(t, tl.Signal(1))
	assert.Error(t, tl.Wait(2), "never signaled")
}

func TestTimelineSignalFailureKeepsFence(t *testing.T) {
	ops := newFakeFences()
	tl := NewVulkanTimeline(ops)
	ops.failNext = errors.New("device lost")

	require.Error(t, tl.Signal(1))
	require.NoError(t, tl.Signal(1))
	assert.Equal(t, 1, ops.created)
}

func TestTimelineDestroyDrains(t *testing.T) {
	ops := newFakeFences()
	tl := NewVulkanTimeline(ops)
	require.NoError(t, tl.Signal(1))
	require.NoError(t, tl.Signal(2))
	require.NoError(t, tl.Wait(1))

	tl.Destroy()
	assert.Equal(t, 2, ops.destroyed)
	assert.Empty(t, ops.queue)
}
