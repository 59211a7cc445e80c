package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/usu/engine/containers"
	"github.com/spaghettifunk/usu/engine/core"
)

// fenceID indexes a binary fence owned by a fenceOps implementation.
type fenceID int

// fenceOps is the slice of the Vulkan API the timeline needs. The production
// implementation is deviceFences; tests swap in a fake.
type fenceOps interface {
	create() (fenceID, error)
	reset(f fenceID) error
	// signal enqueues f behind all work already submitted to the queue.
	signal(f fenceID) error
	signaled(f fenceID) (bool, error)
	wait(f fenceID, timeoutNs uint64) error
	destroy(f fenceID)
}

type timelinePoint struct {
	value uint64
	fence fenceID
}

// VulkanTimeline emulates a monotonic fence value with a pool of binary
// fences. Each SignalFence takes a fence from the pool and submits it on the
// graphics queue, so points complete in signal order.
type VulkanTimeline struct {
	ops       fenceOps
	pending   *containers.RingQueue[timelinePoint]
	free      *containers.RingQueue[fenceID]
	completed uint64
	last      uint64
}

func NewVulkanTimeline(ops fenceOps) *VulkanTimeline {
	return &VulkanTimeline{
		ops:     ops,
		pending: containers.NewGrowingRingQueue[timelinePoint](4),
		free:    containers.NewGrowingRingQueue[fenceID](4),
	}
}

func (t *VulkanTimeline) Signal(value uint64) error {
	if value <= t.last {
		return fmt.Errorf("vulkan: fence value %d is not above %d", value, t.last)
	}
	fence, err := t.free.Dequeue()
	if err == nil {
		if err := t.ops.reset(fence); err != nil {
			t.free.Enqueue(fence)
			return err
		}
	} else {
		if fence, err = t.ops.create(); err != nil {
			return err
		}
	}
	if err := t.ops.signal(fence); err != nil {
		t.free.Enqueue(fence)
		return err
	}
	t.pending.Enqueue(timelinePoint{value: value, fence: fence})
	t.last = value
	return nil
}

// Completed polls pending fences in order and retires the signaled ones.
func (t *VulkanTimeline) Completed() (uint64, error) {
	for !t.pending.IsEmpty() {
		ok, err := t.ops.signaled(t.pending.At(0).fence)
		if err != nil {
			return t.completed, err
		}
		if !ok {
			break
		}
		t.retire(1)
	}
	return t.completed, nil
}

func (t *VulkanTimeline) Wait(value uint64) error {
	if value <= t.completed {
		return nil
	}
	for i := 0; i < t.pending.Len(); i++ {
		p := t.pending.At(i)
		if p.value < value {
			continue
		}
		if err := t.ops.wait(p.fence, math.MaxUint64); err != nil {
			return err
		}
		t.retire(i + 1)
		return nil
	}
	return fmt.Errorf("vulkan: wait for %d, which was never signaled (last %d)", value, t.last)
}

func (t *VulkanTimeline) retire(n int) {
	for ; n > 0; n-- {
		p, err := t.pending.Dequeue()
		if err != nil {
			return
		}
		t.free.Enqueue(p.fence)
		t.completed = p.value
	}
}

func (t *VulkanTimeline) Destroy() {
	for !t.pending.IsEmpty() {
		p, _ := t.pending.Dequeue()
		if err := t.ops.wait(p.fence, math.MaxUint64); err != nil {
			core.LogWarn("fence for value %d did not complete: %s", p.value, err)
		}
		t.ops.destroy(p.fence)
	}
	for !t.free.IsEmpty() {
		f, _ := t.free.Dequeue()
		t.ops.destroy(f)
	}
}

type deviceFences struct {
	context *VulkanContext
	fences  []vk.Fence
}

func newDeviceFences(context *VulkanContext) *deviceFences {
	return &deviceFences{context: context}
}

func (d *deviceFences) create() (fenceID, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if err := check("create fence", vk.CreateFence(d.context.Device.LogicalDevice, &info, d.context.Allocator, &fence)); err != nil {
		return 0, err
	}
	d.fences = append(d.fences, fence)
	return fenceID(len(d.fences) - 1), nil
}

func (d *deviceFences) reset(f fenceID) error {
	return check("reset fence", vk.ResetFences(d.context.Device.LogicalDevice, 1, []vk.Fence{d.fences[f]}))
}

func (d *deviceFences) signal(f fenceID) error {
	dev := d.context.Device
	return d.context.Locks.SafeQueueCall(uint32(dev.GraphicsQueueIndex), func() error {
		return check("queue signal", vk.QueueSubmit(dev.GraphicsQueue, 0, nil, d.fences[f]))
	})
}

func (d *deviceFences) signaled(f fenceID) (bool, error) {
	switch res := vk.GetFenceStatus(d.context.Device.LogicalDevice, d.fences[f]); res {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, &ResultError{Op: "fence status", Result: res}
	}
}

func (d *deviceFences) wait(f fenceID, timeoutNs uint64) error {
	res := vk.WaitForFences(d.context.Device.LogicalDevice, 1, []vk.Fence{d.fences[f]}, vk.True, timeoutNs)
	if res == vk.Timeout {
		core.LogWarn("vk_fence_wait - Timed out")
	}
	if res != vk.Success {
		return &ResultError{Op: "wait fence", Result: res}
	}
	return nil
}

func (d *deviceFences) destroy(f fenceID) {
	if d.fences[f] != vk.NullFence {
		vk.DestroyFence(d.context.Device.LogicalDevice, d.fences[f], d.context.Allocator)
		d.fences[f] = vk.NullFence
	}
}
