package renderer

import (
	"fmt"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// FramePresenter owns the swapchain images and tracks which one the surface
// hands out next.
type FramePresenter struct {
	device       *DeviceContext
	bufferCount  uint32
	syncInterval int

	images     []metadata.SwapImage
	frameIndex uint32
	width      uint32
	height     uint32
	created    bool
}

func NewFramePresenter(device *DeviceContext, bufferCount uint32, syncInterval int) *FramePresenter {
	return &FramePresenter{
		device:       device,
		bufferCount:  bufferCount,
		syncInterval: syncInterval,
	}
}

// CreateOrResize (re)creates the swapchain. A zero dimension returns
// core.ErrZeroDimension without touching the existing images; callers skip
// the resize in that case.
func (fp *FramePresenter) CreateOrResize(width, height uint32) error {
	if width == 0 || height == 0 {
		return core.ErrZeroDimension
	}

	backend := fp.device.Backend()
	if fp.created {
		// in-flight frames may still reference the old images
		if err := fp.device.SignalAndWait(); err != nil {
			return err
		}
		backend.DestroySwapchain()
		fp.created = false
	}

	info, err := backend.CreateSwapchain(width, height, fp.bufferCount, fp.syncInterval)
	if err != nil {
		return fmt.Errorf("failed to create swapchain %dx%d: %w", width, height, err)
	}
	fp.created = true
	fp.width, fp.height = info.Width, info.Height

	fp.images = make([]metadata.SwapImage, info.ImageCount)
	for i := range fp.images {
		fp.images[i] = metadata.SwapImage{Index: uint32(i), State: metadata.ResourceStateUndefined}
	}

	index, err := backend.AcquireNextImage()
	if err != nil {
		return err
	}
	fp.frameIndex = index
	core.LogDebug("Swapchain %dx%d with %d images, current index %d.", fp.width, fp.height, len(fp.images), fp.frameIndex)
	return nil
}

func (fp *FramePresenter) CurrentImage() (metadata.SwapImage, error) {
	if !fp.created || int(fp.frameIndex) >= len(fp.images) {
		return metadata.SwapImage{}, core.ErrNotInitialized
	}
	return fp.images[fp.frameIndex], nil
}

// SetImageState records the logical state an image was transitioned to.
func (fp *FramePresenter) SetImageState(index uint32, state metadata.ResourceState) {
	if int(index) < len(fp.images) {
		fp.images[index].State = state
	}
}

// Present queues the current image and then asks the surface for the next
// one; the index is never computed locally.
func (fp *FramePresenter) Present(syncInterval int) error {
	if !fp.created {
		return core.ErrNotInitialized
	}
	backend := fp.device.Backend()
	if err := backend.Present(fp.frameIndex, syncInterval); err != nil {
		return err
	}
	index, err := backend.AcquireNextImage()
	if err != nil {
		return err
	}
	fp.frameIndex = index
	return nil
}

func (fp *FramePresenter) FrameIndex() uint32 {
	return fp.frameIndex
}

func (fp *FramePresenter) ImageCount() uint32 {
	return uint32(len(fp.images))
}

func (fp *FramePresenter) Size() (uint32, uint32) {
	return fp.width, fp.height
}

func (fp *FramePresenter) SyncInterval() int {
	return fp.syncInterval
}

// Release destroys the swapchain after the queue is drained.
func (fp *FramePresenter) Release() error {
	if !fp.created {
		return nil
	}
	err := fp.device.SignalAndWait()
	fp.device.Backend().DestroySwapchain()
	fp.created = false
	fp.images = nil
	return err
}
