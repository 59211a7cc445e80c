package renderer

import (
	"fmt"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderRecording
	RecorderSubmitted
)

func (s RecorderState) String() string {
	switch s {
	case RecorderIdle:
		return "idle"
	case RecorderRecording:
		return "recording"
	case RecorderSubmitted:
		return "submitted"
	}
	return "unknown"
}

// FrameInputs is everything a frame reads while recording.
type FrameInputs struct {
	Pipeline    Pipeline
	Mesh        MeshViews
	Texture     Texture
	MVP         math.Mat4
	ClearColour [4]float32
}

type frameSlot struct {
	list       CommandList
	fenceValue uint64
}

// FrameRecorder records and submits one frame per swap image slot. Each slot
// has its own command list and remembers the fence value of its last submit,
// so reusing a slot only waits for that slot.
type FrameRecorder struct {
	device    *DeviceContext
	presenter *FramePresenter
	uploader  *ResourceUploader

	slots   []frameSlot
	state   RecorderState
	current uint32
}

func NewFrameRecorder(device *DeviceContext, presenter *FramePresenter, uploader *ResourceUploader) *FrameRecorder {
	return &FrameRecorder{
		device:    device,
		presenter: presenter,
		uploader:  uploader,
	}
}

// Allocate creates one command list per slot. Existing lists are released
// first, so the caller drains the queue before reallocating.
func (fr *FrameRecorder) Allocate(slots uint32) error {
	fr.Release()
	fr.slots = make([]frameSlot, 0, slots)
	for i := uint32(0); i < slots; i++ {
		list, err := fr.device.Backend().CreateCommandList()
		if err != nil {
			fr.Release()
			return fmt.Errorf("failed to create command list %d: %w", i, err)
		}
		fr.slots = append(fr.slots, frameSlot{list: list})
	}
	fr.state = RecorderIdle
	return nil
}

func (fr *FrameRecorder) State() RecorderState {
	return fr.state
}

// SlotFenceValue is the fence value of the last submit on slot.
func (fr *FrameRecorder) SlotFenceValue(slot uint32) uint64 {
	if int(slot) >= len(fr.slots) {
		return 0
	}
	return fr.slots[slot].fenceValue
}

func (fr *FrameRecorder) wrongState(op string) error {
	return fmt.Errorf("%s while %s: %w", op, fr.state, core.ErrInvalidRecorderState)
}

// Begin waits for the previous use of the slot, then opens its list.
func (fr *FrameRecorder) Begin(frameIndex uint32) error {
	if fr.state != RecorderIdle {
		return fr.wrongState("begin")
	}
	if int(frameIndex) >= len(fr.slots) {
		return fmt.Errorf("frame index %d has no command list (have %d): %w", frameIndex, len(fr.slots), core.ErrInvalidRecorderState)
	}
	slot := &fr.slots[frameIndex]
	if err := fr.device.WaitFor(slot.fenceValue); err != nil {
		return err
	}
	if err := slot.list.Reset(); err != nil {
		return fmt.Errorf("failed to reset command list: %w", err)
	}
	if err := slot.list.Begin(); err != nil {
		return fmt.Errorf("failed to begin command list: %w", err)
	}
	fr.current = frameIndex
	fr.state = RecorderRecording
	return nil
}

// Record writes the whole frame into the open list and closes it.
func (fr *FrameRecorder) Record(frame FrameInputs) error {
	if fr.state != RecorderRecording {
		return fr.wrongState("record")
	}
	image, err := fr.presenter.CurrentImage()
	if err != nil {
		return err
	}
	if image.Index != fr.current {
		return fmt.Errorf("recording slot %d but the surface handed out image %d: %w", fr.current, image.Index, core.ErrInvalidRecorderState)
	}
	list := fr.slots[fr.current].list
	width, height := fr.presenter.Size()

	list.SetViewport(width, height)
	list.SetScissor(width, height)

	list.TransitionSwapImage(image.Index, image.State, metadata.ResourceStateRenderTarget)

	list.BeginRendering(image.Index, frame.ClearColour)

	if !fr.uploader.UpdateFrameConstants(fr.current, frame.MVP) {
		core.LogWarn("Frame constants for slot %d were not written.", fr.current)
	}

	if frame.Pipeline != nil {
		list.BindPipeline(frame.Pipeline)
	}
	if frame.Mesh.Vertex.Buffer != nil {
		list.BindVertexBuffer(frame.Mesh.Vertex)
	}
	if frame.Mesh.Index.Buffer != nil {
		list.BindIndexBuffer(frame.Mesh.Index)
	}
	if constants := fr.uploader.FrameConstants(); constants != nil {
		list.BindFrameConstants(constants, ConstantsOffset(fr.current))
	}
	if frame.Texture != nil {
		list.BindTexture(frame.Texture)
	}
	if frame.Pipeline != nil && frame.Mesh.Index.Count > 0 {
		list.DrawIndexed(frame.Mesh.Index.Count)
	}

	list.EndRendering()

	list.TransitionSwapImage(image.Index, metadata.ResourceStateRenderTarget, metadata.ResourceStatePresent)

	if err := list.End(); err != nil {
		return fmt.Errorf("failed to close command list: %w", err)
	}
	return nil
}

// Submit executes the list and signals the fence value that guards the slot.
// The swap image is only marked Present once the GPU has the work.
func (fr *FrameRecorder) Submit() error {
	if fr.state != RecorderRecording {
		return fr.wrongState("submit")
	}
	slot := &fr.slots[fr.current]
	if err := fr.device.Backend().Submit(slot.list, fr.current); err != nil {
		return fmt.Errorf("failed to submit frame %d: %w", fr.current, err)
	}
	v, err := fr.device.Signal()
	if err != nil {
		return err
	}
	slot.fenceValue = v
	fr.presenter.SetImageState(fr.current, metadata.ResourceStatePresent)
	fr.state = RecorderSubmitted
	return nil
}

// Complete returns the recorder to idle once the frame was presented.
func (fr *FrameRecorder) Complete() error {
	if fr.state != RecorderSubmitted {
		return fr.wrongState("complete")
	}
	fr.state = RecorderIdle
	return nil
}

// Abort drops a half-recorded frame, leaving the recorder idle.
func (fr *FrameRecorder) Abort() {
	fr.state = RecorderIdle
}

// Release frees the command lists; the caller drains the queue first.
func (fr *FrameRecorder) Release() {
	for _, s := range fr.slots {
		if s.list != nil {
			s.list.Release()
		}
	}
	fr.slots = nil
	fr.state = RecorderIdle
}
