package renderer

import (
	"fmt"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// MeshViews are the draw-time views of an uploaded mesh.
type MeshViews struct {
	Vertex VertexBufferView
	Index  IndexBufferView
}

// ResourceUploader creates CPU-writable GPU buffers and textures and keeps
// the views the recorder binds.
type ResourceUploader struct {
	device *DeviceContext

	vertexBuffer Buffer
	indexBuffer  Buffer
	views        MeshViews

	texture Texture

	constants       Buffer
	constantsMapped []byte
	constantsSlots  uint32
}

func NewResourceUploader(device *DeviceContext) *ResourceUploader {
	return &ResourceUploader{device: device}
}

// UploadMesh validates the mesh before any GPU allocation, then writes the
// vertex and index data through a scoped map.
func (ru *ResourceUploader) UploadMesh(mesh *metadata.Mesh) (MeshViews, error) {
	if err := mesh.Validate(); err != nil {
		return MeshViews{}, err
	}
	backend := ru.device.Backend()

	vb, err := backend.CreateBuffer(BufferDesc{
		Name:        mesh.Name + ".vertices",
		Size:        mesh.VertexBytes(),
		Usage:       BufferUsageVertex,
		HostVisible: true,
	})
	if err != nil {
		return MeshViews{}, fmt.Errorf("failed to create vertex buffer: %w", err)
	}
	if err := writeBuffer(vb, func(dst []byte) { metadata.EncodeVertices(dst, mesh.Vertices) }); err != nil {
		vb.Release()
		return MeshViews{}, err
	}

	ib, err := backend.CreateBuffer(BufferDesc{
		Name:        mesh.Name + ".indices",
		Size:        mesh.IndexBytes(),
		Usage:       BufferUsageIndex,
		HostVisible: true,
	})
	if err != nil {
		vb.Release()
		return MeshViews{}, fmt.Errorf("failed to create index buffer: %w", err)
	}
	if err := writeBuffer(ib, func(dst []byte) { metadata.EncodeIndices(dst, mesh.Indices) }); err != nil {
		vb.Release()
		ib.Release()
		return MeshViews{}, err
	}

	if ru.vertexBuffer != nil || ru.indexBuffer != nil {
		if err := ru.device.SignalAndWait(); err != nil {
			vb.Release()
			ib.Release()
			return MeshViews{}, err
		}
		ru.releaseMesh()
	}

	ru.vertexBuffer, ru.indexBuffer = vb, ib
	ru.views = MeshViews{
		Vertex: VertexBufferView{Buffer: vb, Stride: metadata.VertexStride, SizeInBytes: mesh.VertexBytes()},
		Index:  IndexBufferView{Buffer: ib, Format: IndexFormatUint32, SizeInBytes: mesh.IndexBytes(), Count: uint32(len(mesh.Indices))},
	}
	core.LogDebug("Uploaded mesh '%s': %d vertices, %d indices.", mesh.Name, len(mesh.Vertices), len(mesh.Indices))
	return ru.views, nil
}

// writeBuffer maps buf, fills it and unmaps before returning.
func writeBuffer(buf Buffer, fill func(dst []byte)) error {
	dst, err := buf.Map()
	if err != nil {
		return fmt.Errorf("failed to map buffer: %w", err)
	}
	defer buf.Unmap()
	fill(dst)
	return nil
}

func (ru *ResourceUploader) MeshViews() (MeshViews, bool) {
	return ru.views, ru.vertexBuffer != nil
}

// UploadTexture publishes img in the single texture slot. A previous texture
// is released once the GPU is idle.
func (ru *ResourceUploader) UploadTexture(name string, img *metadata.ImageData) error {
	if err := img.Validate(); err != nil {
		return err
	}
	tex, err := ru.device.Backend().CreateTexture(TextureDesc{
		Name:    name,
		Width:   img.Width,
		Height:  img.Height,
		Sampler: metadata.SamplerDesc{Filter: metadata.FilterModeLinear, Address: metadata.AddressModeRepeat},
	})
	if err != nil {
		return fmt.Errorf("failed to create texture '%s': %w", name, err)
	}
	if err := tex.WritePixels(img.Pixels); err != nil {
		tex.Release()
		return fmt.Errorf("failed to write texture '%s': %w", name, err)
	}

	if ru.texture != nil {
		if err := ru.device.SignalAndWait(); err != nil {
			tex.Release()
			return err
		}
		ru.texture.Release()
	}
	ru.texture = tex
	core.LogDebug("Uploaded texture '%s' %dx%d.", name, img.Width, img.Height)
	return nil
}

// Texture returns the published texture, or nil.
func (ru *ResourceUploader) Texture() Texture {
	return ru.texture
}

// CreateFrameConstants allocates one persistently mapped region per slot.
func (ru *ResourceUploader) CreateFrameConstants(slots uint32) error {
	if ru.constants != nil {
		if err := ru.device.SignalAndWait(); err != nil {
			return err
		}
		ru.releaseConstants()
	}
	buf, err := ru.device.Backend().CreateBuffer(BufferDesc{
		Name:        "frame_constants",
		Size:        ConstantsOffset(slots),
		Usage:       BufferUsageUniform,
		HostVisible: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create frame constants: %w", err)
	}
	mapped, err := buf.Map()
	if err != nil {
		buf.Release()
		return fmt.Errorf("failed to map frame constants: %w", err)
	}
	ru.constants = buf
	ru.constantsMapped = mapped
	ru.constantsSlots = slots
	return nil
}

// ConstantsOffset is the byte offset of a slot's region.
func ConstantsOffset(slot uint32) uint64 {
	return uint64(slot) * metadata.GetAligned(metadata.FrameConstantsSize, metadata.FrameConstantsAlignment)
}

// UpdateFrameConstants writes mvp into the region of frameIndex. It reports
// false, and writes nothing, when the buffer is not mapped or the index has
// no region.
func (ru *ResourceUploader) UpdateFrameConstants(frameIndex uint32, mvp math.Mat4) bool {
	if ru.constantsMapped == nil || frameIndex >= ru.constantsSlots {
		return false
	}
	off := ConstantsOffset(frameIndex)
	copy(ru.constantsMapped[off:off+metadata.FrameConstantsSize], metadata.FrameConstants{MVP: mvp}.Bytes())
	return true
}

func (ru *ResourceUploader) FrameConstants() Buffer {
	return ru.constants
}

func (ru *ResourceUploader) releaseMesh() {
	if ru.vertexBuffer != nil {
		ru.vertexBuffer.Release()
		ru.vertexBuffer = nil
	}
	if ru.indexBuffer != nil {
		ru.indexBuffer.Release()
		ru.indexBuffer = nil
	}
	ru.views = MeshViews{}
}

func (ru *ResourceUploader) releaseConstants() {
	if ru.constants != nil {
		ru.constants.Unmap()
		ru.constants.Release()
		ru.constants = nil
		ru.constantsMapped = nil
		ru.constantsSlots = 0
	}
}

// Release frees everything; the caller drains the queue first.
func (ru *ResourceUploader) Release() {
	ru.releaseMesh()
	ru.releaseConstants()
	if ru.texture != nil {
		ru.texture.Release()
		ru.texture = nil
	}
}
