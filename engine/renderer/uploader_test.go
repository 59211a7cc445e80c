package renderer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

func newTestUploader(t *testing.T, fb *fakeBackend) *ResourceUploader {
	t.Helper()
	dc := NewDeviceContext(fb, AdapterPreferences{})
	require.NoError(t, dc.Initialize())
	return NewResourceUploader(dc)
}

func TestUploadEmptyMeshMakesNoBackendCalls(t *testing.T) {
	fb := newFakeBackend()
	ru := newTestUploader(t, fb)
	fb.resetCalls()

	_, err := ru.UploadMesh(&metadata.Mesh{Name: "empty"})
	assert.ErrorIs(t, err, metadata.ErrEmptyMesh)

	_, err = ru.UploadMesh(&metadata.Mesh{Name: "bad", Vertices: make([]metadata.Vertex, 3), Indices: []uint32{0, 1, 3}})
	assert.ErrorIs(t, err, metadata.ErrIndexOutOfRange)

	assert.Empty(t, fb.calls)
	_, ok := ru.MeshViews()
	assert.False(t, ok)
}

func TestUploadMeshViews(t *testing.T) {
	fb := newFakeBackend()
	ru := newTestUploader(t, fb)
	mesh := metadata.DefaultTriangle()

	views, err := ru.UploadMesh(mesh)
	require.NoError(t, err)
	assert.Equal(t, uint32(metadata.VertexStride), views.Vertex.Stride)
	assert.Equal(t, uint64(3*metadata.VertexStride), views.Vertex.SizeInBytes)
	assert.Equal(t, uint32(3), views.Index.Count)
	assert.Equal(t, uint64(12), views.Index.SizeInBytes)
	assert.Equal(t, IndexFormatUint32, views.Index.Format)

	require.Len(t, fb.buffers, 2)
	vb, ib := fb.buffers[0], fb.buffers[1]
	assert.False(t, vb.mapped, "vertex buffer left mapped")
	assert.False(t, ib.mapped, "index buffer left mapped")
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(ib.data[8:]))
}

func TestUploadMeshReplacesAfterDrain(t *testing.T) {
	fb := newFakeBackend()
	fb.lag = 1
	ru := newTestUploader(t, fb)

	_, err := ru.UploadMesh(metadata.DefaultTriangle())
	require.NoError(t, err)
	first := fb.buffers[0]

	_, err = ru.UploadMesh(metadata.DefaultTriangle())
	require.NoError(t, err)
	assert.True(t, first.released)
	assert.Equal(t, fb.signaled, fb.completed)
	assert.False(t, fb.buffers[2].released)
}

func TestUploadTexture(t *testing.T) {
	fb := newFakeBackend()
	ru := newTestUploader(t, fb)

	require.NoError(t, ru.UploadTexture("white", metadata.WhiteImage()))
	first := fb.textures[0]
	assert.Equal(t, []uint8{0xFF, 0xFF, 0xFF, 0xFF}, first.pixels)

	err := ru.UploadTexture("broken", &metadata.ImageData{Width: 0, Height: 4})
	assert.ErrorIs(t, err, core.ErrZeroDimension)
	assert.Same(t, Texture(first), ru.Texture())

	img := &metadata.ImageData{Width: 2, Height: 1, Pixels: []uint8{1, 2, 3, 4, 5, 6, 7, 8}}
	require.NoError(t, ru.UploadTexture("checker", img))
	assert.True(t, first.released)
	assert.Equal(t, uint32(2), ru.Texture().Width())
}

func TestFrameConstantsRingRegions(t *testing.T) {
	fb := newFakeBackend()
	ru := newTestUploader(t, fb)
	require.NoError(t, ru.CreateFrameConstants(2))

	buf := fb.buffers[0]
	assert.Equal(t, uint64(2*metadata.FrameConstantsAlignment), buf.desc.Size)
	assert.True(t, buf.mapped, "constants stay mapped")

	a := math.NewMat4Translation(math.Vec3{X: 1, Y: 2, Z: 3})
	b := math.NewMat4Scale(math.Vec3{X: 4, Y: 4, Z: 4})
	require.True(t, ru.UpdateFrameConstants(0, a))
	require.True(t, ru.UpdateFrameConstants(1, b))

	region0 := buf.data[0:metadata.FrameConstantsSize]
	region1 := buf.data[metadata.FrameConstantsAlignment : metadata.FrameConstantsAlignment+metadata.FrameConstantsSize]
	assert.Equal(t, metadata.FrameConstants{MVP: a}.Bytes(), region0)
	assert.Equal(t, metadata.FrameConstants{MVP: b}.Bytes(), region1)
	assert.NotEqual(t, region0, region1)

	assert.False(t, ru.UpdateFrameConstants(2, a))
	assert.Equal(t, uint64(256), ConstantsOffset(1))

	ru.Release()
	assert.True(t, buf.released)
	assert.False(t, ru.UpdateFrameConstants(0, a))
}
