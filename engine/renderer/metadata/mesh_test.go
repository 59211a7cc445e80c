package metadata

import (
	"encoding/binary"
	m "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
)

func quad() *Mesh {
	return &Mesh{
		Vertices: make([]Vertex, 4),
		Indices:  []uint32{0, 1, 2, 2, 3, 0},
	}
}

func TestMeshValidate(t *testing.T) {
	require.NoError(t, quad().Validate())
	require.NoError(t, DefaultTriangle().Validate())

	cases := []struct {
		name string
		mesh *Mesh
		want error
	}{
		{"nil", nil, ErrEmptyMesh},
		{"no vertices", &Mesh{Indices: []uint32{0, 1, 2}}, ErrEmptyMesh},
		{"no indices", &Mesh{Vertices: make([]Vertex, 3)}, ErrEmptyMesh},
		{"partial triangle", &Mesh{Vertices: make([]Vertex, 3), Indices: []uint32{0, 1}}, ErrIndexCount},
		{"index equals count", &Mesh{Vertices: make([]Vertex, 3), Indices: []uint32{0, 1, 3}}, ErrIndexOutOfRange},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.ErrorIs(t, c.mesh.Validate(), c.want)
		})
	}
}

func TestVertexLayoutMatchesStruct(t *testing.T) {
	assert.Equal(t, uint32(32), VertexStride)
	layout := VertexLayout()
	require.NoError(t, ValidateLayout(layout, VertexStride))
	assert.Equal(t, []uint32{0, 12, 24}, []uint32{layout[0].Offset, layout[1].Offset, layout[2].Offset})

	broken := append([]VertexAttribute(nil), layout...)
	broken[2].Offset = 28
	assert.ErrorIs(t, ValidateLayout(broken, VertexStride), ErrVertexLayoutSize)
	assert.ErrorIs(t, ValidateLayout(layout[:2], VertexStride), ErrVertexLayoutSize)
}

func TestEncodeVertices(t *testing.T) {
	ms := DefaultTriangle()
	buf := make([]byte, ms.VertexBytes())
	EncodeVertices(buf, ms.Vertices)

	read := func(vertex, component int) float32 {
		off := vertex*int(VertexStride) + component*4
		return m.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	assert.Equal(t, float32(-0.5), read(0, 0))
	assert.Equal(t, float32(0.5), read(1, 1))
	assert.Equal(t, float32(-1), read(2, 5))
	assert.Equal(t, float32(1), read(2, 7))

	idx := make([]byte, ms.IndexBytes())
	EncodeIndices(idx, ms.Indices)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(idx[8:]))
}

func TestMeshExtents(t *testing.T) {
	e := DefaultTriangle().Extents()
	assert.Equal(t, math.NewVec3(-0.5, -0.5, 0), e.Min)
	assert.Equal(t, math.NewVec3(0.5, 0.5, 0), e.Max)
}

func TestFrameConstantsBytes(t *testing.T) {
	fc := FrameConstants{MVP: math.NewMat4Translation(math.NewVec3(1, 2, 3))}
	b := fc.Bytes()
	require.Len(t, b, FrameConstantsSize)
	assert.Equal(t, float32(2), m.Float32frombits(binary.LittleEndian.Uint32(b[13*4:])))
	assert.LessOrEqual(t, FrameConstantsSize, FrameConstantsAlignment)
	assert.Equal(t, uint64(512), GetAligned(257, FrameConstantsAlignment))
}

func TestImageValidate(t *testing.T) {
	require.NoError(t, WhiteImage().Validate())
	assert.ErrorIs(t, (&ImageData{Width: 0, Height: 4}).Validate(), core.ErrZeroDimension)
	assert.ErrorIs(t, (&ImageData{Width: 2, Height: 2, Pixels: make([]uint8, 15)}).Validate(), ErrPixelSize)
}
