package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	m "math"
	"unsafe"

	"github.com/spaghettifunk/usu/engine/math"
)

var (
	ErrEmptyMesh        = errors.New("mesh has no vertices or no indices")
	ErrIndexCount       = errors.New("index count is not a multiple of 3")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrVertexLayoutSize = errors.New("vertex layout does not match Vertex")
)

/**
 * @brief Represents a single vertex in 3D space. The field order and byte
 * offsets are part of the pipeline input layout; see VertexLayout.
 */
type Vertex struct {
	/** @brief The position of the vertex */
	Position math.Vec3
	/** @brief The normal of the vertex. */
	Normal math.Vec3
	/** @brief The texture coordinate of the vertex. */
	Texcoord math.Vec2
}

// VertexStride is sizeof(Vertex).
const VertexStride = uint32(unsafe.Sizeof(Vertex{}))

// IndexSize is the size of a 32-bit index.
const IndexSize = 4

type VertexFormat int

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
)

func (f VertexFormat) Size() uint32 {
	switch f {
	case VertexFormatFloat32x2:
		return 8
	case VertexFormatFloat32x3:
		return 12
	}
	return 0
}

type VertexAttribute struct {
	Name     string
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

// VertexLayout describes Vertex for the pipeline input stage.
func VertexLayout() []VertexAttribute {
	return []VertexAttribute{
		{Name: "position", Location: 0, Format: VertexFormatFloat32x3, Offset: uint32(unsafe.Offsetof(Vertex{}.Position))},
		{Name: "normal", Location: 1, Format: VertexFormatFloat32x3, Offset: uint32(unsafe.Offsetof(Vertex{}.Normal))},
		{Name: "texcoord", Location: 2, Format: VertexFormatFloat32x2, Offset: uint32(unsafe.Offsetof(Vertex{}.Texcoord))},
	}
}

// ValidateLayout checks that attributes tile a stride without gaps or overlap.
func ValidateLayout(layout []VertexAttribute, stride uint32) error {
	end := uint32(0)
	for _, a := range layout {
		if a.Offset != end {
			return fmt.Errorf("attribute %q at offset %d, want %d: %w", a.Name, a.Offset, end, ErrVertexLayoutSize)
		}
		end += a.Format.Size()
	}
	if end != stride {
		return fmt.Errorf("layout covers %d bytes, stride is %d: %w", end, stride, ErrVertexLayoutSize)
	}
	return nil
}

/**
 * @brief A triangle list: every three indices form one triangle.
 * Built once at load time and not modified afterwards.
 */
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// Validate enforces a non-empty triangle list whose indices are all in range.
func (ms *Mesh) Validate() error {
	if ms == nil || len(ms.Vertices) == 0 || len(ms.Indices) == 0 {
		return ErrEmptyMesh
	}
	if len(ms.Indices)%3 != 0 {
		return fmt.Errorf("%d indices: %w", len(ms.Indices), ErrIndexCount)
	}
	count := uint32(len(ms.Vertices))
	for i, idx := range ms.Indices {
		if idx >= count {
			return fmt.Errorf("index %d is %d, vertex count %d: %w", i, idx, count, ErrIndexOutOfRange)
		}
	}
	return nil
}

func (ms *Mesh) VertexBytes() uint64 {
	return uint64(len(ms.Vertices)) * uint64(VertexStride)
}

func (ms *Mesh) IndexBytes() uint64 {
	return uint64(len(ms.Indices)) * IndexSize
}

// Extents returns the bounds of every vertex position.
func (ms *Mesh) Extents() math.Extents3D {
	points := make([]math.Vec3, len(ms.Vertices))
	for i, v := range ms.Vertices {
		points[i] = v.Position
	}
	return math.ExtentsOf(points)
}

// EncodeVertices writes the vertices in their GPU layout, little endian.
func EncodeVertices(dst []byte, vertices []Vertex) {
	for i, v := range vertices {
		f := [8]float32{
			v.Position.X, v.Position.Y, v.Position.Z,
			v.Normal.X, v.Normal.Y, v.Normal.Z,
			v.Texcoord.X, v.Texcoord.Y,
		}
		base := i * int(VertexStride)
		for j, x := range f {
			binary.LittleEndian.PutUint32(dst[base+j*4:], m.Float32bits(x))
		}
	}
}

func EncodeIndices(dst []byte, indices []uint32) {
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(dst[i*IndexSize:], idx)
	}
}

// DefaultTriangle is used when no mesh file could be loaded.
func DefaultTriangle() *Mesh {
	n := math.NewVec3(0, 0, -1)
	return &Mesh{
		Name: "default_triangle",
		Vertices: []Vertex{
			{Position: math.NewVec3(-0.5, -0.5, 0), Normal: n, Texcoord: math.NewVec2(0, 1)},
			{Position: math.NewVec3(0, 0.5, 0), Normal: n, Texcoord: math.NewVec2(0.5, 0)},
			{Position: math.NewVec3(0.5, -0.5, 0), Normal: n, Texcoord: math.NewVec2(1, 1)},
		},
		Indices: []uint32{0, 1, 2},
	}
}
