package metadata

import (
	"encoding/binary"
	m "math"

	"github.com/spaghettifunk/usu/engine/math"
)

// FrameConstantsAlignment is the stride of one constant-buffer region.
const FrameConstantsAlignment = 256

// FrameConstantsSize is the number of meaningful bytes in a region.
const FrameConstantsSize = 64

/**
 * @brief Per-frame shader constants: the model-view-projection matrix.
 * Each in-flight frame owns one FrameConstantsAlignment-sized region.
 */
type FrameConstants struct {
	MVP math.Mat4
}

// Bytes returns the matrix in row-major order, little endian. WGSL reads it
// column-major, which yields the transpose the shader needs for
// `mvp * vec4(position, 1.0)`.
func (f FrameConstants) Bytes() []byte {
	out := make([]byte, FrameConstantsSize)
	for i, x := range f.MVP.Data {
		binary.LittleEndian.PutUint32(out[i*4:], m.Float32bits(x))
	}
	return out
}

// ResourceState is the logical usage a GPU resource is in.
type ResourceState int

const (
	ResourceStateUndefined ResourceState = iota
	ResourceStatePresent
	ResourceStateRenderTarget
	ResourceStateCopyDest
	ResourceStateShaderResource
	ResourceStateGenericRead
)

func (s ResourceState) String() string {
	switch s {
	case ResourceStateUndefined:
		return "undefined"
	case ResourceStatePresent:
		return "present"
	case ResourceStateRenderTarget:
		return "render_target"
	case ResourceStateCopyDest:
		return "copy_dest"
	case ResourceStateShaderResource:
		return "shader_resource"
	case ResourceStateGenericRead:
		return "generic_read"
	}
	return "unknown"
}

// SwapImage is one presentable image of the swapchain.
type SwapImage struct {
	Index uint32
	State ResourceState
}
