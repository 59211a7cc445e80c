package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

func vertexFormat(f metadata.VertexFormat) (vk.Format, error) {
	switch f {
	case metadata.VertexFormatFloat32x2:
		return vk.FormatR32g32Sfloat, nil
	case metadata.VertexFormatFloat32x3:
		return vk.FormatR32g32b32Sfloat, nil
	}
	return vk.FormatUndefined, fmt.Errorf("vulkan: unsupported vertex format %d", f)
}

// vertexInputDescription describes one interleaved vertex stream at binding 0.
func vertexInputDescription(stride uint32, attributes []metadata.VertexAttribute) (vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, error) {
	binding := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    stride,
		InputRate: vk.VertexInputRateVertex,
	}
	descs := make([]vk.VertexInputAttributeDescription, len(attributes))
	for i, a := range attributes {
		format, err := vertexFormat(a.Format)
		if err != nil {
			return binding, nil, fmt.Errorf("attribute '%s': %w", a.Name, err)
		}
		descs[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   format,
			Offset:   a.Offset,
		}
	}
	return binding, descs, nil
}
