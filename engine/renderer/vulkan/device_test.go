package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/usu/engine/renderer"
)

func TestPickQueueFamilies(t *testing.T) {
	graphics := vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit)
	compute := vk.QueueFlags(vk.QueueComputeBit)

	tests := []struct {
		name     string
		flags    []vk.QueueFlags
		present  []bool
		graphics int32
		presentF int32
	}{
		{"shared family preferred", []vk.QueueFlags{graphics, compute, graphics}, []bool{false, true, true}, 2, 2},
		{"split families", []vk.QueueFlags{graphics, compute}, []bool{false, true}, 0, 1},
		{"no present support", []vk.QueueFlags{graphics}, []bool{false}, 0, -1},
		{"no graphics", []vk.QueueFlags{compute}, []bool{true}, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickQueueFamilies(tt.flags, tt.present)
			assert.Equal(t, tt.graphics, got.GraphicsFamilyIndex)
			assert.Equal(t, tt.presentF, got.PresentFamilyIndex)
			assert.Equal(t, tt.graphics >= 0 && tt.presentF >= 0, got.Complete())
		})
	}
}

func TestAdapterType(t *testing.T) {
	assert.Equal(t, renderer.AdapterTypeDiscrete, adapterType(vk.PhysicalDeviceTypeDiscreteGpu))
	assert.Equal(t, renderer.AdapterTypeIntegrated, adapterType(vk.PhysicalDeviceTypeIntegratedGpu))
	assert.Equal(t, renderer.AdapterTypeCPU, adapterType(vk.PhysicalDeviceTypeCpu))
	assert.Equal(t, renderer.AdapterTypeOther, adapterType(vk.PhysicalDeviceTypeOther))
}
