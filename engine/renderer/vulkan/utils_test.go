package vulkan

import (
	"errors"
	"fmt"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/usu/engine/core"
)

func TestResultErrorMapsCoreSentinels(t *testing.T) {
	outOfDate := fmt.Errorf("present: %w", &ResultError{Op: "queue present", Result: vk.ErrorOutOfDate})
	assert.True(t, errors.Is(outOfDate, core.ErrSwapchainOutOfDate))
	assert.False(t, errors.Is(outOfDate, core.ErrNoCompatibleAdapter))
	assert.Equal(t, vk.ErrorOutOfDate, ResultOf(outOfDate))

	driver := &ResultError{Op: "create instance", Result: vk.ErrorIncompatibleDriver}
	assert.True(t, errors.Is(driver, core.ErrNoCompatibleAdapter))

	lost := &ResultError{Op: "queue submit", Result: vk.ErrorDeviceLost}
	assert.False(t, errors.Is(lost, core.ErrSwapchainOutOfDate))
	assert.Contains(t, lost.Error(), "VK_ERROR_DEVICE_LOST")
	assert.Contains(t, lost.Error(), "queue submit")
}

func TestCheck(t *testing.T) {
	assert.NoError(t, check("acquire", vk.Success))
	assert.NoError(t, check("acquire", vk.Suboptimal))
	assert.Error(t, check("acquire", vk.ErrorSurfaceLost))
	assert.Equal(t, vk.Success, ResultOf(errors.New("plain")))
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_TIMEOUT", VulkanResultString(vk.Timeout, false))
	assert.Equal(t, "VK_TIMEOUT A wait operation has not completed in the specified time", VulkanResultString(vk.Timeout, true))
	assert.Equal(t, "VkResult(-999)", VulkanResultString(vk.Result(-999), true))
}

func TestVulkanSafeStrings(t *testing.T) {
	in := []string{"VK_KHR_surface", "VK_LAYER_KHRONOS_validation\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"VK_KHR_surface\x00", "VK_LAYER_KHRONOS_validation\x00"}, out)
	assert.Equal(t, "VK_KHR_surface", in[0])
}
