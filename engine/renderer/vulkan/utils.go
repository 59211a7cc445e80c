package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/usu/engine/core"
)

// ResultError carries the VkResult a call failed with.
type ResultError struct {
	Op     string
	Result vk.Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("vulkan: %s: %s", e.Op, VulkanResultString(e.Result, true))
}

// Is maps the results the renderer core reacts to onto the core sentinels.
func (e *ResultError) Is(target error) bool {
	switch e.Result {
	case vk.ErrorOutOfDate:
		return target == core.ErrSwapchainOutOfDate
	case vk.ErrorIncompatibleDriver, vk.ErrorInitializationFailed:
		return target == core.ErrNoCompatibleAdapter
	}
	return false
}

// check turns a non-success result into a *ResultError.
func check(op string, result vk.Result) error {
	if VulkanResultIsSuccess(result) {
		return nil
	}
	return &ResultError{Op: op, Result: result}
}

// ResultOf extracts the VkResult from err, or vk.Success when err is not a
// Vulkan failure.
func ResultOf(err error) vk.Result {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Result
	}
	return vk.Success
}

func VulkanResultString(result vk.Result, getExtended bool) string {
	name, detail := resultText(result)
	if !getExtended || detail == "" {
		return name
	}
	return name + " " + detail
}

func resultText(result vk.Result) (string, string) {
	switch result {
	case vk.Success:
		return "VK_SUCCESS", "Command successfully completed"
	case vk.NotReady:
		return "VK_NOT_READY", "A fence or query has not yet completed"
	case vk.Timeout:
		return "VK_TIMEOUT", "A wait operation has not completed in the specified time"
	case vk.EventSet:
		return "VK_EVENT_SET", "An event is signaled"
	case vk.EventReset:
		return "VK_EVENT_RESET", "An event is unsignaled"
	case vk.Incomplete:
		return "VK_INCOMPLETE", "A return array was too small for the result"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR", "The swapchain no longer matches the surface exactly but can still present"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost"
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed"
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded"
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported"
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported"
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER", "The requested Vulkan version is not supported by the driver"
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created"
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device"
	case vk.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL", "A pool allocation has failed due to fragmentation"
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR", "A surface is no longer available"
	case vk.ErrorNativeWindowInUse:
		return "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "The window is already in use by another API"
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR", "The surface changed and the swapchain must be recreated"
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY", "A pool memory allocation has failed"
	case vk.ErrorUnknown:
		return "VK_ERROR_UNKNOWN", "An unknown error has occurred"
	}
	return fmt.Sprintf("VkResult(%d)", int32(result)), ""
}

// VulkanResultIsSuccess reports whether result is one of the non-negative
// success codes.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}
