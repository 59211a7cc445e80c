package vulkan

// VULKAN_MAX_TEXTURE_COUNT bounds the texture descriptor sets alive at once.
const VULKAN_MAX_TEXTURE_COUNT uint32 = 64

// VULKAN_MAX_CONSTANT_BUFFER_COUNT bounds the frame-constant buffers with a
// cached descriptor set. A resize that changes the image count replaces the
// buffer, so a handful is plenty.
const VULKAN_MAX_CONSTANT_BUFFER_COUNT uint32 = 8

// Instance API version requested at startup.
const VULKAN_API_VERSION_MAJOR, VULKAN_API_VERSION_MINOR = 1, 1
