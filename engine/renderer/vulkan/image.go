package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// TextureFormat is the format of every sampled texture: tightly packed RGBA8.
const TextureFormat = vk.FormatR8g8b8a8Unorm

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
}

func createImageView(context *VulkanContext, image vk.Image, format vk.Format) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := check("create image view", vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view)); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

// ImageCreate makes a device-local 2D image with one mip level and its view.
func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlags) (*VulkanImage, error) {
	device := context.Device.LogicalDevice
	img := &VulkanImage{Width: width, Height: height}

	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := check("create image", vk.CreateImage(device, &info, context.Allocator, &img.Handle)); err != nil {
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, img.Handle, &requirements)
	requirements.Deref()
	index, err := context.FindMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.ImageDestroy(context)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: index,
	}
	if err := check("allocate image memory", vk.AllocateMemory(device, &allocInfo, context.Allocator, &img.Memory)); err != nil {
		img.ImageDestroy(context)
		return nil, err
	}
	if err := check("bind image memory", vk.BindImageMemory(device, img.Handle, img.Memory, 0)); err != nil {
		img.ImageDestroy(context)
		return nil, err
	}
	view, err := createImageView(context, img.Handle, format)
	if err != nil {
		img.ImageDestroy(context)
		return nil, err
	}
	img.View = view
	return img, nil
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(device, vi.View, context.Allocator)
		vi.View = vk.NullImageView
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vi.Memory, context.Allocator)
		vi.Memory = vk.NullDeviceMemory
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(device, vi.Handle, context.Allocator)
		vi.Handle = vk.NullImage
	}
}

func samplerFilter(f metadata.FilterMode) vk.Filter {
	if f == metadata.FilterModeNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func samplerAddressMode(a metadata.AddressMode) vk.SamplerAddressMode {
	if a == metadata.AddressModeClampToEdge {
		return vk.SamplerAddressModeClampToEdge
	}
	return vk.SamplerAddressModeRepeat
}

func createSampler(context *VulkanContext, desc metadata.SamplerDesc) (vk.Sampler, error) {
	address := samplerAddressMode(desc.Address)
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               samplerFilter(desc.Filter),
		MinFilter:               samplerFilter(desc.Filter),
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            address,
		AddressModeV:            address,
		AddressModeW:            address,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  0,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	var sampler vk.Sampler
	if err := check("create sampler", vk.CreateSampler(context.Device.LogicalDevice, &info, context.Allocator, &sampler)); err != nil {
		return vk.NullSampler, err
	}
	return sampler, nil
}

// VulkanTexture is a sampled image, its sampler and the descriptor set that
// binds both to the texture group.
type VulkanTexture struct {
	id      uuid.UUID
	context *VulkanContext
	Name    string
	Image   *VulkanImage
	Sampler vk.Sampler
	Set     vk.DescriptorSet
	state   metadata.ResourceState
	hasSet  bool
}

func NewVulkanTexture(context *VulkanContext, desc renderer.TextureDesc) (*VulkanTexture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture '%s' %dx%d: %w", desc.Name, desc.Width, desc.Height, core.ErrZeroDimension)
	}
	img, err := ImageCreate(context, desc.Width, desc.Height, TextureFormat,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit))
	if err != nil {
		return nil, fmt.Errorf("texture '%s': %w", desc.Name, err)
	}
	tex := &VulkanTexture{
		id:      core.NewResourceID(),
		context: context,
		Name:    desc.Name,
		Image:   img,
		state:   metadata.ResourceStateUndefined,
	}
	sampler, err := createSampler(context, desc.Sampler)
	if err != nil {
		tex.Release()
		return nil, err
	}
	tex.Sampler = sampler
	set, err := context.Signature.TextureSet(context, img.View, sampler)
	if err != nil {
		tex.Release()
		return nil, err
	}
	tex.Set = set
	tex.hasSet = true
	return tex, nil
}

func (t *VulkanTexture) ID() uuid.UUID { return t.id }
func (t *VulkanTexture) Width() uint32 { return t.Image.Width }
func (t *VulkanTexture) Height() uint32 { return t.Image.Height }
func (t *VulkanTexture) State() metadata.ResourceState { return t.state }

// WritePixels copies RGBA8 rows through a staging buffer and leaves the image
// ready for the fragment stage. It waits for the copy to finish.
func (t *VulkanTexture) WritePixels(pixels []uint8) error {
	size := uint64(t.Image.Width) * uint64(t.Image.Height) * metadata.ImageChannelCount
	if uint64(len(pixels)) < size {
		return fmt.Errorf("texture '%s' got %d bytes, want %d: %w", t.Name, len(pixels), size, metadata.ErrPixelSize)
	}
	ctx := t.context
	staging, memory, err := createBuffer(ctx, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	device := ctx.Device.LogicalDevice
	defer func() {
		vk.DestroyBuffer(device, staging, ctx.Allocator)
		vk.FreeMemory(device, memory, ctx.Allocator)
	}()

	var data unsafe.Pointer
	if err := check("map staging", vk.MapMemory(device, memory, 0, vk.DeviceSize(size), 0, &data)); err != nil {
		return err
	}
	vk.Memcopy(data, pixels[:size])
	vk.UnmapMemory(device, memory)

	cb, err := AllocateAndBeginSingleUse(ctx, ctx.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	recordTransition(cb.Handle, t.Image.Handle, transitionFor(t.state, metadata.ResourceStateCopyDest))
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: t.Image.Width, Height: t.Image.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb.Handle, staging, t.Image.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	recordTransition(cb.Handle, t.Image.Handle, transitionFor(metadata.ResourceStateCopyDest, metadata.ResourceStateShaderResource))

	if err := cb.EndSingleUse(ctx.Device.GraphicsQueue, uint32(ctx.Device.GraphicsQueueIndex)); err != nil {
		return err
	}
	t.state = metadata.ResourceStateShaderResource
	return nil
}

func (t *VulkanTexture) Release() {
	ctx := t.context
	if t.hasSet {
		ctx.Signature.free(ctx, t.Set)
		t.hasSet = false
	}
	if t.Sampler != vk.NullSampler {
		vk.DestroySampler(ctx.Device.LogicalDevice, t.Sampler, ctx.Allocator)
		t.Sampler = vk.NullSampler
	}
	if t.Image != nil {
		t.Image.ImageDestroy(ctx)
	}
	t.state = metadata.ResourceStateUndefined
}
