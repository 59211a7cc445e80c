package loaders

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

/** @brief Parameters used when loading an image. */
type ImageParams struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
}

// ImageLoader decodes PNG, JPEG, GIF, BMP, TIFF and WebP files into RGBA8.
type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	var flipY bool
	if p, ok := params.(*ImageParams); ok && p != nil {
		flipY = p.FlipY
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	src, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", path, err, core.ErrDecode)
	}

	data := ToImageData(src, flipY)
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	core.LogDebug("image '%s' (%s): %dx%d", path, format, data.Width, data.Height)

	return &metadata.Resource{
		ID:       core.NewResourceID(),
		Type:     metadata.ResourceTypeImage,
		Name:     path,
		FullPath: path,
		DataSize: data.SizeInBytes(),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(*metadata.Resource) error {
	return nil
}

// ToImageData converts any decoded image to tightly packed RGBA8.
func ToImageData(src image.Image, flipY bool) *metadata.ImageData {
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	w, h := b.Dx(), b.Dy()
	rowBytes := w * metadata.ImageChannelCount
	pixels := make([]uint8, rowBytes*h)
	for y := 0; y < h; y++ {
		srcY := y
		if flipY {
			srcY = h - 1 - y
		}
		copy(pixels[y*rowBytes:(y+1)*rowBytes], rgba.Pix[srcY*rgba.Stride:srcY*rgba.Stride+rowBytes])
	}
	return &metadata.ImageData{
		Width:  uint32(w),
		Height: uint32(h),
		Pixels: pixels,
	}
}
