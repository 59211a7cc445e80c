package metadata

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/usu/engine/core"
)

var ErrPixelSize = errors.New("pixel buffer does not match image dimensions")

/**
 * @brief Decoded image data, always 4 channels with 8 bits each.
 */
type ImageData struct {
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief Tightly packed RGBA8 rows, top to bottom. */
	Pixels []uint8
}

const ImageChannelCount = 4

// Validate reports zero dimensions and short pixel buffers.
func (i *ImageData) Validate() error {
	if i.Width == 0 || i.Height == 0 {
		return fmt.Errorf("image %dx%d: %w", i.Width, i.Height, core.ErrZeroDimension)
	}
	want := uint64(i.Width) * uint64(i.Height) * ImageChannelCount
	if uint64(len(i.Pixels)) < want {
		return fmt.Errorf("image %dx%d has %d bytes, want %d: %w", i.Width, i.Height, len(i.Pixels), want, ErrPixelSize)
	}
	return nil
}

func (i *ImageData) SizeInBytes() uint64 {
	return uint64(i.Width) * uint64(i.Height) * ImageChannelCount
}

// WhiteImage is the 1x1 placeholder bound when no texture has been published.
func WhiteImage() *ImageData {
	return &ImageData{Width: 1, Height: 1, Pixels: []uint8{0xFF, 0xFF, 0xFF, 0xFF}}
}
