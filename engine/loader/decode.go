package loader

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	// Registered decoders for image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"go.uber.org/zap"
)

// decode turns raw asset bytes into Content according to the asset's kind.
// Textures are converted to RGBA8 sRGB pixels; shaders and buffers pass through.
func decode(name string, data []byte) (Content, error) {
	desc := Descriptor{Name: name, Kind: kindOf(name)}
	if desc.Kind != ContentTexture {
		return Content{Descriptor: desc, Data: data}, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Content{}, fmt.Errorf("failed to decode image %s: %w", name, err)
	}

	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	desc.Width = uint32(bounds.Dx())
	desc.Height = uint32(bounds.Dy())
	desc.Format = gpu.TextureFormatRGBA8UnormSrgb
	common.Logger().Debug("image decoded",
		zap.String("name", name),
		zap.String("format", format),
		zap.Uint32("width", desc.Width),
		zap.Uint32("height", desc.Height),
	)
	return Content{Descriptor: desc, Data: rgba.Pix}, nil
}
