package imagepipeline

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
)

func pngEncode(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

func jpegEncode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
}
