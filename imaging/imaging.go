// Package imaging decodes raster images and converts them into PDF image
// XObjects.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // Register decoders
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/wudi/pdfstamp/filters"
	"github.com/wudi/pdfstamp/ir/raw"
)

// ErrEmpty is returned for zero-length input.
var ErrEmpty = errors.New("image data is empty")

// DefaultMaxDimension bounds the stored pixel size; larger images are
// downscaled before embedding. The natural size is unaffected.
const DefaultMaxDimension = 4096

// Image is a decoded image ready to embed. Width and Height are the natural
// pixel dimensions.
type Image struct {
	Width, Height int
	Format        string

	// DCT passthrough keeps the original JPEG bytes.
	jpeg       []byte
	colorSpace string
	inverted   bool

	pixW, pixH int
	rgb        []byte
	alpha      []byte
}

// Decode reads JPEG, PNG, GIF, BMP, TIFF or WebP data.
func Decode(data []byte) (*Image, error) {
	return DecodeWithLimit(data, DefaultMaxDimension)
}

// DecodeWithLimit decodes data, downscaling the stored pixels so neither side
// exceeds maxDim. A non-positive maxDim disables downscaling.
func DecodeWithLimit(data []byte, maxDim int) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if err := filters.ValidateImageBounds(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img := &Image{Width: cfg.Width, Height: cfg.Height, Format: format}

	if format == "jpeg" && !exceeds(cfg.Width, cfg.Height, maxDim) {
		if cs, inverted, ok := jpegColorSpace(cfg.ColorModel); ok {
			img.jpeg = data
			img.colorSpace = cs
			img.inverted = inverted
			return img, nil
		}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	img.fromImage(downscale(src, maxDim))
	return img, nil
}

func exceeds(w, h, maxDim int) bool {
	return maxDim > 0 && (w > maxDim || h > maxDim)
}

func jpegColorSpace(m color.Model) (string, bool, bool) {
	switch m {
	case color.YCbCrModel, color.RGBAModel:
		return "DeviceRGB", false, true
	case color.GrayModel:
		return "DeviceGray", false, true
	case color.CMYKModel:
		// Adobe CMYK JPEGs store inverted samples.
		return "DeviceCMYK", true, true
	}
	return "", false, false
}

func downscale(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	if !exceeds(b.Dx(), b.Dy(), maxDim) {
		return src
	}
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*maxDim/w)
		w = maxDim
	} else {
		w = max(1, w*maxDim/h)
		h = maxDim
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// fromImage splits src into RGB samples and, when any pixel is translucent,
// an alpha channel for the soft mask.
func (img *Image) fromImage(src image.Image) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false
	for i := 0; i < w*h; i++ {
		offset := i * 4
		pixels = append(pixels, nrgba.Pix[offset], nrgba.Pix[offset+1], nrgba.Pix[offset+2])
		a := nrgba.Pix[offset+3]
		alpha = append(alpha, a)
		if a < 255 {
			hasAlpha = true
		}
	}
	img.pixW, img.pixH = w, h
	img.rgb = pixels
	if hasAlpha {
		img.alpha = alpha
	}
}

// HasAlpha reports whether the image carries a soft mask.
func (img *Image) HasAlpha() bool { return img.alpha != nil }

// Passthrough reports whether the original JPEG bytes are embedded as-is.
func (img *Image) Passthrough() bool { return img.jpeg != nil }

// XObject adds the image (and its soft mask) to doc and returns a reference
// to the image XObject.
func (img *Image) XObject(doc *raw.Document) raw.RefObj {
	if img.jpeg != nil {
		dict := raw.DictOf(
			"Type", raw.NameLiteral("XObject"),
			"Subtype", raw.NameLiteral("Image"),
			"Width", raw.NumberInt(int64(img.Width)),
			"Height", raw.NumberInt(int64(img.Height)),
			"ColorSpace", raw.NameLiteral(img.colorSpace),
			"BitsPerComponent", raw.NumberInt(8),
			"Filter", raw.NameLiteral("DCTDecode"),
		)
		if img.inverted {
			dict.Set("Decode", raw.Floats(1, 0, 1, 0, 1, 0, 1, 0))
		}
		return doc.Add(raw.NewStream(dict, img.jpeg))
	}

	dict := raw.DictOf(
		"Type", raw.NameLiteral("XObject"),
		"Subtype", raw.NameLiteral("Image"),
		"Width", raw.NumberInt(int64(img.pixW)),
		"Height", raw.NumberInt(int64(img.pixH)),
		"ColorSpace", raw.NameLiteral("DeviceRGB"),
		"BitsPerComponent", raw.NumberInt(8),
		"Filter", raw.NameLiteral("FlateDecode"),
	)
	if img.alpha != nil {
		mask := raw.DictOf(
			"Type", raw.NameLiteral("XObject"),
			"Subtype", raw.NameLiteral("Image"),
			"Width", raw.NumberInt(int64(img.pixW)),
			"Height", raw.NumberInt(int64(img.pixH)),
			"ColorSpace", raw.NameLiteral("DeviceGray"),
			"BitsPerComponent", raw.NumberInt(8),
			"Filter", raw.NameLiteral("FlateDecode"),
		)
		dict.Set("SMask", doc.Add(raw.NewStream(mask, filters.Flate(img.alpha))))
	}
	return doc.Add(raw.NewStream(dict, filters.Flate(img.rgb)))
}
