package qr

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"

	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
)

const (
	DefaultPixelSize = 280
	DefaultMargin    = 2

	dataURLPrefix = "data:image/png;base64,"
)

// Level is the QR error-correction level. H tolerates the most symbol
// damage and is used for issued passes; M is the general default.
type Level string

const (
	LevelL Level = "L"
	LevelM Level = "M"
	LevelQ Level = "Q"
	LevelH Level = "H"
)

func ParseLevel(s string) (Level, bool) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelL:
		return LevelL, true
	case LevelM:
		return LevelM, true
	case LevelQ:
		return LevelQ, true
	case LevelH:
		return LevelH, true
	}
	return "", false
}

func (l Level) ecLevel() qr.ErrorCorrectionLevel {
	switch l {
	case LevelL:
		return qr.L
	case LevelQ:
		return qr.Q
	case LevelH:
		return qr.H
	default:
		return qr.M
	}
}

// Options control symbol rendering. The zero value gets defaults applied.
type Options struct {
	PixelSize int   // square side length in pixels
	Margin    int   // quiet zone, in modules
	Level     Level // error-correction level
	Dark      color.Color
	Light     color.Color
}

func (o Options) withDefaults() Options {
	if o.PixelSize <= 0 {
		o.PixelSize = DefaultPixelSize
	}
	if o.Margin <= 0 {
		o.Margin = DefaultMargin
	}
	if o.Level == "" {
		o.Level = LevelM
	}
	if o.Dark == nil {
		o.Dark = color.Black
	}
	if o.Light == nil {
		o.Light = color.White
	}
	return o
}

// Render encodes token into a square PNG data URL. Rendering is a pure
// function of (token, opts): repeated calls produce byte-identical output.
func Render(token string, opts Options) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.EncodingError("cannot encode an empty token")
	}
	opts = opts.withDefaults()

	code, err := qr.Encode(token, opts.Level.ecLevel(), qr.Auto)
	if err != nil {
		return "", apperrors.EncodingError("QR encoding failed").WithCause(err)
	}

	img, err := rasterize(code, opts)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", apperrors.EncodingError("PNG encoding failed").WithCause(err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// rasterize paints the module matrix onto a fixed-size canvas. The barcode
// library only yields the matrix, so quiet zone and palette are applied here.
func rasterize(code barcode.Barcode, opts Options) (image.Image, error) {
	modules := code.Bounds().Dx()
	total := modules + 2*opts.Margin
	if total > opts.PixelSize {
		return nil, apperrors.EncodingError("pixel size too small for symbol")
	}

	moduleSize := opts.PixelSize / total
	offset := (opts.PixelSize - moduleSize*modules) / 2

	img := image.NewRGBA(image.Rect(0, 0, opts.PixelSize, opts.PixelSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Light), image.Point{}, draw.Src)

	min := code.Bounds().Min
	for my := 0; my < modules; my++ {
		for mx := 0; mx < modules; mx++ {
			if !isDark(code.At(min.X+mx, min.Y+my)) {
				continue
			}
			rect := image.Rect(
				offset+mx*moduleSize,
				offset+my*moduleSize,
				offset+(mx+1)*moduleSize,
				offset+(my+1)*moduleSize,
			)
			draw.Draw(img, rect, image.NewUniform(opts.Dark), image.Point{}, draw.Src)
		}
	}
	return img, nil
}

func isDark(c color.Color) bool {
	gray := color.GrayModel.Convert(c).(color.Gray)
	return gray.Y < 0x80
}

// IsDataURL reports whether s carries an inline PNG payload.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, dataURLPrefix)
}

// DecodePNGDataURL decodes a rendered symbol back into an image.
func DecodePNGDataURL(dataURL string) (image.Image, error) {
	raw, ok := strings.CutPrefix(dataURL, dataURLPrefix)
	if !ok {
		return nil, apperrors.AssetLoadError("QR image", nil)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, apperrors.AssetLoadError("QR image", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.AssetLoadError("QR image", err)
	}
	return img, nil
}
