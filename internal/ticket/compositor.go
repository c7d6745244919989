package ticket

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"

	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/qr"
)

// Layer placement is proportional to the background artwork, so one set of
// constants survives artwork resolution changes.
const (
	nameTop       = 0.16 // name block top edge
	nameColWidth  = 0.80 // wrap column as a fraction of width
	idTop         = 0.26 // participant ID line
	qrCenterY     = 0.62 // QR plate center
	qrSideRatio   = 0.45 // QR plate side vs min(width, height)
	qrInsetRatio  = 0.92 // symbol side vs plate side
	lineSpacing   = 1.4
	idLetterScale = 0.75 // participant ID face size vs name face size
)

// Compositor burns participant name, ID and QR symbol onto the branded
// background artwork. Pure apart from the cached background load.
type Compositor struct {
	backgroundPath string
	nameFace       font.Face
	idFace         font.Face

	mu         sync.Mutex
	background image.Image
}

type Option func(*Compositor)

// WithFontFaces overrides the default bitmap faces, normally with TTF faces
// loaded via LoadFontFace.
func WithFontFaces(name, id font.Face) Option {
	return func(c *Compositor) {
		c.nameFace = name
		c.idFace = id
	}
}

func NewCompositor(backgroundPath string, opts ...Option) *Compositor {
	c := &Compositor{backgroundPath: backgroundPath}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Filename is the suggested download name for a composited ticket.
func Filename(participantID string) string {
	return fmt.Sprintf("vibranium-pass-%s.png", participantID)
}

// LoadFontFace reads a TTF/OTF file into a font.Face at the given point size.
func LoadFontFace(path string, points float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.AssetLoadError("ticket font", err)
	}
	ft, err := opentype.Parse(data)
	if err != nil {
		return nil, apperrors.AssetLoadError("ticket font", err)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    points,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, apperrors.AssetLoadError("ticket font", err)
	}
	return face, nil
}

// Compose merges the background, participant text and QR symbol into one
// shareable PNG data URL. The canvas always matches the background's
// natural dimensions. Long names word-wrap within a bounded column and
// simply continue onto further lines; nothing is truncated.
func (c *Compositor) Compose(name, participantID, qrDataURL string) (string, error) {
	bg, err := c.loadBackground()
	if err != nil {
		return "", err
	}

	qrImg, err := qr.DecodePNGDataURL(qrDataURL)
	if err != nil {
		return "", err
	}

	w := float64(bg.Bounds().Dx())
	h := float64(bg.Bounds().Dy())

	dc := gg.NewContext(bg.Bounds().Dx(), bg.Bounds().Dy())
	dc.DrawImage(bg, 0, 0)

	// QR plate: a light square reserved on the artwork, symbol inset and
	// centered within it.
	side := qrSideRatio * min(w, h)
	plateX := w/2 - side/2
	plateY := qrCenterY*h - side/2
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(plateX, plateY, side, side)
	dc.Fill()

	inner := side * qrInsetRatio
	qrW := float64(qrImg.Bounds().Dx())
	scale := inner / qrW
	dc.Push()
	dc.Translate(plateX+(side-inner)/2, plateY+(side-inner)/2)
	dc.Scale(scale, scale)
	dc.DrawImage(qrImg, 0, 0)
	dc.Pop()

	dc.SetRGB(1, 1, 1)
	if c.nameFace != nil {
		dc.SetFontFace(c.nameFace)
	}
	dc.DrawStringWrapped(name, w/2, nameTop*h, 0.5, 0, nameColWidth*w, lineSpacing, gg.AlignCenter)

	if c.idFace != nil {
		dc.SetFontFace(c.idFace)
	}
	dc.DrawStringAnchored(participantID, w/2, idTop*h, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return "", apperrors.EncodingError("ticket PNG encoding failed").WithCause(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (c *Compositor) loadBackground() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.background != nil {
		return c.background, nil
	}
	img, err := gg.LoadImage(c.backgroundPath)
	if err != nil {
		return nil, apperrors.AssetLoadError("ticket background", err)
	}
	c.background = img
	return img, nil
}
