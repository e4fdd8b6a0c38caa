package scanning

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // Register GIF decoder
	_ "image/jpeg"
	_ "image/png" // Register PNG decoder
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// DefaultJPEGQuality is the quality used when re-encoding documents as JPEG
const DefaultJPEGQuality = 90

// Converter turns a receipt document (PDF or raster image) into one base64 JPEG
type Converter struct {
	// Quality is the JPEG quality used when an image has to be encoded
	Quality int
	// MaxDimension downscales images whose width or height is larger. Zero disables it.
	MaxDimension int
	// DPI is the PDF render resolution. Zero keeps the renderer default.
	DPI float64
}

// NewConverter creates a Converter with default settings
func NewConverter() *Converter {
	return &Converter{Quality: DefaultJPEGQuality}
}

// Normalize converts the document to a single JPEG and returns it base64 encoded
func (c *Converter) Normalize(filename string, data []byte) (string, error) {
	jpegData, err := c.toJPEG(filename, data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(jpegData), nil
}

func (c *Converter) toJPEG(filename string, data []byte) ([]byte, error) {
	if isPDF(filename, data) {
		pages, err := c.renderPages(data)
		if err != nil {
			return nil, err
		}
		return c.encodeJPEG(stitchPages(pages))
	}

	// JPEG files are sent as read unless they need downscaling
	if isJPEGFormat(data) && c.MaxDimension <= 0 {
		return data, nil
	}

	img, err := decodeImage(filename, data)
	if err != nil {
		return nil, err
	}
	if isJPEGFormat(data) && !c.tooLarge(img) {
		return data, nil
	}

	return c.encodeJPEG(flatten(img))
}

// renderPages renders every page of a PDF to an image
func (c *Converter) renderPages(pdfData []byte) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("%w: opening PDF: %v", ErrDocumentDecode, err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount <= 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", ErrDocumentDecode)
	}

	pages := make([]image.Image, 0, pageCount)
	for n := 0; n < pageCount; n++ {
		var img *image.RGBA
		if c.DPI > 0 {
			img, err = doc.ImageDPI(n, c.DPI)
		} else {
			img, err = doc.Image(n)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: rendering PDF page %d: %v", ErrDocumentDecode, n+1, err)
		}
		pages = append(pages, img)
	}

	return pages, nil
}

// stitchPages places the pages side by side, top aligned, on a white canvas
// as wide as all pages together and as tall as the tallest one
func stitchPages(pages []image.Image) image.Image {
	if len(pages) == 1 {
		return pages[0]
	}

	var width, height int
	for _, page := range pages {
		b := page.Bounds()
		width += b.Dx()
		if b.Dy() > height {
			height = b.Dy()
		}
	}

	canvas := imaging.New(width, height, color.White)
	x := 0
	for _, page := range pages {
		canvas = imaging.Paste(canvas, page, image.Pt(x, 0))
		x += page.Bounds().Dx()
	}

	return canvas
}

// flatten draws the image over white so transparent areas do not turn black in the JPEG
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	background := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

func (c *Converter) tooLarge(img image.Image) bool {
	if c.MaxDimension <= 0 {
		return false
	}
	b := img.Bounds()
	return b.Dx() > c.MaxDimension || b.Dy() > c.MaxDimension
}

func (c *Converter) encodeJPEG(img image.Image) ([]byte, error) {
	if c.tooLarge(img) {
		img = imaging.Fit(img, c.MaxDimension, c.MaxDimension, imaging.Lanczos)
	}

	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("%w: encoding JPEG: %v", ErrDocumentDecode, err)
	}
	return buf.Bytes(), nil
}

// decodeImage decodes any supported raster format, including HEIC
func decodeImage(filename string, data []byte) (image.Image, error) {
	// Check for HEIC/HEIF format (common on iPhones) - Go's standard image package doesn't support it
	if isHEICFormat(data) || isHEICExtension(filename) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding HEIC/HEIF image: %v", ErrDocumentDecode, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("%w: unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %v", ErrDocumentDecode, err)
		}
		return nil, fmt.Errorf("%w: decoding image: %v", ErrDocumentDecode, err)
	}
	return img, nil
}

// isPDF checks the file extension and the %PDF- magic bytes
func isPDF(filename string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-"))
}

// isJPEGFormat checks for the JPEG start-of-image marker
func isJPEGFormat(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box at offset 4 with brand 'heic', 'heif', 'mif1' or 'msf1'
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

func isHEICExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".heic" || ext == ".heif"
}
