// Package barcode decodes engine-number barcodes from camera frames and image
// files using gozxing.
package barcode

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"os"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Supported format names, as used in configuration.
const (
	FormatCode128 = "CODE_128"
	FormatCode39  = "CODE_39"
	FormatEAN13   = "EAN_13"
	FormatUPCA    = "UPC_A"
	FormatQR      = "QR_CODE"
)

// DefaultFormats are tried in order when no formats are configured. The
// linear symbologies come first since engine plates carry 1D labels.
var DefaultFormats = []string{FormatCode128, FormatCode39, FormatEAN13, FormatUPCA, FormatQR}

// ErrNotFound means no configured symbology could be read from the image.
var ErrNotFound = errors.New("barcode: no barcode found")

type namedReader struct {
	format string
	reader gozxing.Reader
}

// Decoder tries each configured symbology in turn.
type Decoder struct {
	readers []namedReader
	hints   map[gozxing.DecodeHintType]interface{}
}

// New builds a Decoder for the given format names. An empty list means
// DefaultFormats.
func New(formats ...string) (*Decoder, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	d := &Decoder{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
	seen := make(map[string]bool)
	for _, f := range formats {
		name := strings.ToUpper(strings.TrimSpace(f))
		if seen[name] {
			continue
		}
		seen[name] = true
		r, err := readerFor(name)
		if err != nil {
			return nil, err
		}
		d.readers = append(d.readers, namedReader{format: name, reader: r})
	}
	return d, nil
}

func readerFor(name string) (gozxing.Reader, error) {
	switch name {
	case FormatCode128:
		return oned.NewCode128Reader(), nil
	case FormatCode39:
		return oned.NewCode39Reader(), nil
	case FormatEAN13:
		return oned.NewEAN13Reader(), nil
	case FormatUPCA:
		return oned.NewUPCAReader(), nil
	case FormatQR:
		return qrcode.NewQRCodeReader(), nil
	default:
		return nil, fmt.Errorf("barcode: unsupported format %q", name)
	}
}

// Formats returns the configured format names in decode order.
func (d *Decoder) Formats() []string {
	out := make([]string, len(d.readers))
	for i, r := range d.readers {
		out[i] = r.format
	}
	return out
}

// Decode returns the text of the first barcode found in img.
func (d *Decoder) Decode(img image.Image) (string, error) {
	result, err := d.DecodeResult(img)
	if err != nil {
		return "", err
	}
	return result.GetText(), nil
}

// DecodeResult is Decode but returns the full gozxing result, including the
// symbology that matched.
func (d *Decoder) DecodeResult(img image.Image) (*gozxing.Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("barcode: binarize: %w", err)
	}
	for _, nr := range d.readers {
		result, err := nr.reader.Decode(bmp, d.hints)
		nr.reader.Reset()
		if err == nil {
			return result, nil
		}
	}
	return nil, ErrNotFound
}

// DecodeFile decodes a PNG or JPEG file.
func (d *Decoder) DecodeFile(path string) (*gozxing.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("barcode: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("barcode: decode image %s: %w", path, err)
	}
	return d.DecodeResult(img)
}

// Encode renders text as a barcode image in the given format. Only
// CODE_128 and QR_CODE are supported for printing labels.
func Encode(text, format string, width, height int) (image.Image, error) {
	var (
		w     gozxing.Writer
		bf    gozxing.BarcodeFormat
		hints map[gozxing.EncodeHintType]interface{}
	)
	switch strings.ToUpper(format) {
	case FormatCode128, "":
		w, bf = oned.NewCode128Writer(), gozxing.BarcodeFormat_CODE_128
	case FormatQR:
		w, bf = qrcode.NewQRCodeWriter(), gozxing.BarcodeFormat_QR_CODE
		hints = map[gozxing.EncodeHintType]interface{}{
			gozxing.EncodeHintType_MARGIN: 2,
		}
	default:
		return nil, fmt.Errorf("barcode: cannot encode format %q", format)
	}
	img, err := w.Encode(text, bf, width, height, hints)
	if err != nil {
		return nil, fmt.Errorf("barcode: encode %q: %w", text, err)
	}
	return img, nil
}

// WritePNG encodes text and writes the label to path.
func WritePNG(path, text, format string, width, height int) error {
	img, err := Encode(text, format, width, height)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("barcode: create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("barcode: write %s: %w", path, err)
	}
	return f.Close()
}
