// Package zxing decodes QR codes from camera frames with gozxing.
package zxing

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder implements scan.Decoder. The zero value is ready to use.
type Decoder struct {
	// TryHarder spends more time per frame; useful for still photos, too slow
	// for a live preview.
	TryHarder bool
}

// Decode returns the QR text in frame. Any failure, including frames without a
// code, reports ok=false.
func (d Decoder) Decode(frame image.Image) (text string, ok bool) {
	if frame == nil {
		return "", false
	}
	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()

	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", false
	}
	var hints map[gozxing.DecodeHintType]interface{}
	if d.TryHarder {
		hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", false
	}
	return result.GetText(), true
}

// Encode renders text as a size x size QR code image. Used to print tags and to
// build test frames.
func Encode(text string, size int) (image.Image, error) {
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return matrix, nil
}
