package zxing

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for _, text := range []string{
		"https://rehla-trees-planting.com/00001",
		"SOME-CODE",
	} {
		t.Run(text, func(t *testing.T) {
			img, err := Encode(text, 256)
			require.NoError(t, err)

			got, ok := Decoder{}.Decode(img)
			require.True(t, ok)
			assert.Equal(t, text, got)
		})
	}
}

func TestBlankFrameHasNoCode(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range blank.Pix {
		blank.Pix[i] = uint8(color.White.Y >> 8)
	}
	_, ok := Decoder{TryHarder: true}.Decode(blank)
	assert.False(t, ok)
}

func TestNilFrame(t *testing.T) {
	_, ok := Decoder{}.Decode(nil)
	assert.False(t, ok)
}
