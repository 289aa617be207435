package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const iconSize = 22

var (
	iconOnce sync.Once
	iconData []byte
)

// iconBytes draws the tray icon: two stacked track bars with a playhead.
func iconBytes() []byte {
	iconOnce.Do(func() {
		img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
		bar := color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
		overlay := color.NRGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff}
		head := color.NRGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}

		for x := 2; x < iconSize-2; x++ {
			for y := 6; y < 10; y++ {
				img.Set(x, y, bar)
			}
		}
		for x := 8; x < iconSize-4; x++ {
			for y := 13; y < 17; y++ {
				img.Set(x, y, overlay)
			}
		}
		for y := 3; y < iconSize-3; y++ {
			img.Set(12, y, head)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			iconData = buf.Bytes()
		}
	})
	return iconData
}
