// Package fixtures 提供测试用的剪影图像与分析结果。
package fixtures

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/shalynjjj/prompt2CAD/types"
)

// BlankPNG 返回纯白 PNG，提取后没有深度信息。
func BlankPNG(w, h int) []byte {
	return encode(gray(w, h, func(int, int) uint8 { return 255 }))
}

// DiscPNG 返回白底黑色圆盘剪影。
func DiscPNG(w, h int) []byte {
	cx, cy := float64(w-1)/2, float64(h-1)/2
	r := float64(min(w, h)) / 3
	return encode(gray(w, h, func(x, y int) uint8 {
		dx, dy := float64(x)-cx, float64(y)-cy
		if dx*dx+dy*dy <= r*r {
			return 0
		}
		return 255
	}))
}

// GradientPNG 返回从左到右由白变黑的灰度图。
func GradientPNG(w, h int) []byte {
	return encode(gray(w, h, func(x, _ int) uint8 {
		if w <= 1 {
			return 0
		}
		return uint8(255 - 255*x/(w-1))
	}))
}

// Analysis 返回一组合法的比例分析结果。
func Analysis() types.Analysis {
	a := types.Analysis{
		Width:      1.0,
		Length:     1.6,
		Thickness:  0.3,
		Complexity: types.ComplexityModerate,
	}
	a.RatioString = a.Ratio()
	return a
}

func gray(w, h int, fill func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}
	return img
}

func encode(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
